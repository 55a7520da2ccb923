package stream

import (
	"time"

	"github.com/c360/livegraph/message"
)

// Element is a triple stamped with the time it entered a stream.
type Element struct {
	triple    message.Triple
	timestamp time.Time
	windowID  string
}

// NewElement stamps t with the current time.
func NewElement(t message.Triple) Element {
	return Element{triple: t, timestamp: time.Now()}
}

// NewElementAt stamps t with an explicit time, for replay and tests.
func NewElementAt(t message.Triple, ts time.Time) Element {
	return Element{triple: t, timestamp: ts}
}

// WithWindowID returns a copy of e tagged with a window identifier.
func (e Element) WithWindowID(id string) Element {
	e.windowID = id
	return e
}

func (e Element) Triple() message.Triple { return e.triple }
func (e Element) Timestamp() time.Time   { return e.timestamp }
func (e Element) WindowID() string       { return e.windowID }
