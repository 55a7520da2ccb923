package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/pkg/buffer"
)

// WindowKind selects a window policy.
type WindowKind int

const (
	KindSliding WindowKind = iota
	KindTumbling
	KindSession
)

func (k WindowKind) String() string {
	switch k {
	case KindSliding:
		return "sliding"
	case KindTumbling:
		return "tumbling"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

// TimeWindow is a window policy value. It holds no state of its own; the
// buffer it is applied to does.
type TimeWindow struct {
	kind WindowKind
	size time.Duration
}

// Sliding keeps elements no older than size relative to the newest element.
func Sliding(size time.Duration) TimeWindow {
	return TimeWindow{kind: KindSliding, size: size}
}

// Tumbling currently shares the sliding eviction rule: elements older than
// size relative to the newest element leave the buffer. It does not bucket
// elements into non-overlapping windows.
func Tumbling(size time.Duration) TimeWindow {
	return TimeWindow{kind: KindTumbling, size: size}
}

// Session discards the whole buffer once the oldest element is more than gap
// older than the newest.
func Session(gap time.Duration) TimeWindow {
	return TimeWindow{kind: KindSession, size: gap}
}

// Kind returns the policy variant.
func (w TimeWindow) Kind() WindowKind {
	return w.kind
}

// Size returns the window length, or the gap for session windows.
func (w TimeWindow) Size() time.Duration {
	return w.size
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s(%s)", w.kind, w.size)
}

// Validate rejects unknown kinds and non-positive sizes.
func (w TimeWindow) Validate() error {
	if w.kind < KindSliding || w.kind > KindSession {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "TimeWindow", "Validate",
			fmt.Sprintf("unknown window kind %d", w.kind))
	}
	if w.size <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "TimeWindow", "Validate",
			fmt.Sprintf("window size must be positive, got %v", w.size))
	}
	return nil
}

// expired reports whether an element stamped ts falls outside the window at now.
func (w TimeWindow) expired(ts, now time.Time) bool {
	return now.Sub(ts) > w.size
}

// Evict prunes buf against the policy at reference time now and returns the
// number of elements removed.
//
// Sliding and tumbling windows drop from the front while the oldest element
// is older than the window size. A session window clears everything, the
// newest element included, once the oldest element is past the gap.
func (w TimeWindow) Evict(buf buffer.Buffer[Element], now time.Time) int {
	switch w.kind {
	case KindSession:
		oldest, ok := buf.Peek()
		if !ok || !w.expired(oldest.Timestamp(), now) {
			return 0
		}
		return buf.DropWhile(func(Element) bool { return true })
	default:
		return buf.DropWhile(func(e Element) bool {
			return w.expired(e.Timestamp(), now)
		})
	}
}

type windowJSON struct {
	Type string          `json:"type"`
	Size json.RawMessage `json:"size"`
}

// MarshalJSON encodes the window as {"type":"sliding","size":"30s"}.
func (w TimeWindow) MarshalJSON() ([]byte, error) {
	size, err := json.Marshal(w.size.String())
	if err != nil {
		return nil, err
	}
	return json.Marshal(windowJSON{Type: w.kind.String(), Size: size})
}

// UnmarshalJSON accepts a duration string or a number of seconds for size.
func (w *TimeWindow) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WrapInvalid(err, "TimeWindow", "UnmarshalJSON", "decode window")
	}

	size, err := parseWindowSize(raw.Size)
	if err != nil {
		return err
	}

	window, err := NewTimeWindow(raw.Type, size)
	if err != nil {
		return err
	}
	*w = window
	return nil
}

// NewTimeWindow builds a window from a kind name ("sliding", "tumbling", "session").
func NewTimeWindow(kind string, size time.Duration) (TimeWindow, error) {
	var w TimeWindow
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "sliding", "":
		w = Sliding(size)
	case "tumbling":
		w = Tumbling(size)
	case "session":
		w = Session(size)
	default:
		return TimeWindow{}, errors.WrapInvalid(errors.ErrInvalidConfig, "TimeWindow", "NewTimeWindow",
			fmt.Sprintf("unknown window type %q", kind))
	}
	return w, w.Validate()
}

func parseWindowSize(data json.RawMessage) (time.Duration, error) {
	if len(data) == 0 {
		return 0, errors.WrapInvalid(errors.ErrMissingConfig, "TimeWindow", "UnmarshalJSON", "size is required")
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		d, err := time.ParseDuration(str)
		if err != nil {
			return 0, errors.WrapInvalid(err, "TimeWindow", "UnmarshalJSON", "parse size")
		}
		return d, nil
	}

	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return 0, errors.WrapInvalid(errors.ErrInvalidConfig, "TimeWindow", "UnmarshalJSON",
			"size must be a duration string or a number of seconds")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
