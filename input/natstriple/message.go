package natstriple

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/message"
	"github.com/c360/livegraph/realtime"
)

// Operations understood in the "op" field.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// Message is one decoded ingestion message.
type Message struct {
	Op      string           `json:"op"`
	Triple  *message.Triple  `json:"triple,omitempty"`
	Triples []message.Triple `json:"triples,omitempty"`
}

// All returns the single triple followed by the batch.
func (m Message) All() []message.Triple {
	out := make([]message.Triple, 0, len(m.Triples)+1)
	if m.Triple != nil {
		out = append(out, *m.Triple)
	}
	return append(out, m.Triples...)
}

// Validate checks the operation and every triple.
func (m Message) Validate() error {
	if m.Op != OpAdd && m.Op != OpRemove {
		return errors.WrapInvalid(errors.ErrInvalidData, "Message", "Validate",
			fmt.Sprintf("unknown op %q", m.Op))
	}
	all := m.All()
	if len(all) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Message", "Validate", "message carries no triples")
	}
	for _, t := range all {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses and validates one message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.WrapInvalid(errors.ErrParsingFailed, "natstriple", "Decode", err.Error())
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Apply hands the message to u. Several triples go through the batch entry
// points when u supports them, one call per triple otherwise.
func Apply(ctx context.Context, u realtime.Updater, m Message) error {
	all := m.All()
	if batch, ok := u.(realtime.BatchUpdater); ok && len(all) > 1 {
		if m.Op == OpAdd {
			return batch.AddTriples(ctx, all)
		}
		return batch.RemoveTriples(ctx, all)
	}

	for _, t := range all {
		var err error
		if m.Op == OpAdd {
			err = u.AddTriple(ctx, t)
		} else {
			err = u.RemoveTriple(ctx, t)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
