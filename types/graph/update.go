// Package graph provides the change notifications the real-time engine
// delivers to subscribers.
package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/message"
)

// UpdateKind identifies the variant of an Update.
type UpdateKind string

const (
	// UpdateAdd announces one added triple.
	UpdateAdd UpdateKind = "add"

	// UpdateRemove announces one removed triple.
	UpdateRemove UpdateKind = "remove"

	// UpdateAddBatch announces several added triples, typically derived facts.
	UpdateAddBatch UpdateKind = "add_batch"

	// UpdateRemoveBatch announces several removed triples.
	UpdateRemoveBatch UpdateKind = "remove_batch"
)

// IsBatch reports whether the kind carries a list of triples.
func (k UpdateKind) IsBatch() bool {
	return k == UpdateAddBatch || k == UpdateRemoveBatch
}

// IsAddition reports whether the kind announces new facts.
func (k UpdateKind) IsAddition() bool {
	return k == UpdateAdd || k == UpdateAddBatch
}

// Update is one notification unit. Values are immutable once built: the
// triples are copied in by the constructors and copied out by Triples, so a
// subscriber cannot alter what other subscribers see.
type Update struct {
	kind    UpdateKind
	triples []message.Triple
}

// Add creates a single-triple addition.
func Add(t message.Triple) Update {
	return Update{kind: UpdateAdd, triples: []message.Triple{t}}
}

// Remove creates a single-triple removal.
func Remove(t message.Triple) Update {
	return Update{kind: UpdateRemove, triples: []message.Triple{t}}
}

// AddBatch creates a batch addition.
func AddBatch(ts []message.Triple) Update {
	return Update{kind: UpdateAddBatch, triples: cloneTriples(ts)}
}

// RemoveBatch creates a batch removal.
func RemoveBatch(ts []message.Triple) Update {
	return Update{kind: UpdateRemoveBatch, triples: cloneTriples(ts)}
}

// Kind returns the variant.
func (u Update) Kind() UpdateKind {
	return u.kind
}

// Count returns 1 for singular variants and the batch length otherwise.
func (u Update) Count() int {
	if !u.kind.IsBatch() {
		return 1
	}
	return len(u.triples)
}

// Triple returns the triple of a singular update.
func (u Update) Triple() (message.Triple, bool) {
	if u.kind.IsBatch() || len(u.triples) == 0 {
		return message.Triple{}, false
	}
	return u.triples[0], true
}

// Triples returns a copy of every triple carried by the update.
func (u Update) Triples() []message.Triple {
	return cloneTriples(u.triples)
}

// Subject returns the messaging subject for this update under prefix,
// e.g. "graph.updates.add.batch".
func (u Update) Subject(prefix string) string {
	suffix := strings.ReplaceAll(string(u.kind), "_", ".")
	if prefix == "" {
		return suffix
	}
	return prefix + "." + suffix
}

// Validate checks that the update carries a known kind and its triples.
func (u Update) Validate() error {
	switch u.kind {
	case UpdateAdd, UpdateRemove:
		if len(u.triples) != 1 {
			return errors.WrapInvalid(errors.ErrInvalidData, "Update", "Validate",
				fmt.Sprintf("%s update must carry exactly one triple, got %d", u.kind, len(u.triples)))
		}
	case UpdateAddBatch, UpdateRemoveBatch:
	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "Update", "Validate",
			fmt.Sprintf("unknown update kind %q", u.kind))
	}

	for _, t := range u.triples {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// String summarises the update for logs.
func (u Update) String() string {
	return fmt.Sprintf("%s(%d)", u.kind, u.Count())
}

type updateJSON struct {
	Kind    UpdateKind       `json:"kind"`
	Triples []message.Triple `json:"triples"`
}

// MarshalJSON encodes the update as {"kind":..., "triples":[...]}.
func (u Update) MarshalJSON() ([]byte, error) {
	triples := u.triples
	if triples == nil {
		triples = []message.Triple{}
	}
	return json.Marshal(updateJSON{Kind: u.kind, Triples: triples})
}

// UnmarshalJSON decodes and validates an update.
func (u *Update) UnmarshalJSON(data []byte) error {
	var raw updateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WrapInvalid(err, "Update", "UnmarshalJSON", "decode update")
	}
	decoded := Update{kind: raw.Kind, triples: raw.Triples}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*u = decoded
	return nil
}

func cloneTriples(ts []message.Triple) []message.Triple {
	if ts == nil {
		return nil
	}
	out := make([]message.Triple, len(ts))
	copy(out, ts)
	return out
}
