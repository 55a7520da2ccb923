package message

import (
	"fmt"
	"strings"

	"github.com/c360/livegraph/errors"
)

// Triple is a subject-predicate-object graph edge.
//
// Triples are immutable values: every field is comparable, so a Triple can be
// used directly as a map key and two triples are equal when their parts are.
//
// Example triples:
//   - ("urn:drone:1", "urn:vocab:batteryLevel", TypedLiteral("85.5", XSDDecimal))
//   - ("urn:drone:1", "urn:vocab:partOf", URI("urn:fleet:alpha"))
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    Value  `json:"object"`
}

// Common XSD datatype IRIs.
const (
	XSDString  = "http://www.w3.org/2001/XMLSchema#string"
	XSDInteger = "http://www.w3.org/2001/XMLSchema#integer"
	XSDDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	XSDDouble  = "http://www.w3.org/2001/XMLSchema#double"
	XSDBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
	XSDDate    = "http://www.w3.org/2001/XMLSchema#dateTime"
	RDFType    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

// NewTriple creates a triple.
func NewTriple(subject, predicate string, object Value) Triple {
	return Triple{Subject: subject, Predicate: predicate, Object: object}
}

// Validate checks that subject and predicate are present.
func (t Triple) Validate() error {
	if t.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Triple", "Validate", "subject is required")
	}
	if t.Predicate == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Triple", "Validate", "predicate is required")
	}
	return nil
}

// IsRelationship reports whether the object references another node rather
// than carrying a literal.
func (t Triple) IsRelationship() bool {
	return t.Object.IsResource()
}

// String renders the triple as one N-Triples line without the trailing newline.
// Subjects written as _:label are kept as blank nodes, everything else is an IRI.
func (t Triple) String() string {
	return fmt.Sprintf("%s <%s> %s .", renderSubject(t.Subject), t.Predicate, t.Object.String())
}

func renderSubject(s string) string {
	if strings.HasPrefix(s, "_:") {
		return s
	}
	return "<" + s + ">"
}
