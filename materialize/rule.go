package materialize

import (
	"strings"

	"github.com/c360/livegraph/message"
)

// Rule derives zero or more facts from a single input triple. Derive must be
// a pure function of its argument.
type Rule interface {
	Name() string
	Matches(t message.Triple) bool
	Derive(t message.Triple) []message.Triple
}

// DeriveFunc computes derived triples from a matching input.
type DeriveFunc func(t message.Triple) []message.Triple

// RulePattern selects input triples by substring. An empty field matches anything.
type RulePattern struct {
	Subject   string `json:"subject,omitempty"`
	Predicate string `json:"predicate,omitempty"`
}

// Matches reports whether t satisfies every non-empty matcher.
func (p RulePattern) Matches(t message.Triple) bool {
	if p.Subject != "" && !strings.Contains(t.Subject, p.Subject) {
		return false
	}
	if p.Predicate != "" && !strings.Contains(t.Predicate, p.Predicate) {
		return false
	}
	return true
}

// PatternRule is a Rule built from a pattern and a derive function.
type PatternRule struct {
	name    string
	pattern RulePattern
	derive  DeriveFunc
}

// NewRule creates a rule. A nil derive function derives nothing.
func NewRule(name string, pattern RulePattern, derive DeriveFunc) *PatternRule {
	return &PatternRule{name: name, pattern: pattern, derive: derive}
}

func (r *PatternRule) Name() string {
	return r.name
}

// Pattern returns the rule's input selector.
func (r *PatternRule) Pattern() RulePattern {
	return r.pattern
}

func (r *PatternRule) Matches(t message.Triple) bool {
	return r.pattern.Matches(t)
}

func (r *PatternRule) Derive(t message.Triple) []message.Triple {
	if r.derive == nil {
		return nil
	}
	return r.derive(t)
}

// IdentityRule tracks matching triples themselves as materialized facts.
func IdentityRule(name string, pattern RulePattern) *PatternRule {
	return NewRule(name, pattern, func(t message.Triple) []message.Triple {
		return []message.Triple{t}
	})
}

// InverseRule derives (o inverse s) from (s predicate o) when o is a node.
// Literal objects cannot become subjects and derive nothing.
func InverseRule(name, predicate, inverse string) *PatternRule {
	return NewRule(name, RulePattern{Predicate: predicate}, func(t message.Triple) []message.Triple {
		if t.Predicate != predicate || !t.Object.IsResource() {
			return nil
		}
		return []message.Triple{message.NewTriple(nodeRef(t.Object), inverse, subjectValue(t.Subject))}
	})
}

// SymmetricRule derives (o predicate s) from (s predicate o).
func SymmetricRule(name, predicate string) *PatternRule {
	return InverseRule(name, predicate, predicate)
}

// TypePropagationRule derives (s rdf:type to) from (s rdf:type from), for
// example a subclass implying its superclass.
func TypePropagationRule(name, from, to string) *PatternRule {
	return NewRule(name, RulePattern{Predicate: message.RDFType}, func(t message.Triple) []message.Triple {
		if t.Predicate != message.RDFType || !t.Object.IsResource() || t.Object.Lexical != from {
			return nil
		}
		return []message.Triple{message.NewTriple(t.Subject, message.RDFType, message.URI(to))}
	})
}

// nodeRef renders a resource object as a subject string, keeping blank
// nodes in _:label form.
func nodeRef(v message.Value) string {
	if v.Kind == message.KindBlankNode {
		return "_:" + v.Lexical
	}
	return v.Lexical
}

// subjectValue is the inverse of nodeRef: a _:label subject becomes a blank
// node value, anything else an IRI.
func subjectValue(subject string) message.Value {
	if label, ok := strings.CutPrefix(subject, "_:"); ok {
		return message.BlankNode(label)
	}
	return message.URI(subject)
}
