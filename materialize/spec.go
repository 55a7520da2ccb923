package materialize

import (
	"fmt"
	"strings"

	"github.com/c360/livegraph/errors"
)

// Rule types understood by Spec.
const (
	TypeIdentity  = "identity"
	TypeInverse   = "inverse"
	TypeSymmetric = "symmetric"
	TypeSubclass  = "subclass"
)

// Spec is the configuration form of a rule.
//
//	{"name":"track-positions","type":"identity","predicate":"position"}
//	{"name":"children","type":"inverse","predicate":"urn:p:parent","inverse":"urn:p:child"}
//	{"name":"peers","type":"symmetric","predicate":"urn:p:peer"}
//	{"name":"drones-are-vehicles","type":"subclass","from":"urn:c:Drone","to":"urn:c:Vehicle"}
type Spec struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Subject   string `json:"subject,omitempty"`
	Predicate string `json:"predicate,omitempty"`
	Inverse   string `json:"inverse,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

type builder func(s Spec) (Rule, error)

var builders = map[string]builder{
	TypeIdentity: func(s Spec) (Rule, error) {
		return IdentityRule(s.Name, RulePattern{Subject: s.Subject, Predicate: s.Predicate}), nil
	},
	TypeInverse: func(s Spec) (Rule, error) {
		if s.Predicate == "" || s.Inverse == "" {
			return nil, specError(s, "inverse rules need predicate and inverse")
		}
		return InverseRule(s.Name, s.Predicate, s.Inverse), nil
	},
	TypeSymmetric: func(s Spec) (Rule, error) {
		if s.Predicate == "" {
			return nil, specError(s, "symmetric rules need predicate")
		}
		return SymmetricRule(s.Name, s.Predicate), nil
	},
	TypeSubclass: func(s Spec) (Rule, error) {
		if s.From == "" || s.To == "" {
			return nil, specError(s, "subclass rules need from and to")
		}
		return TypePropagationRule(s.Name, s.From, s.To), nil
	},
}

// Build creates the rule the spec describes.
func (s Spec) Build() (Rule, error) {
	if strings.TrimSpace(s.Name) == "" {
		return nil, specError(s, "name is required")
	}
	build, ok := builders[strings.ToLower(s.Type)]
	if !ok {
		return nil, specError(s, fmt.Sprintf("unknown rule type %q", s.Type))
	}
	return build(s)
}

// BuildRules builds specs in order, rejecting duplicate names.
func BuildRules(specs []Spec) ([]Rule, error) {
	seen := make(map[string]bool, len(specs))
	rules := make([]Rule, 0, len(specs))
	for _, s := range specs {
		if seen[s.Name] {
			return nil, specError(s, "duplicate rule name")
		}
		seen[s.Name] = true

		r, err := s.Build()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func specError(s Spec, msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Spec", "Build",
		fmt.Sprintf("rule %q: %s", s.Name, msg))
}
