package materialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/message"
)

func TestRulePattern_Matches(t *testing.T) {
	tr := message.NewTriple("urn:drone:1", "urn:vocab:batteryLevel", message.Literal("80"))

	tests := []struct {
		name    string
		pattern RulePattern
		want    bool
	}{
		{"empty matches anything", RulePattern{}, true},
		{"subject substring", RulePattern{Subject: "drone"}, true},
		{"predicate substring", RulePattern{Predicate: "battery"}, true},
		{"both must match", RulePattern{Subject: "drone", Predicate: "speed"}, false},
		{"subject mismatch", RulePattern{Subject: "fleet"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Matches(tr))
		})
	}
}

func TestInverseRule(t *testing.T) {
	r := InverseRule("children", "urn:p:parent", "urn:p:child")

	assert.Equal(t, []message.Triple{
		message.NewTriple("urn:b", "urn:p:child", message.URI("urn:a")),
	}, r.Derive(message.NewTriple("urn:a", "urn:p:parent", message.URI("urn:b"))))

	assert.Equal(t, []message.Triple{
		message.NewTriple("_:n1", "urn:p:child", message.URI("urn:a")),
	}, r.Derive(message.NewTriple("urn:a", "urn:p:parent", message.BlankNode("n1"))))

	derived := r.Derive(message.NewTriple("_:b1", "urn:p:parent", message.URI("urn:x")))
	require.Len(t, derived, 1)
	assert.Equal(t, message.NewTriple("urn:x", "urn:p:child", message.BlankNode("b1")), derived[0])
	assert.Equal(t, message.KindBlankNode, derived[0].Object.Kind)
	assert.Equal(t, "<urn:x> <urn:p:child> _:b1 .", derived[0].String())

	assert.Empty(t, r.Derive(message.NewTriple("urn:a", "urn:p:parent", message.Literal("b"))))
	assert.Empty(t, r.Derive(message.NewTriple("urn:a", "urn:p:parentish", message.URI("urn:b"))))
}

func TestSymmetricRule(t *testing.T) {
	r := SymmetricRule("peers", "urn:p:peer")
	assert.Equal(t, []message.Triple{
		message.NewTriple("urn:b", "urn:p:peer", message.URI("urn:a")),
	}, r.Derive(message.NewTriple("urn:a", "urn:p:peer", message.URI("urn:b"))))

	assert.Equal(t, []message.Triple{
		message.NewTriple("_:n2", "urn:p:peer", message.BlankNode("n1")),
	}, r.Derive(message.NewTriple("_:n1", "urn:p:peer", message.BlankNode("n2"))))
}

func TestTypePropagationRule(t *testing.T) {
	r := TypePropagationRule("vehicles", "urn:c:Drone", "urn:c:Vehicle")

	drone := message.NewTriple("urn:d:1", message.RDFType, message.URI("urn:c:Drone"))
	require.True(t, r.Matches(drone))
	assert.Equal(t, []message.Triple{
		message.NewTriple("urn:d:1", message.RDFType, message.URI("urn:c:Vehicle")),
	}, r.Derive(drone))

	assert.Empty(t, r.Derive(message.NewTriple("urn:d:1", message.RDFType, message.URI("urn:c:Boat"))))
}

func TestNewRule_NilDerive(t *testing.T) {
	r := NewRule("noop", RulePattern{}, nil)
	assert.Nil(t, r.Derive(message.NewTriple("s", "p", message.Literal("o"))))
	assert.Equal(t, "noop", r.Name())
}

func TestBuildRules(t *testing.T) {
	rules, err := BuildRules([]Spec{
		{Name: "track", Type: "identity", Predicate: "position"},
		{Name: "children", Type: "inverse", Predicate: "urn:p:parent", Inverse: "urn:p:child"},
		{Name: "peers", Type: "Symmetric", Predicate: "urn:p:peer"},
		{Name: "vehicles", Type: "subclass", From: "urn:c:Drone", To: "urn:c:Vehicle"},
	})
	require.NoError(t, err)
	require.Len(t, rules, 4)
	assert.Equal(t, "peers", rules[2].Name())

	invalid := []struct {
		name  string
		specs []Spec
	}{
		{"missing name", []Spec{{Type: "identity"}}},
		{"unknown type", []Spec{{Name: "x", Type: "transitive"}}},
		{"inverse without target", []Spec{{Name: "x", Type: "inverse", Predicate: "p"}}},
		{"symmetric without predicate", []Spec{{Name: "x", Type: "symmetric"}}},
		{"subclass without to", []Spec{{Name: "x", Type: "subclass", From: "a"}}},
		{"duplicate", []Spec{{Name: "x", Type: "identity"}, {Name: "x", Type: "identity"}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRules(tt.specs)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}
