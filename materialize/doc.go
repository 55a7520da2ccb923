// Package materialize maintains facts derived from a stream of graph edges.
//
// A Materializer holds an ordered list of rules, fixed at construction, and
// the deduplicated set of facts those rules have produced. MaterializeAdd
// runs every rule whose pattern matches the incoming triple and returns only
// the derived triples that were not already in the set. MaterializeRemove
// retracts exactly the given triple; it does not cascade to facts derived
// from it. Callers that want a base fact tracked, so that a later remove can
// report it, register an IdentityRule for it.
//
// Rules are values implementing Rule. PatternRule pairs a substring
// RulePattern with a pure derive function, and the package ships a small
// library (IdentityRule, InverseRule, SymmetricRule, TypePropagationRule)
// that Spec builds from configuration.
//
// If a derive function panics the materializer reports ErrStateUnavailable,
// classified fatal, from then on.
package materialize
