// Package message defines the graph edge vocabulary shared by every engine
// component: Triple and the Value term it points at.
//
// # Values
//
// A Value is one of five kinds:
//
//   - KindURI: an IRI such as urn:fleet:alpha
//   - KindLiteral: a plain string literal
//   - KindLangLiteral: a literal with a language tag
//   - KindTypedLiteral: a literal with an XSD (or other) datatype IRI
//   - KindBlankNode: a document-local node label
//
// Values and Triples are plain comparable structs. Two triples are equal when
// their subject, predicate and object are equal, which lets them serve as map
// keys without a separate identity function.
//
// # Wire Form
//
// JSON encodes a triple as
//
//	{"subject":"urn:a","predicate":"urn:p","object":{"type":"uri","value":"urn:b"}}
//
// and a bare JSON string in the object position decodes as a plain literal.
// String renders N-Triples text, used by graph exports and logs.
package message
