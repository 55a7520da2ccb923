package message

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/c360/livegraph/errors"
)

// ValueKind discriminates the term types an object position can hold.
type ValueKind int

const (
	// KindURI is an IRI reference, rendered as <iri>.
	KindURI ValueKind = iota
	// KindLiteral is a plain literal without language or datatype.
	KindLiteral
	// KindLangLiteral is a literal carrying a language tag, e.g. "chat"@fr.
	KindLangLiteral
	// KindTypedLiteral is a literal carrying a datatype IRI.
	KindTypedLiteral
	// KindBlankNode is a blank node reference, rendered as _:label.
	KindBlankNode
)

var kindNames = map[ValueKind]string{
	KindURI:          "uri",
	KindLiteral:      "literal",
	KindLangLiteral:  "lang_literal",
	KindTypedLiteral: "typed_literal",
	KindBlankNode:    "bnode",
}

// String returns the wire name of the kind
func (k ValueKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseValueKind maps a wire name back to its kind.
func ParseValueKind(name string) (ValueKind, error) {
	for kind, n := range kindNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, errors.WrapInvalid(errors.ErrInvalidData, "Value", "ParseValueKind",
		fmt.Sprintf("unknown value kind %q", name))
}

// Value is the object of a triple. It is a comparable value type, so two
// values are equal exactly when all their fields are equal.
type Value struct {
	Kind     ValueKind
	Lexical  string
	Language string
	Datatype string
}

// URI creates an IRI value.
func URI(iri string) Value {
	return Value{Kind: KindURI, Lexical: iri}
}

// Literal creates a plain literal.
func Literal(s string) Value {
	return Value{Kind: KindLiteral, Lexical: s}
}

// LangLiteral creates a language-tagged literal.
func LangLiteral(s, lang string) Value {
	return Value{Kind: KindLangLiteral, Lexical: s, Language: lang}
}

// TypedLiteral creates a literal with a datatype IRI.
func TypedLiteral(s, datatype string) Value {
	return Value{Kind: KindTypedLiteral, Lexical: s, Datatype: datatype}
}

// BlankNode creates a blank node reference.
func BlankNode(label string) Value {
	return Value{Kind: KindBlankNode, Lexical: label}
}

// IsResource reports whether the value can stand in subject position.
func (v Value) IsResource() bool {
	return v.Kind == KindURI || v.Kind == KindBlankNode
}

// String renders the value as an N-Triples term.
func (v Value) String() string {
	switch v.Kind {
	case KindURI:
		return "<" + v.Lexical + ">"
	case KindBlankNode:
		return "_:" + v.Lexical
	case KindLangLiteral:
		return quoteLiteral(v.Lexical) + "@" + v.Language
	case KindTypedLiteral:
		return quoteLiteral(v.Lexical) + "^^<" + v.Datatype + ">"
	default:
		return quoteLiteral(v.Lexical)
	}
}

// quoteLiteral renders s as an N-Triples string literal. Control characters
// without a short escape become \uXXXX, and invalid UTF-8 bytes become
// \uFFFD.
func quoteLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
			b.WriteString(`\uFFFD`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\f':
			b.WriteString(`\f`)
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\u%04X`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Float64 parses the lexical form of a literal as a number.
// URIs and blank nodes never convert.
func (v Value) Float64() (float64, bool) {
	if v.IsResource() {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Lexical), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

type valueJSON struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Language string `json:"lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// MarshalJSON encodes the value as {"type":..., "value":...}.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{
		Type:     v.Kind.String(),
		Value:    v.Lexical,
		Language: v.Language,
		Datatype: v.Datatype,
	})
}

// UnmarshalJSON accepts the object form produced by MarshalJSON. A bare JSON
// string is read as a plain literal.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Literal(s)
		return nil
	}

	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WrapInvalid(err, "Value", "UnmarshalJSON", "decode value")
	}

	kind := KindLiteral
	if raw.Type != "" {
		k, err := ParseValueKind(raw.Type)
		if err != nil {
			return err
		}
		kind = k
	}

	*v = Value{Kind: kind, Lexical: raw.Value, Language: raw.Language, Datatype: raw.Datatype}
	return nil
}
