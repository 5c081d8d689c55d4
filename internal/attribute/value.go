// Package attribute models dBASE attribute cells and decodes them into plain scalars.
package attribute

import (
	"strconv"
	"strings"
)

// Kind is the type tag of an attribute cell as declared by its dBASE field.
type Kind int

const (
	KindOther Kind = iota
	KindNumeric
	KindCharacter
	KindLogical
	KindDate
	KindMemo
	KindDateTime
)

var kindNames = [...]string{
	KindOther:     "Other",
	KindNumeric:   "Numeric",
	KindCharacter: "Character",
	KindLogical:   "Logical",
	KindDate:      "Date",
	KindMemo:      "Memo",
	KindDateTime:  "DateTime",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Other"
	}
	return kindNames[k]
}

// KindFromFieldType maps a dBASE field type byte to a Kind.
// N and F are both stored as decimal text and share the numeric tag with the
// binary integer, double and currency types.
func KindFromFieldType(t byte) Kind {
	switch t {
	case 'N', 'F', 'n', 'f', 'I', 'B', 'O', 'Y':
		return KindNumeric
	case 'C', 'c':
		return KindCharacter
	case 'L', 'l':
		return KindLogical
	case 'D', 'd':
		return KindDate
	case 'M', 'm':
		return KindMemo
	case 'T':
		return KindDateTime
	default:
		return KindOther
	}
}

// Value is one typed attribute cell.
type Value struct {
	Kind Kind
	Raw  string // trimmed cell text
	Null bool
}

// NewValue builds a Value from the trimmed text of a cell of the given kind.
func NewValue(kind Kind, raw string) Value {
	raw = strings.Trim(raw, " \x00")
	return Value{Kind: kind, Raw: raw, Null: isNull(kind, raw)}
}

// Numeric returns a present numeric value.
func Numeric(f float64) Value {
	return Value{Kind: KindNumeric, Raw: strconv.FormatFloat(f, 'f', -1, 64)}
}

// NullNumeric returns an empty numeric value.
func NullNumeric() Value { return Value{Kind: KindNumeric, Null: true} }

// Character returns a present character value.
func Character(s string) Value { return Value{Kind: KindCharacter, Raw: s} }

// NullCharacter returns an empty character value.
func NullCharacter() Value { return Value{Kind: KindCharacter, Null: true} }

// Null returns the empty value of the given kind.
func Null(kind Kind) Value { return Value{Kind: kind, Null: true} }

func isNull(kind Kind, raw string) bool {
	switch kind {
	case KindNumeric:
		// dBASE writers fill overflowing or missing numbers with asterisks
		return raw == "" || strings.Trim(raw, "*") == ""
	case KindLogical:
		return raw == "" || raw == "?"
	case KindDate:
		return raw == "" || strings.Trim(raw, "0") == ""
	default:
		return raw == ""
	}
}

// String returns a display form used in logs, e.g. Numeric(3.14) or Character(null).
func (v Value) String() string {
	if v.Null {
		return v.Kind.String() + "(null)"
	}
	if v.Kind == KindCharacter {
		return v.Kind.String() + "(" + strconv.Quote(v.Raw) + ")"
	}
	return v.Kind.String() + "(" + v.Raw + ")"
}
