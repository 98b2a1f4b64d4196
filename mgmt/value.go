package mgmt

import (
	"fmt"
	"slices"
	"time"
)

// Kind identifies the shape of a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindLong
	KindBoolean
	KindDouble
	KindFloat
	KindShort
	KindByte
	KindChar
	KindObjectName
	KindDate
	KindArray
	KindComposite
	KindTabular
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindString:     "string",
	KindInt:        "int",
	KindLong:       "long",
	KindBoolean:    "boolean",
	KindDouble:     "double",
	KindFloat:      "float",
	KindShort:      "short",
	KindByte:       "byte",
	KindChar:       "char",
	KindObjectName: "objectname",
	KindDate:       "date",
	KindArray:      "array",
	KindComposite:  "composite",
	KindTabular:    "tabular",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s && k != int(KindInvalid) {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// IsNested reports whether values of this kind are encoded as JSON
// documents rather than scalars.
func (k Kind) IsNested() bool { return k == KindComposite || k == KindTabular }

// Value is a live attribute value: a Scalar, an Array, a Composite or a
// Tabular. A nil Value means the attribute has no value.
type Value interface {
	Kind() Kind
}

// Scalar is a single primitive value. Use the constructors (String, Int,
// Long, ...) to build one.
type Scalar struct {
	kind Kind
	v    any
}

func (s Scalar) Kind() Kind { return s.kind }

// Interface returns the Go value held by s: string, int32, int64, bool,
// float64, float32, int16, int8, rune, ObjectName or time.Time.
func (s Scalar) Interface() any { return s.v }

func String(v string) Scalar { return Scalar{kind: KindString, v: v} }
func Int(v int32) Scalar { return Scalar{kind: KindInt, v: v} }
func Long(v int64) Scalar { return Scalar{kind: KindLong, v: v} }
func Bool(v bool) Scalar { return Scalar{kind: KindBoolean, v: v} }
func Double(v float64) Scalar { return Scalar{kind: KindDouble, v: v} }
func Float(v float32) Scalar { return Scalar{kind: KindFloat, v: v} }
func Short(v int16) Scalar { return Scalar{kind: KindShort, v: v} }
func Byte(v int8) Scalar { return Scalar{kind: KindByte, v: v} }
func Char(v rune) Scalar { return Scalar{kind: KindChar, v: v} }
func Name(v ObjectName) Scalar { return Scalar{kind: KindObjectName, v: v} }
func Date(v time.Time) Scalar { return Scalar{kind: KindDate, v: v} }
func scalarOf(k Kind, v any) Value { return Scalar{kind: k, v: v} }

// Array is an ordered sequence of values sharing one element kind.
type Array struct {
	Elem  Kind
	Items []Value
}

func (Array) Kind() Kind { return KindArray }

// Strings builds a string array.
func Strings(vs ...string) Array {
	items := make([]Value, len(vs))
	for i, v := range vs {
		items[i] = String(v)
	}
	return Array{Elem: KindString, Items: items}
}

// Longs builds a long array.
func Longs(vs ...int64) Array {
	items := make([]Value, len(vs))
	for i, v := range vs {
		items[i] = Long(v)
	}
	return Array{Elem: KindLong, Items: items}
}

// Composite is a record of named fields.
type Composite struct {
	TypeName string
	Fields   map[string]Value
}

func (Composite) Kind() Kind { return KindComposite }

// Keys returns the field names in sorted order.
func (c Composite) Keys() []string {
	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the value of a field, or nil.
func (c Composite) Get(key string) Value { return c.Fields[key] }

// Tabular is a collection of composite rows identified by the values of
// the Index fields.
type Tabular struct {
	TypeName string
	Index    []string
	Rows     []Composite
}

func (Tabular) Kind() Kind { return KindTabular }
