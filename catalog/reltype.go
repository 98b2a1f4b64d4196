package catalog

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// RelationalType is the type of a column in a table definition.
type RelationalType uint8

const (
	TypeString RelationalType = iota
	TypeInteger
	TypeLong
	TypeBoolean
	TypeStringArray
	TypeLongArray
	TypeIntegerArray
	TypeDoubleArray
	TypeBooleanArray
	TypeByteArray
	TypeCharArray
	TypeFloatArray
	TypeShortArray
	TypeJSON

	// Scalar coercion targets. The type mapper never produces these, but
	// a host may declare them.
	TypeDouble
	TypeFloat
	TypeShort
	TypeByte
	TypeChar
	TypeDate
	TypeTime
	TypeTimestamp
)

var relationalTypeNames = [...]string{
	TypeString:       "string",
	TypeInteger:      "integer",
	TypeLong:         "long",
	TypeBoolean:      "boolean",
	TypeStringArray:  "string[]",
	TypeLongArray:    "long[]",
	TypeIntegerArray: "integer[]",
	TypeDoubleArray:  "double[]",
	TypeBooleanArray: "boolean[]",
	TypeByteArray:    "byte[]",
	TypeCharArray:    "char[]",
	TypeFloatArray:   "float[]",
	TypeShortArray:   "short[]",
	TypeJSON:         "json",
	TypeDouble:       "double",
	TypeFloat:        "float",
	TypeShort:        "short",
	TypeByte:         "byte",
	TypeChar:         "char",
	TypeDate:         "date",
	TypeTime:         "time",
	TypeTimestamp:    "timestamp",
}

func (t RelationalType) String() string {
	if int(t) < len(relationalTypeNames) {
		return relationalTypeNames[t]
	}
	return fmt.Sprintf("RelationalType(%d)", t)
}

// ParseRelationalType is the inverse of RelationalType.String. Matching is
// case-insensitive.
func ParseRelationalType(s string) (RelationalType, error) {
	for i, name := range relationalTypeNames {
		if strings.EqualFold(name, s) {
			return RelationalType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown relational type %q", s)
}

// IsArray reports whether t is one of the array types. Byte arrays are
// binary values, not lists.
func (t RelationalType) IsArray() bool {
	return t >= TypeStringArray && t <= TypeShortArray && t != TypeByteArray
}

// ElemType returns the element type of an array type.
func (t RelationalType) ElemType() (RelationalType, bool) {
	switch t {
	case TypeStringArray:
		return TypeString, true
	case TypeLongArray:
		return TypeLong, true
	case TypeIntegerArray:
		return TypeInteger, true
	case TypeDoubleArray:
		return TypeDouble, true
	case TypeBooleanArray:
		return TypeBoolean, true
	case TypeByteArray:
		return TypeByte, true
	case TypeCharArray:
		return TypeChar, true
	case TypeFloatArray:
		return TypeFloat, true
	case TypeShortArray:
		return TypeShort, true
	}
	return 0, false
}

// ArrowType returns the Arrow type used to carry values of t.
// JSON values travel as their text; chars as one-character strings.
func (t RelationalType) ArrowType() arrow.DataType {
	switch t {
	case TypeString, TypeJSON, TypeChar:
		return arrow.BinaryTypes.String
	case TypeInteger:
		return arrow.PrimitiveTypes.Int32
	case TypeLong:
		return arrow.PrimitiveTypes.Int64
	case TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case TypeDouble:
		return arrow.PrimitiveTypes.Float64
	case TypeFloat:
		return arrow.PrimitiveTypes.Float32
	case TypeShort:
		return arrow.PrimitiveTypes.Int16
	case TypeByte:
		return arrow.PrimitiveTypes.Int8
	case TypeDate:
		return arrow.FixedWidthTypes.Date32
	case TypeTime:
		return arrow.FixedWidthTypes.Time64us
	case TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	case TypeByteArray:
		return arrow.BinaryTypes.Binary
	}
	if elem, ok := t.ElemType(); ok {
		return arrow.ListOf(elem.ArrowType())
	}
	return arrow.BinaryTypes.String
}
