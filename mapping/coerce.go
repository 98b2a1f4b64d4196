package mapping

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/mgmt"
)

// CoercionError reports a value that has no representation in the
// requested relational type.
type CoercionError struct {
	From mgmt.Kind
	To   catalog.RelationalType
	Err  error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %s value to %s: %v", e.From, e.To, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

var errNoTransform = errors.New("no transform available")

// Coerce converts a live attribute value to the Go representation of the
// expected relational type:
//
//	string, json, char              string
//	integer, long, short, byte      int32, int64, int16, int8
//	double, float                   float64, float32
//	boolean                         bool
//	date, time, timestamp           time.Time
//	byte[]                          []byte
//	other arrays                    []string, []int64, []int32, ...
//
// A nil value (attribute missing on the instance) yields nil. A nil element
// of an array yields the zero value of the element type, since list columns
// hold no null elements.
func Coerce(v mgmt.Value, expected catalog.RelationalType) (any, error) {
	out, err := coerce(v, expected)
	if err != nil {
		return nil, &CoercionError{From: kindOf(v), To: expected, Err: err}
	}
	return out, nil
}

func coerce(v mgmt.Value, expected catalog.RelationalType) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case mgmt.Scalar:
		return coerceScalar(t, expected)
	case mgmt.Array:
		if t.Elem.IsNested() || expected == catalog.TypeJSON || expected == catalog.TypeString {
			return coerceDocument(t, expected)
		}
		return coerceArray(t, expected)
	case mgmt.Composite, mgmt.Tabular:
		return coerceDocument(t, expected)
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

// coerceDocument handles values that only have a JSON representation.
func coerceDocument(v mgmt.Value, expected catalog.RelationalType) (any, error) {
	if expected != catalog.TypeJSON && expected != catalog.TypeString {
		return nil, errNoTransform
	}
	return EncodeJSON(v)
}

func coerceArray(a mgmt.Array, expected catalog.RelationalType) (any, error) {
	switch expected {
	case catalog.TypeStringArray:
		return coerceElems[string](a, catalog.TypeString)
	case catalog.TypeLongArray:
		return coerceElems[int64](a, catalog.TypeLong)
	case catalog.TypeIntegerArray:
		return coerceElems[int32](a, catalog.TypeInteger)
	case catalog.TypeDoubleArray:
		return coerceElems[float64](a, catalog.TypeDouble)
	case catalog.TypeBooleanArray:
		return coerceElems[bool](a, catalog.TypeBoolean)
	case catalog.TypeCharArray:
		return coerceElems[string](a, catalog.TypeChar)
	case catalog.TypeFloatArray:
		return coerceElems[float32](a, catalog.TypeFloat)
	case catalog.TypeShortArray:
		return coerceElems[int16](a, catalog.TypeShort)
	case catalog.TypeByteArray:
		bs, err := coerceElems[int8](a, catalog.TypeByte)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(bs))
		for i, b := range bs {
			out[i] = byte(b)
		}
		return out, nil
	}
	return nil, errNoTransform
}

// coerceElems coerces every element of a to elem. Missing elements become
// the zero value.
func coerceElems[T any](a mgmt.Array, elem catalog.RelationalType) ([]T, error) {
	out := make([]T, len(a.Items))
	for i, item := range a.Items {
		if item == nil {
			continue
		}
		v, err := Coerce(item, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v.(T)
	}
	return out, nil
}

func coerceScalar(s mgmt.Scalar, expected catalog.RelationalType) (any, error) {
	if expected == catalog.TypeJSON {
		return EncodeJSON(s)
	}

	x := s.Interface()
	switch s.Kind() {
	case mgmt.KindObjectName:
		x = x.(mgmt.ObjectName).Canonical()
	case mgmt.KindChar:
		x = string(x.(rune))
	}

	switch expected {
	case catalog.TypeString:
		return toString(x)
	case catalog.TypeChar:
		str, err := toString(x)
		if err != nil {
			return nil, err
		}
		for _, r := range str {
			return string(r), nil
		}
		return nil, errors.New("empty string has no character")
	case catalog.TypeBoolean:
		switch b := x.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
	case catalog.TypeLong:
		return toInt(x, math.MinInt64, math.MaxInt64, func(n int64) any { return n })
	case catalog.TypeInteger:
		return toInt(x, math.MinInt32, math.MaxInt32, func(n int64) any { return int32(n) })
	case catalog.TypeShort:
		return toInt(x, math.MinInt16, math.MaxInt16, func(n int64) any { return int16(n) })
	case catalog.TypeByte:
		return toInt(x, math.MinInt8, math.MaxInt8, func(n int64) any { return int8(n) })
	case catalog.TypeDouble:
		return toFloat(x)
	case catalog.TypeFloat:
		f, err := toFloat(x)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case catalog.TypeDate, catalog.TypeTime, catalog.TypeTimestamp:
		tm, err := toTime(x)
		if err != nil {
			return nil, err
		}
		return truncateTime(tm, expected), nil
	}
	return nil, errNoTransform
}

func toString(x any) (string, error) {
	switch v := x.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	}
	return "", errNoTransform
}

func toInt(x any, lo, hi int64, conv func(int64) any) (any, error) {
	var n int64
	switch v := x.(type) {
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float32, float64:
		f, _ := toFloat(v)
		// -lo is a power of two and exact as a float64; hi is not.
		if f != math.Trunc(f) || f < float64(lo) || f >= -float64(lo) {
			return nil, fmt.Errorf("%v is not an integer in range", f)
		}
		n = int64(f)
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		n = parsed
	case time.Time:
		n = v.UnixMilli()
	default:
		return nil, errNoTransform
	}
	if n < lo || n > hi {
		return nil, fmt.Errorf("%d out of range", n)
	}
	return conv(n), nil
}

func toFloat(x any) (float64, error) {
	switch v := x.(type) {
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, errNoTransform
}

func toTime(x any) (time.Time, error) {
	switch v := x.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	}
	return time.Time{}, errNoTransform
}

func truncateTime(t time.Time, expected catalog.RelationalType) time.Time {
	switch expected {
	case catalog.TypeDate:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case catalog.TypeTime:
		return time.Date(1970, time.January, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	return t
}
