package mgmt

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// WireValue is the JSON representation of a Value used by the agent
// protocol. Exactly one payload field is set, selected by Kind.
type WireValue struct {
	Kind   string                `json:"kind"`
	Scalar json.RawMessage       `json:"scalar,omitempty"`
	Elem   string                `json:"elem,omitempty"`
	Items  []*WireValue          `json:"items,omitempty"`
	Type   string                `json:"type,omitempty"`
	Fields map[string]*WireValue `json:"fields,omitempty"`
	Index  []string              `json:"index,omitempty"`
	Rows   []*WireValue          `json:"rows,omitempty"`
}

// EncodeValue converts v to its wire form. A nil Value encodes as nil.
func EncodeValue(v Value) (*WireValue, error) {
	if v == nil {
		return nil, nil
	}
	w := &WireValue{Kind: v.Kind().String()}
	switch t := v.(type) {
	case Scalar:
		var payload any
		switch t.kind {
		case KindChar:
			payload = string(t.v.(rune))
		case KindObjectName:
			payload = t.v.(ObjectName).Canonical()
		case KindDate:
			payload = t.v.(time.Time).Format(time.RFC3339Nano)
		default:
			payload = t.v
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t.kind, err)
		}
		w.Scalar = raw
	case Array:
		w.Elem = t.Elem.String()
		w.Items = make([]*WireValue, len(t.Items))
		for i, item := range t.Items {
			enc, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			w.Items[i] = enc
		}
	case Composite:
		enc, err := encodeFields(t)
		if err != nil {
			return nil, err
		}
		w.Type = t.TypeName
		w.Fields = enc.Fields
	case Tabular:
		w.Type = t.TypeName
		w.Index = t.Index
		w.Rows = make([]*WireValue, len(t.Rows))
		for i, row := range t.Rows {
			enc, err := encodeFields(row)
			if err != nil {
				return nil, err
			}
			w.Rows[i] = enc
		}
	default:
		return nil, fmt.Errorf("encode: unsupported value %T", v)
	}
	return w, nil
}

func encodeFields(c Composite) (*WireValue, error) {
	w := &WireValue{Kind: KindComposite.String(), Type: c.TypeName, Fields: make(map[string]*WireValue, len(c.Fields))}
	for k, fv := range c.Fields {
		enc, err := EncodeValue(fv)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		w.Fields[k] = enc
	}
	return w, nil
}

// DecodeValue converts a wire value back into a Value.
func DecodeValue(w *WireValue) (Value, error) {
	if w == nil {
		return nil, nil
	}
	kind, ok := ParseKind(w.Kind)
	if !ok {
		return nil, fmt.Errorf("decode: unknown kind %q", w.Kind)
	}

	switch kind {
	case KindArray:
		elem, ok := ParseKind(w.Elem)
		if !ok {
			return nil, fmt.Errorf("decode: unknown array element kind %q", w.Elem)
		}
		arr := Array{Elem: elem, Items: make([]Value, len(w.Items))}
		for i, item := range w.Items {
			v, err := DecodeValue(item)
			if err != nil {
				return nil, err
			}
			arr.Items[i] = v
		}
		return arr, nil
	case KindComposite:
		return decodeFields(w)
	case KindTabular:
		tab := Tabular{TypeName: w.Type, Index: w.Index, Rows: make([]Composite, len(w.Rows))}
		for i, row := range w.Rows {
			c, err := decodeFields(row)
			if err != nil {
				return nil, err
			}
			tab.Rows[i] = c
		}
		return tab, nil
	}
	return decodeScalar(kind, w.Scalar)
}

func decodeFields(w *WireValue) (Composite, error) {
	c := Composite{TypeName: w.Type, Fields: make(map[string]Value, len(w.Fields))}
	for k, fw := range w.Fields {
		v, err := DecodeValue(fw)
		if err != nil {
			return Composite{}, fmt.Errorf("field %s: %w", k, err)
		}
		c.Fields[k] = v
	}
	return c, nil
}

func decodeScalar(kind Kind, raw json.RawMessage) (Value, error) {
	var err error
	unmarshal := func(dst any) {
		if err == nil {
			err = json.Unmarshal(raw, dst)
		}
	}

	var v any
	switch kind {
	case KindString:
		var s string
		unmarshal(&s)
		v = s
	case KindInt:
		var i int32
		unmarshal(&i)
		v = i
	case KindLong:
		var i int64
		unmarshal(&i)
		v = i
	case KindBoolean:
		var b bool
		unmarshal(&b)
		v = b
	case KindDouble:
		var f float64
		unmarshal(&f)
		v = f
	case KindFloat:
		var f float32
		unmarshal(&f)
		v = f
	case KindShort:
		var i int16
		unmarshal(&i)
		v = i
	case KindByte:
		var i int8
		unmarshal(&i)
		v = i
	case KindChar:
		var s string
		unmarshal(&s)
		if err == nil {
			r := []rune(s)
			if len(r) != 1 {
				return nil, fmt.Errorf("decode char: %q is not one character", s)
			}
			v = r[0]
		}
	case KindObjectName:
		var s string
		unmarshal(&s)
		if err == nil {
			v, err = ParseObjectName(s)
		}
	case KindDate:
		var s string
		unmarshal(&s)
		if err == nil {
			v, err = time.Parse(time.RFC3339Nano, s)
		}
	default:
		return nil, fmt.Errorf("decode: %s is not a scalar kind", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return scalarOf(kind, v), nil
}
