package mapping

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/hugr-lab/manageql/mgmt"
)

// EncodeJSON renders v as a JSON document:
//   - composites become objects keyed by field name
//   - tabular values become arrays of row objects in row order
//   - arrays become JSON arrays
//   - scalars become JSON primitives, where chars are one-character
//     strings, object names use their canonical form and dates use
//     RFC 3339
func EncodeJSON(v mgmt.Value) (string, error) {
	data, err := json.Marshal(jsonValue(v))
	if err != nil {
		return "", fmt.Errorf("encode %s as json: %w", kindOf(v), err)
	}
	return string(data), nil
}

// DecodeJSON parses a document produced by EncodeJSON into maps, slices,
// strings, float64s, bools and nils.
func DecodeJSON(doc string) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

func jsonValue(v mgmt.Value) any {
	switch t := v.(type) {
	case nil:
		return nil
	case mgmt.Scalar:
		return jsonScalar(t)
	case mgmt.Array:
		items := make([]any, len(t.Items))
		for i, item := range t.Items {
			items[i] = jsonValue(item)
		}
		return items
	case mgmt.Composite:
		return jsonObject(t)
	case mgmt.Tabular:
		rows := make([]any, len(t.Rows))
		for i, row := range t.Rows {
			rows[i] = jsonObject(row)
		}
		return rows
	}
	return nil
}

func jsonObject(c mgmt.Composite) map[string]any {
	obj := make(map[string]any, len(c.Fields))
	for k, fv := range c.Fields {
		obj[k] = jsonValue(fv)
	}
	return obj
}

func jsonScalar(s mgmt.Scalar) any {
	switch s.Kind() {
	case mgmt.KindChar:
		return string(s.Interface().(rune))
	case mgmt.KindObjectName:
		return s.Interface().(mgmt.ObjectName).Canonical()
	case mgmt.KindDate:
		return s.Interface().(time.Time).Format(time.RFC3339Nano)
	}
	return s.Interface()
}

func kindOf(v mgmt.Value) mgmt.Kind {
	if v == nil {
		return mgmt.KindInvalid
	}
	return v.Kind()
}
