package sqlast

import (
	"errors"
	"testing"
)

// SELECT "Uptime", upper(Name) AS n, 1 FROM "java.lang:type=Runtime"
const simpleSelect = `{
	"error": false,
	"statements": [{
		"node": {
			"type": "SELECT_NODE",
			"modifiers": [],
			"cte_map": {"map": []},
			"select_list": [
				{"class": "COLUMN_REF", "type": "COLUMN_REF", "alias": "", "query_location": 7, "column_names": ["Uptime"]},
				{"class": "FUNCTION", "type": "FUNCTION", "alias": "n", "query_location": 17, "function_name": "upper", "schema": "",
				 "children": [{"class": "COLUMN_REF", "type": "COLUMN_REF", "alias": "", "query_location": 23, "column_names": ["Name"]}]},
				{"class": "CONSTANT", "type": "VALUE_CONSTANT", "alias": "", "query_location": 35,
				 "value": {"type": {"id": "INTEGER", "type_info": null}, "is_null": false, "value": 1}}
			],
			"from_table": {
				"type": "BASE_TABLE", "alias": "", "sample": null, "query_location": 42,
				"schema_name": "", "table_name": "java.lang:type=Runtime", "column_name_alias": [], "catalog_name": ""
			},
			"where_clause": null,
			"group_expressions": [],
			"group_sets": [],
			"aggregate_handling": "STANDARD_HANDLING",
			"having": null,
			"sample": null,
			"qualify": null
		}
	}]
}`

// WITH w AS (SELECT * FROM "ns:*") SELECT * FROM w JOIN jmx.t ON true
const cteJoin = `{
	"error": false,
	"statements": [{
		"node": {
			"type": "SELECT_NODE",
			"cte_map": {"map": [{"key": "w", "value": {"query": {"node": {
				"type": "SELECT_NODE",
				"cte_map": {"map": []},
				"select_list": [{"class": "STAR", "type": "STAR", "alias": ""}],
				"from_table": {"type": "BASE_TABLE", "alias": "", "query_location": 24, "schema_name": "", "table_name": "ns:*", "catalog_name": ""}
			}}}}]},
			"select_list": [{"class": "STAR", "type": "STAR", "alias": ""}],
			"from_table": {
				"type": "JOIN", "alias": "",
				"left": {"type": "BASE_TABLE", "alias": "", "query_location": 47, "schema_name": "", "table_name": "w", "catalog_name": ""},
				"right": {"type": "BASE_TABLE", "alias": "", "query_location": 54, "schema_name": "jmx", "table_name": "t", "catalog_name": ""}
			}
		}
	}]
}`

// TestParseSimpleSelect tests table and select list extraction.
func TestParseSimpleSelect(t *testing.T) {
	stmts, err := Parse([]byte(simpleSelect))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	stmt := stmts[0]

	if len(stmt.Tables) != 1 || stmt.Tables[0].Table != "java.lang:type=Runtime" {
		t.Fatalf("unexpected tables: %+v", stmt.Tables)
	}
	if stmt.Tables[0].Location != 42 {
		t.Errorf("expected location 42, got %d", stmt.Tables[0].Location)
	}

	if len(stmt.Selects) != 1 {
		t.Fatalf("expected 1 select node, got %d", len(stmt.Selects))
	}
	sel := stmt.Selects[0]
	if sel.From == nil || sel.From.Table != "java.lang:type=Runtime" {
		t.Fatalf("unexpected from: %+v", sel.From)
	}
	if len(sel.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(sel.Items))
	}
	if sel.Items[0].Class != ClassColumnRef || sel.Items[0].Column() != "Uptime" {
		t.Errorf("unexpected first item: %+v", sel.Items[0])
	}
	fn := sel.Items[1]
	if fn.FunctionName != "upper" || fn.Alias != "n" || len(fn.Children) != 1 || fn.Children[0].Column() != "Name" {
		t.Errorf("unexpected function item: %+v", fn)
	}
	if v, ok := sel.Items[2].Value.(float64); !ok || v != 1 {
		t.Errorf("unexpected constant: %#v", sel.Items[2].Value)
	}
}

// TestParseCTEAndJoin tests that CTE references are excluded and refs are ordered.
func TestParseCTEAndJoin(t *testing.T) {
	refs, err := TableRefs([]byte(cteJoin))
	if err != nil {
		t.Fatalf("TableRefs failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %+v", refs)
	}
	if refs[0].Table != "ns:*" {
		t.Errorf("expected ns:* first, got %q", refs[0].Table)
	}
	if refs[1].Qualified() != "jmx.t" {
		t.Errorf("expected jmx.t second, got %q", refs[1].Qualified())
	}
}

// TestParseError tests that parser errors are reported as ParseError.
func TestParseError(t *testing.T) {
	_, err := Parse([]byte(`{"error":true,"error_type":"PARSER","error_message":"syntax error at or near \"FORM\""}`))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Type != "PARSER" {
		t.Errorf("expected PARSER, got %q", pe.Type)
	}

	if _, err := Parse([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestQualified(t *testing.T) {
	tests := []struct {
		ref  TableRef
		want string
	}{
		{TableRef{Table: "t"}, "t"},
		{TableRef{Schema: "jmx", Table: "t"}, "jmx.t"},
		{TableRef{Catalog: "c", Schema: "s", Table: "t"}, "c.s.t"},
	}
	for _, tt := range tests {
		if got := tt.ref.Qualified(); got != tt.want {
			t.Errorf("Qualified() = %q, want %q", got, tt.want)
		}
	}
}
