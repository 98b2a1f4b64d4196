// Package sqlast reads the statement trees DuckDB produces with
// json_serialize_sql.
//
// Only the parts needed to rewrite and plan queries over management
// objects are decoded: base table references and the select lists of
// SELECT nodes. Everything else in the tree is walked but ignored.
package sqlast

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// Node types and expression classes used by DuckDB's serializer.
const (
	NodeBaseTable = "BASE_TABLE"
	NodeSelect    = "SELECT_NODE"

	ClassColumnRef = "COLUMN_REF"
	ClassFunction  = "FUNCTION"
	ClassConstant  = "CONSTANT"
	ClassStar      = "STAR"
	ClassCast      = "CAST"
)

// TableRef is a base table referenced by a statement.
type TableRef struct {
	Catalog string
	Schema  string
	Table   string
	Alias   string

	// Location is the byte offset of the reference in the query text.
	Location int
}

// Qualified returns the dotted name as written, without quoting.
func (r TableRef) Qualified() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Catalog, r.Schema, r.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// SelectItem is one expression of a select list.
type SelectItem struct {
	Class string
	Alias string

	// ColumnNames holds the qualified name parts of a COLUMN_REF.
	ColumnNames []string

	// FunctionName and Children describe FUNCTION and CAST expressions.
	FunctionName string
	Children     []SelectItem

	// Value is the literal of a CONSTANT.
	Value any
}

// Column returns the unqualified column name of a COLUMN_REF.
func (i SelectItem) Column() string {
	if len(i.ColumnNames) == 0 {
		return ""
	}
	return i.ColumnNames[len(i.ColumnNames)-1]
}

// SelectNode is a SELECT over at most one base table.
type SelectNode struct {
	// From is nil when the node does not select from a base table
	// (joins, subqueries, table functions).
	From  *TableRef
	Items []SelectItem
}

// Statement is one parsed statement.
type Statement struct {
	// Tables are the base tables referenced anywhere in the statement,
	// CTE references excluded, ordered by position in the query text.
	Tables  []TableRef
	Selects []SelectNode
}

// ParseError is the error reported by DuckDB's parser.
type ParseError struct {
	Type    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sqlast: %s error: %s", strings.ToLower(e.Type), e.Message)
}

// rawResult is the top-level document of json_serialize_sql.
type rawResult struct {
	Error        bool              `json:"error"`
	ErrorType    string            `json:"error_type"`
	ErrorMessage string            `json:"error_message"`
	Statements   []json.RawMessage `json:"statements"`
}

// Parse decodes the output of json_serialize_sql.
// Returns *ParseError when DuckDB rejected the query.
func Parse(data []byte) ([]Statement, error) {
	var raw rawResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sqlast: invalid JSON: %w", err)
	}
	if raw.Error {
		return nil, &ParseError{Type: raw.ErrorType, Message: raw.ErrorMessage}
	}

	stmts := make([]Statement, 0, len(raw.Statements))
	for i, data := range raw.Statements {
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("sqlast: error parsing statement %d: %w", i, err)
		}
		stmts = append(stmts, parseStatement(tree))
	}
	return stmts, nil
}

// TableRefs returns the base tables of all statements in data.
func TableRefs(data []byte) ([]TableRef, error) {
	stmts, err := Parse(data)
	if err != nil {
		return nil, err
	}
	var refs []TableRef
	for _, s := range stmts {
		refs = append(refs, s.Tables...)
	}
	return refs, nil
}

func parseStatement(tree any) Statement {
	ctes := make(map[string]bool)
	var stmt Statement

	walk(tree, func(obj map[string]any) {
		if cm, ok := obj["cte_map"].(map[string]any); ok {
			entries, _ := cm["map"].([]any)
			for _, e := range entries {
				if entry, ok := e.(map[string]any); ok {
					if name, ok := entry["key"].(string); ok {
						ctes[strings.ToLower(name)] = true
					}
				}
			}
		}

		switch stringField(obj, "type") {
		case NodeBaseTable:
			stmt.Tables = append(stmt.Tables, parseTableRef(obj))
		case NodeSelect:
			stmt.Selects = append(stmt.Selects, parseSelectNode(obj))
		}
	})

	stmt.Tables = slices.DeleteFunc(stmt.Tables, func(r TableRef) bool {
		return r.Schema == "" && r.Catalog == "" && ctes[strings.ToLower(r.Table)]
	})
	slices.SortStableFunc(stmt.Tables, func(a, b TableRef) int { return cmp.Compare(a.Location, b.Location) })
	return stmt
}

func parseTableRef(obj map[string]any) TableRef {
	ref := TableRef{
		Catalog: stringField(obj, "catalog_name"),
		Schema:  stringField(obj, "schema_name"),
		Table:   stringField(obj, "table_name"),
		Alias:   stringField(obj, "alias"),
	}
	if loc, ok := obj["query_location"].(float64); ok {
		ref.Location = int(loc)
	}
	return ref
}

func parseSelectNode(obj map[string]any) SelectNode {
	var node SelectNode
	if from, ok := obj["from_table"].(map[string]any); ok && stringField(from, "type") == NodeBaseTable {
		ref := parseTableRef(from)
		node.From = &ref
	}
	list, _ := obj["select_list"].([]any)
	for _, e := range list {
		if expr, ok := e.(map[string]any); ok {
			node.Items = append(node.Items, parseSelectItem(expr))
		}
	}
	return node
}

func parseSelectItem(expr map[string]any) SelectItem {
	item := SelectItem{
		Class: stringField(expr, "class"),
		Alias: stringField(expr, "alias"),
	}

	switch item.Class {
	case ClassColumnRef:
		names, _ := expr["column_names"].([]any)
		for _, n := range names {
			if s, ok := n.(string); ok {
				item.ColumnNames = append(item.ColumnNames, s)
			}
		}
	case ClassFunction:
		item.FunctionName = stringField(expr, "function_name")
		children, _ := expr["children"].([]any)
		for _, c := range children {
			if child, ok := c.(map[string]any); ok {
				item.Children = append(item.Children, parseSelectItem(child))
			}
		}
	case ClassCast:
		item.FunctionName = "cast"
		if child, ok := expr["child"].(map[string]any); ok {
			item.Children = append(item.Children, parseSelectItem(child))
		}
	case ClassConstant:
		if v, ok := expr["value"].(map[string]any); ok {
			if isNull, _ := v["is_null"].(bool); !isNull {
				item.Value = v["value"]
			}
		}
	}
	return item
}

// walk calls fn for every JSON object in tree, parents first.
func walk(tree any, fn func(map[string]any)) {
	switch v := tree.(type) {
	case map[string]any:
		fn(v)
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			walk(v[k], fn)
		}
	case []any:
		for _, e := range v {
			walk(e, fn)
		}
	}
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
