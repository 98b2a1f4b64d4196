// Package query models the parts of a query over one management table that
// drive attribute reads, and extracts the projected attributes from it.
package query

import (
	"fmt"
	"iter"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/sqlast"
)

// Expr is a selected expression.
type Expr interface {
	expr()
}

// ColumnRef is a column reference resolved against a table definition.
type ColumnRef struct {
	// Name is the column name as declared in the definition.
	Name string
	Type catalog.RelationalType
}

// Function is a function call or cast over other expressions.
type Function struct {
	Name string
	Args []Expr
}

// Literal is a constant.
type Literal struct {
	Value any
}

func (*ColumnRef) expr() {}
func (*Function) expr()  {}
func (*Literal) expr()   {}

// DerivedColumn is one entry of a select list.
type DerivedColumn struct {
	Alias string
	Expr  Expr
}

// Select is a query over a single table.
type Select struct {
	Table   *catalog.TableDefinition
	Columns []DerivedColumn
}

// NewSelect builds a select of plain column references. An empty column
// list selects every column of def.
func NewSelect(def *catalog.TableDefinition, columns []string) (*Select, error) {
	if len(columns) == 0 {
		columns = def.ColumnNames()
	}
	sel := &Select{Table: def, Columns: make([]DerivedColumn, 0, len(columns))}
	for _, name := range columns {
		ref, err := resolve(def, name)
		if err != nil {
			return nil, err
		}
		sel.Columns = append(sel.Columns, DerivedColumn{Expr: ref})
	}
	return sel, nil
}

// Bind resolves a parsed select node against def. A star expands to every
// column. Column references inside functions are resolved too, so an
// unknown column is reported wherever it appears.
func Bind(def *catalog.TableDefinition, node sqlast.SelectNode) (*Select, error) {
	sel := &Select{Table: def}
	for _, item := range node.Items {
		if item.Class == sqlast.ClassStar {
			for _, c := range def.Columns {
				sel.Columns = append(sel.Columns, DerivedColumn{Expr: &ColumnRef{Name: c.Name, Type: c.Type}})
			}
			continue
		}
		e, err := bindExpr(def, item)
		if err != nil {
			return nil, err
		}
		sel.Columns = append(sel.Columns, DerivedColumn{Alias: item.Alias, Expr: e})
	}
	return sel, nil
}

func bindExpr(def *catalog.TableDefinition, item sqlast.SelectItem) (Expr, error) {
	switch item.Class {
	case sqlast.ClassColumnRef:
		return resolve(def, item.Column())
	case sqlast.ClassConstant:
		return &Literal{Value: item.Value}, nil
	}
	fn := &Function{Name: item.FunctionName}
	if fn.Name == "" {
		fn.Name = item.Class
	}
	for _, child := range item.Children {
		arg, err := bindExpr(def, child)
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)
	}
	return fn, nil
}

func resolve(def *catalog.TableDefinition, name string) (*ColumnRef, error) {
	c, ok := def.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q of table %q: %w", name, def.Name, catalog.ErrNotFound)
	}
	return &ColumnRef{Name: c.Name, Type: c.Type}, nil
}

// Projection is the ordered list of columns a query reads from its table.
type Projection struct {
	cols []ColumnRef
}

// Visit walks the top-level select list of sel and collects its plain
// column references. Computed expressions are skipped; the engine
// evaluating the query is responsible for them.
func Visit(sel *Select) Projection {
	var p Projection
	for _, dc := range sel.Columns {
		if ref, ok := dc.Expr.(*ColumnRef); ok {
			p.cols = append(p.cols, *ref)
		}
	}
	return p
}

// All yields column names and types in select-list order. The sequence can
// be ranged over any number of times.
func (p Projection) All() iter.Seq2[string, catalog.RelationalType] {
	return func(yield func(string, catalog.RelationalType) bool) {
		for _, c := range p.cols {
			if !yield(c.Name, c.Type) {
				return
			}
		}
	}
}

// Names returns the projected column names in order.
func (p Projection) Names() []string {
	names := make([]string, len(p.cols))
	for i, c := range p.cols {
		names[i] = c.Name
	}
	return names
}

// Types returns the relational type of every projected column.
func (p Projection) Types() map[string]catalog.RelationalType {
	types := make(map[string]catalog.RelationalType, len(p.cols))
	for _, c := range p.cols {
		types[c.Name] = c.Type
	}
	return types
}

// Len returns the number of projected columns.
func (p Projection) Len() int { return len(p.cols) }

// Column returns the i-th projected column.
func (p Projection) Column(i int) ColumnRef { return p.cols[i] }
