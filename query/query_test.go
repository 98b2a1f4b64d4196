package query

import (
	"errors"
	"slices"
	"testing"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/sqlast"
)

func runtimeTable() *catalog.TableDefinition {
	def := catalog.NewTableDefinition("go.runtime:type=Runtime", "go.runtime:type=Runtime")
	def.AddColumn("Uptime", catalog.TypeLong)
	def.AddColumn("Name", catalog.TypeString)
	def.AddColumn("InputArguments", catalog.TypeStringArray)
	return def
}

// TestVisitSkipsComputedExpressions tests that only column references are projected.
func TestVisitSkipsComputedExpressions(t *testing.T) {
	sel := &Select{
		Table: runtimeTable(),
		Columns: []DerivedColumn{
			{Expr: &ColumnRef{Name: "Uptime", Type: catalog.TypeLong}},
			{Alias: "n", Expr: &Function{Name: "upper", Args: []Expr{&ColumnRef{Name: "Name", Type: catalog.TypeString}}}},
			{Expr: &Literal{Value: 1}},
			{Expr: &ColumnRef{Name: "InputArguments", Type: catalog.TypeStringArray}},
		},
	}

	p := Visit(sel)
	if got := p.Names(); !slices.Equal(got, []string{"Uptime", "InputArguments"}) {
		t.Errorf("Names() = %v", got)
	}
	types := p.Types()
	if types["Uptime"] != catalog.TypeLong || types["InputArguments"] != catalog.TypeStringArray {
		t.Errorf("Types() = %v", types)
	}
}

// TestProjectionRestartable tests that All can be ranged repeatedly and stopped early.
func TestProjectionRestartable(t *testing.T) {
	sel, err := NewSelect(runtimeTable(), nil)
	if err != nil {
		t.Fatalf("NewSelect failed: %v", err)
	}
	p := Visit(sel)

	for pass := 0; pass < 2; pass++ {
		var names []string
		for name := range p.All() {
			names = append(names, name)
		}
		if len(names) != 4 || names[0] != catalog.ObjectNameColumn {
			t.Fatalf("pass %d: unexpected names %v", pass, names)
		}
	}

	count := 0
	for range p.All() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("expected early stop after 1, got %d", count)
	}
}

// TestNewSelectResolvesCase tests that column names resolve case-insensitively to declared names.
func TestNewSelectResolvesCase(t *testing.T) {
	sel, err := NewSelect(runtimeTable(), []string{"uptime", "$objectname"})
	if err != nil {
		t.Fatalf("NewSelect failed: %v", err)
	}
	if got := Visit(sel).Names(); !slices.Equal(got, []string{"Uptime", catalog.ObjectNameColumn}) {
		t.Errorf("Names() = %v", got)
	}

	_, err = NewSelect(runtimeTable(), []string{"Missing"})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestBind tests binding of a parsed select node.
func TestBind(t *testing.T) {
	node := sqlast.SelectNode{
		Items: []sqlast.SelectItem{
			{Class: sqlast.ClassColumnRef, ColumnNames: []string{"t", "Name"}},
			{Class: sqlast.ClassFunction, FunctionName: "len", Alias: "n", Children: []sqlast.SelectItem{
				{Class: sqlast.ClassColumnRef, ColumnNames: []string{"InputArguments"}},
			}},
			{Class: sqlast.ClassConstant, Value: "x"},
		},
	}

	sel, err := Bind(runtimeTable(), node)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if len(sel.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(sel.Columns))
	}
	if fn, ok := sel.Columns[1].Expr.(*Function); !ok || fn.Name != "len" || len(fn.Args) != 1 {
		t.Errorf("unexpected function: %#v", sel.Columns[1].Expr)
	}
	if got := Visit(sel).Names(); !slices.Equal(got, []string{"Name"}) {
		t.Errorf("Names() = %v", got)
	}

	star, err := Bind(runtimeTable(), sqlast.SelectNode{Items: []sqlast.SelectItem{{Class: sqlast.ClassStar}}})
	if err != nil {
		t.Fatalf("Bind star failed: %v", err)
	}
	if Visit(star).Len() != 4 {
		t.Errorf("expected star to expand to 4 columns, got %d", Visit(star).Len())
	}

	bad := sqlast.SelectNode{Items: []sqlast.SelectItem{{Class: sqlast.ClassFunction, FunctionName: "f", Children: []sqlast.SelectItem{
		{Class: sqlast.ClassColumnRef, ColumnNames: []string{"Nope"}},
	}}}}
	if _, err := Bind(runtimeTable(), bad); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
