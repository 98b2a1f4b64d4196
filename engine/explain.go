package engine

import (
	"context"
	"strings"

	"github.com/hugr-lab/manageql/materialize"
	"github.com/hugr-lab/manageql/query"
	"github.com/hugr-lab/manageql/sqlast"
)

// PlanColumn is an attribute read by a Plan.
type PlanColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Plan describes how one SELECT of a query reads a management table.
type Plan struct {
	Table        string       `json:"table"`
	NameInSource string       `json:"name_in_source"`
	Columns      []PlanColumn `json:"columns"`
}

// Explain rewrites query, then binds every SELECT over a single source
// table and reports the attributes it reads. Selects over other relations
// are left out. An unknown column is returned as an error wrapping
// catalog.ErrNotFound.
func (e *Engine) Explain(ctx context.Context, q string) ([]Plan, error) {
	rewritten := e.Rewrite(ctx, q)
	var doc string
	if err := e.db.QueryRowContext(ctx, "SELECT json_serialize_sql(?)::VARCHAR", rewritten).Scan(&doc); err != nil {
		return nil, err
	}
	stmts, err := sqlast.Parse([]byte(doc))
	if err != nil {
		return nil, err
	}

	var plans []Plan
	for _, stmt := range stmts {
		for _, node := range stmt.Selects {
			name, ok := e.sourceTable(node.From)
			if !ok {
				continue
			}
			def, ok := e.src.Registry().Lookup(name)
			if !ok {
				continue
			}
			sel, err := query.Bind(def, node)
			if err != nil {
				return nil, err
			}

			plan := Plan{Table: def.Name, NameInSource: def.NameInSource}
			for name, typ := range query.Visit(sel).All() {
				plan.Columns = append(plan.Columns, PlanColumn{Name: name, Type: typ.String()})
			}
			plans = append(plans, plan)
		}
	}
	return plans, nil
}

// sourceTable returns the registry name of ref when it refers to the
// source schema.
func (e *Engine) sourceTable(ref *sqlast.TableRef) (string, bool) {
	if ref == nil || ref.Catalog != "" {
		return "", false
	}
	schema := e.src.Name()
	switch {
	case ref.Schema == "":
		return materialize.StripSource(ref.Table, schema), true
	case strings.EqualFold(ref.Schema, schema):
		return ref.Table, true
	}
	return "", false
}
