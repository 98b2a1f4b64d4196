package engine

import (
	"context"
	"strings"

	"github.com/hugr-lab/manageql/materialize"
	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/sqlast"
)

var _ materialize.Host = (*Engine)(nil)

// TableRefs parses query with json_serialize_sql.
func (e *Engine) TableRefs(ctx context.Context, query string) ([]sqlast.TableRef, error) {
	var doc string
	if err := e.db.QueryRowContext(ctx, "SELECT json_serialize_sql(?)::VARCHAR", query).Scan(&doc); err != nil {
		return nil, err
	}
	return sqlast.TableRefs([]byte(doc))
}

// TableExists reports whether ref resolves in the source schema without
// materialization. Patterns resolve only when the registry already holds
// them; exact object names are looked up on the management connection. A
// view is created under the referenced name when the table resolves.
func (e *Engine) TableExists(ctx context.Context, ref sqlast.TableRef) (bool, error) {
	schema := e.src.Name()
	if ref.Catalog != "" || (ref.Schema != "" && !strings.EqualFold(ref.Schema, schema)) {
		return false, nil
	}
	name := ref.Table
	if ref.Schema == "" {
		name = materialize.StripSource(name, schema)
	}

	reg := e.src.Registry()
	def, ok := reg.Lookup(name)
	if !ok {
		on, err := mgmt.ParseObjectName(name)
		if err != nil || on.IsPattern() {
			return false, nil
		}
		if def, err = reg.LookupOrMaterialize(ctx, name); err != nil || def == nil {
			return false, err
		}
	}
	if err := e.ensureView(ctx, ref.Table, def); err != nil {
		return false, err
	}
	return true, nil
}

// Exec executes stmt through ExecContext, so it passes the preparser,
// which the recursion guard on ctx turns into a no-op.
func (e *Engine) Exec(ctx context.Context, stmt string) error {
	_, err := e.ExecContext(ctx, stmt)
	return err
}

// DynamicTableDDL calls the get_dynamic_table_ddl table function.
func (e *Engine) DynamicTableDDL(ctx context.Context, pattern, target string) (string, error) {
	e.forgetView(target)
	q := "SELECT ddl FROM " + materialize.ProcedureName + "(" +
		materialize.QuoteLiteral(pattern) + ", " + materialize.QuoteLiteral(target) + ")"
	rows, err := e.QueryContext(ctx, q)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ddl string
	if rows.Next() {
		if err := rows.Scan(&ddl); err != nil {
			return "", err
		}
	}
	return ddl, rows.Err()
}
