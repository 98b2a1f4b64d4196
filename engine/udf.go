package engine

import (
	"context"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/fetch"
	"github.com/hugr-lab/manageql/internal/recovery"
	"github.com/hugr-lab/manageql/materialize"
	"github.com/hugr-lab/manageql/query"
	"github.com/hugr-lab/manageql/source"
)

func (e *Engine) registerFunctions(ctx context.Context) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer conn.Close()

	varchar, err := duckdb.NewTypeInfo(duckdb.TYPE_VARCHAR)
	if err != nil {
		return err
	}

	scan := duckdb.RowTableFunction{
		Config: duckdb.TableFunctionConfig{
			Arguments: []duckdb.TypeInfo{varchar},
		},
		BindArguments: e.bindScan,
	}
	if err := duckdb.RegisterTableUDF(conn, source.ScanFunction, scan); err != nil {
		return fmt.Errorf("engine: register %s: %w", source.ScanFunction, err)
	}

	ddl := duckdb.RowTableFunction{
		Config: duckdb.TableFunctionConfig{
			Arguments: []duckdb.TypeInfo{varchar, varchar},
		},
		BindArguments: func(named map[string]any, args ...any) (duckdb.RowTableSource, error) {
			return &ddlSource{engine: e, pattern: args[0].(string), target: args[1].(string), varchar: varchar}, nil
		},
	}
	if err := duckdb.RegisterTableUDF(conn, materialize.ProcedureName, ddl); err != nil {
		return fmt.Errorf("engine: register %s: %w", materialize.ProcedureName, err)
	}
	return nil
}

func (e *Engine) bindScan(named map[string]any, args ...any) (duckdb.RowTableSource, error) {
	name, _ := args[0].(string)
	def, err := e.src.Lookup(e.ctx, name)
	if err != nil {
		return nil, err
	}

	columns := def.FoldedColumns()
	infos := make([]duckdb.ColumnInfo, len(columns))
	for i, c := range columns {
		ti, err := typeInfo(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		infos[i] = duckdb.ColumnInfo{Name: c.Name, T: ti}
	}
	return &scanSource{engine: e, def: def, columns: columns, infos: infos}, nil
}

// scanSource streams the rows of one table into DuckDB.
type scanSource struct {
	engine  *Engine
	def     *catalog.TableDefinition
	columns []catalog.ColumnDefinition
	infos   []duckdb.ColumnInfo

	exec *fetch.Execution
	// cols maps projection positions to indexes of columns.
	cols []int
}

func (s *scanSource) ColumnInfos() []duckdb.ColumnInfo { return s.infos }

func (s *scanSource) Cardinality() *duckdb.CardinalityInfo { return nil }

func (s *scanSource) Init() {}

// start creates the execution on the first row, once DuckDB has decided
// which columns it needs.
func (s *scanSource) start(row duckdb.Row) error {
	sel := &query.Select{Table: s.def}
	for i, c := range s.columns {
		if row.IsProjected(i) {
			sel.Columns = append(sel.Columns, query.DerivedColumn{Expr: &query.ColumnRef{Name: c.Name, Type: c.Type}})
			s.cols = append(s.cols, i)
		}
	}
	s.exec = fetch.New(s.engine.src.Connection(), s.def, query.Visit(sel), s.engine.logger)
	return s.exec.Execute(s.engine.ctx)
}

func (s *scanSource) FillRow(row duckdb.Row) (_ bool, err error) {
	defer recovery.Guard(s.engine.logger, source.ScanFunction, &err)
	if s.exec == nil {
		if err := s.start(row); err != nil {
			return false, err
		}
	}
	values, ok, err := s.exec.Next(s.engine.ctx)
	if err != nil || !ok {
		s.exec.Close()
		return false, err
	}
	for i, v := range values {
		if err := row.SetRowValue(s.cols[i], v); err != nil {
			return false, fmt.Errorf("column %s: %w", s.columns[s.cols[i]].Name, err)
		}
	}
	return true, nil
}

// ddlSource returns the single row of get_dynamic_table_ddl.
type ddlSource struct {
	engine  *Engine
	pattern string
	target  string
	varchar duckdb.TypeInfo
	done    bool
}

func (s *ddlSource) ColumnInfos() []duckdb.ColumnInfo {
	return []duckdb.ColumnInfo{{Name: "ddl", T: s.varchar}}
}

func (s *ddlSource) Cardinality() *duckdb.CardinalityInfo {
	return &duckdb.CardinalityInfo{Cardinality: 1, Exact: true}
}

func (s *ddlSource) Init() {}

func (s *ddlSource) FillRow(row duckdb.Row) (_ bool, err error) {
	defer recovery.Guard(s.engine.logger, materialize.ProcedureName, &err)
	if s.done {
		return false, nil
	}
	s.done = true
	ddl, err := s.engine.src.DynamicTableDDL(s.engine.ctx, s.pattern, s.target)
	if err != nil {
		return false, err
	}
	if err := row.SetRowValue(0, ddl); err != nil {
		return false, err
	}
	return true, nil
}

var scalarTypes = map[catalog.RelationalType]duckdb.Type{
	catalog.TypeString:    duckdb.TYPE_VARCHAR,
	catalog.TypeChar:      duckdb.TYPE_VARCHAR,
	catalog.TypeJSON:      duckdb.TYPE_VARCHAR,
	catalog.TypeInteger:   duckdb.TYPE_INTEGER,
	catalog.TypeLong:      duckdb.TYPE_BIGINT,
	catalog.TypeShort:     duckdb.TYPE_SMALLINT,
	catalog.TypeByte:      duckdb.TYPE_TINYINT,
	catalog.TypeBoolean:   duckdb.TYPE_BOOLEAN,
	catalog.TypeDouble:    duckdb.TYPE_DOUBLE,
	catalog.TypeFloat:     duckdb.TYPE_FLOAT,
	catalog.TypeDate:      duckdb.TYPE_DATE,
	catalog.TypeTime:      duckdb.TYPE_TIME,
	catalog.TypeTimestamp: duckdb.TYPE_TIMESTAMP,
	catalog.TypeByteArray: duckdb.TYPE_BLOB,
}

// typeInfo returns the DuckDB type values of t are produced as. JSON is
// produced as VARCHAR and cast by the view.
func typeInfo(t catalog.RelationalType) (duckdb.TypeInfo, error) {
	if t.IsArray() {
		elem, _ := t.ElemType()
		child, err := typeInfo(elem)
		if err != nil {
			return nil, err
		}
		return duckdb.NewListInfo(child)
	}
	typ, ok := scalarTypes[t]
	if !ok {
		typ = duckdb.TYPE_VARCHAR
	}
	return duckdb.NewTypeInfo(typ)
}
