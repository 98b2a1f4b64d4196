package materialize

import (
	"fmt"
	"strings"

	"github.com/hugr-lab/manageql/catalog"
)

// Dialect renders the DDL a host executes to expose a table definition.
type Dialect interface {
	// CreateTable returns the statement creating or replacing def.
	CreateTable(def *catalog.TableDefinition) string

	// DropTable returns a statement dropping the table name. Dropping an
	// absent table must not fail.
	DropTable(name string) string
}

// DuckDBDialect exposes tables as DuckDB views over a scan table function
// taking the table name as its only argument.
type DuckDBDialect struct {
	// Schema holding the views.
	Schema string

	// ScanFunction is the table function producing the rows of a table.
	ScanFunction string
}

var _ Dialect = DuckDBDialect{}

// CreateTable renders a CREATE OR REPLACE VIEW casting every column to its
// DuckDB type. DuckDB identifiers are case-insensitive, so a column whose
// name differs from an earlier one only in case is left out.
func (d DuckDBDialect) CreateTable(def *catalog.TableDefinition) string {
	cols := def.FoldedColumns()
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE VIEW %s AS SELECT\n", d.qualified(def.Name))
	for i, c := range cols {
		col := QuoteIdent(c.Name)
		fmt.Fprintf(&b, "\t%s::%s AS %s", col, DuckDBType(c.Type), col)
		if i < len(cols)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "FROM %s(%s)", d.ScanFunction, QuoteLiteral(def.Name))
	return b.String()
}

// DropTable renders DROP VIEW IF EXISTS.
func (d DuckDBDialect) DropTable(name string) string {
	return "DROP VIEW IF EXISTS " + d.qualified(name)
}

func (d DuckDBDialect) qualified(name string) string {
	if d.Schema == "" {
		return QuoteIdent(name)
	}
	return QuoteIdent(d.Schema) + "." + QuoteIdent(name)
}

var duckdbTypes = map[catalog.RelationalType]string{
	catalog.TypeString:    "VARCHAR",
	catalog.TypeChar:      "VARCHAR",
	catalog.TypeJSON:      "JSON",
	catalog.TypeInteger:   "INTEGER",
	catalog.TypeLong:      "BIGINT",
	catalog.TypeShort:     "SMALLINT",
	catalog.TypeByte:      "TINYINT",
	catalog.TypeBoolean:   "BOOLEAN",
	catalog.TypeDouble:    "DOUBLE",
	catalog.TypeFloat:     "FLOAT",
	catalog.TypeDate:      "DATE",
	catalog.TypeTime:      "TIME",
	catalog.TypeTimestamp: "TIMESTAMP",
	catalog.TypeByteArray: "BLOB",
}

// DuckDBType returns the DuckDB type name of a relational type. Arrays
// other than byte[] become lists of their element type.
func DuckDBType(t catalog.RelationalType) string {
	if name, ok := duckdbTypes[t]; ok {
		return name
	}
	if elem, ok := t.ElemType(); ok {
		return DuckDBType(elem) + "[]"
	}
	return "VARCHAR"
}

// QuoteIdent quotes an SQL identifier.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteLiteral quotes an SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
