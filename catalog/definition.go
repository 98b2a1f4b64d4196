package catalog

import (
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// ObjectNameColumn is the reserved column present on every table. It holds
// the canonical object name of the instance a row was read from.
const ObjectNameColumn = "$ObjectName"

// ColumnDefinition describes one column of a TableDefinition.
type ColumnDefinition struct {
	// Name is the column name. For attribute columns it is also the
	// attribute name in the source.
	Name string

	// Type is the relational type values are coerced to.
	Type RelationalType

	// Searchable is always false: predicates are never pushed to the source.
	Searchable bool
}

// TableDefinition describes a table backed by management objects.
// A definition stored in a Registry MUST NOT be modified; use
// Registry.Update or Clone.
type TableDefinition struct {
	// Name is the table name, unique case-insensitively within a Registry.
	Name string

	// NameInSource is the object name or pattern whose instances make up
	// the rows of the table.
	NameInSource string

	// Columns in declaration order. The first column is ObjectNameColumn.
	Columns []ColumnDefinition

	// Updatable is always false.
	Updatable bool
}

// NewTableDefinition returns a definition holding only the reserved
// ObjectNameColumn.
func NewTableDefinition(name, nameInSource string) *TableDefinition {
	return &TableDefinition{
		Name:         name,
		NameInSource: nameInSource,
		Columns:      []ColumnDefinition{{Name: ObjectNameColumn, Type: TypeString}},
	}
}

// AddColumn appends a column unless one with exactly the same name is
// already present. It reports whether the column was added.
func (t *TableDefinition) AddColumn(name string, typ RelationalType) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return false
		}
	}
	t.Columns = append(t.Columns, ColumnDefinition{Name: name, Type: typ})
	return true
}

// Column returns the column with the given name. An exact match is
// preferred; otherwise names are matched case-insensitively.
func (t *TableDefinition) Column(name string) (ColumnDefinition, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// FoldedColumns returns the columns in order without those whose name
// equals an earlier one ignoring case. Hosts with case-insensitive
// identifiers expose only these.
func (t *TableDefinition) FoldedColumns() []ColumnDefinition {
	cols := make([]ColumnDefinition, 0, len(t.Columns))
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cols = append(cols, c)
	}
	return cols
}

// ColumnNames returns the column names in order.
func (t *TableDefinition) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy of t.
func (t *TableDefinition) Clone() *TableDefinition {
	c := *t
	c.Columns = slices.Clone(t.Columns)
	return &c
}

// ArrowSchema returns the Arrow schema of the table. Every column is
// nullable since attributes may be missing on an instance.
func (t *TableDefinition) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     c.Type.ArrowType(),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{"relational_type"}, []string{c.Type.String()}),
		}
	}
	md := arrow.NewMetadata([]string{"name_in_source"}, []string{t.NameInSource})
	return arrow.NewSchema(fields, &md)
}
