package catalog

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
)

// TestTableDefinitionObjectNameColumn tests that new definitions carry the reserved column.
func TestTableDefinitionObjectNameColumn(t *testing.T) {
	def := NewTableDefinition("t", "ns:type=T")
	if len(def.Columns) != 1 || def.Columns[0].Name != ObjectNameColumn || def.Columns[0].Type != TypeString {
		t.Fatalf("Unexpected initial columns: %+v", def.Columns)
	}
	if def.AddColumn(ObjectNameColumn, TypeLong) {
		t.Error("Reserved column must not be added twice")
	}
	if def.Updatable {
		t.Error("Definitions must not be updatable")
	}
}

// TestTableDefinitionColumnLookup tests case-insensitive column lookup.
func TestTableDefinitionColumnLookup(t *testing.T) {
	def := NewTableDefinition("t", "ns:type=T")
	def.AddColumn("Uptime", TypeLong)

	col, ok := def.Column("uptime")
	if !ok || col.Type != TypeLong || col.Searchable {
		t.Errorf("Column(uptime) = %+v, %v", col, ok)
	}
	if _, ok := def.Column("missing"); ok {
		t.Error("Expected miss")
	}
}

// TestTableDefinitionFoldedColumns tests that case duplicates are hidden,
// first declared wins.
func TestTableDefinitionFoldedColumns(t *testing.T) {
	def := NewTableDefinition("t", "ns:type=T")
	def.AddColumn("Count", TypeInteger)
	if !def.AddColumn("count", TypeLong) {
		t.Fatal("AddColumn must compare names exactly")
	}
	def.AddColumn("Size", TypeLong)

	folded := def.FoldedColumns()
	if len(folded) != 3 || folded[1].Name != "Count" || folded[1].Type != TypeInteger || folded[2].Name != "Size" {
		t.Errorf("FoldedColumns() = %+v", folded)
	}
	if len(def.Columns) != 4 {
		t.Errorf("definition modified: %+v", def.Columns)
	}
	if col, _ := def.Column("count"); col.Type != TypeLong {
		t.Errorf("Column(count) = %+v, want the exact match", col)
	}
}

// TestTableDefinitionArrowSchema tests the Arrow schema derived from a definition.
func TestTableDefinitionArrowSchema(t *testing.T) {
	def := NewTableDefinition("t", "ns:*")
	def.AddColumn("Count", TypeInteger)
	def.AddColumn("Names", TypeStringArray)
	def.AddColumn("Info", TypeJSON)

	s := def.ArrowSchema()
	if s.NumFields() != 4 {
		t.Fatalf("Expected 4 fields, got %d", s.NumFields())
	}
	if !arrow.TypeEqual(s.Field(1).Type, arrow.PrimitiveTypes.Int32) {
		t.Errorf("Count type = %s", s.Field(1).Type)
	}
	if !arrow.TypeEqual(s.Field(2).Type, arrow.ListOf(arrow.BinaryTypes.String)) {
		t.Errorf("Names type = %s", s.Field(2).Type)
	}
	if !arrow.TypeEqual(s.Field(3).Type, arrow.BinaryTypes.String) {
		t.Errorf("Info type = %s", s.Field(3).Type)
	}
	if v, ok := s.Metadata().GetValue("name_in_source"); !ok || v != "ns:*" {
		t.Errorf("name_in_source metadata = %q", v)
	}
}

// TestRelationalTypeNames tests that every type name parses back.
func TestRelationalTypeNames(t *testing.T) {
	for typ := TypeString; typ <= TypeTimestamp; typ++ {
		got, err := ParseRelationalType(typ.String())
		if err != nil {
			t.Fatalf("ParseRelationalType(%q): %v", typ, err)
		}
		if got != typ {
			t.Errorf("ParseRelationalType(%q) = %v", typ, got)
		}
	}
	if _, err := ParseRelationalType("decimal"); err == nil {
		t.Error("Expected error for unknown type")
	}
	if TypeByteArray.IsArray() {
		t.Error("byte[] is binary, not a list")
	}
	if !TypeShortArray.IsArray() {
		t.Error("short[] is a list")
	}
}
