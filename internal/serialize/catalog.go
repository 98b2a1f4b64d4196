// Package serialize encodes catalog metadata for Flight responses: the
// Arrow IPC table listing returned by ListFlights, and the compressed
// MessagePack envelopes used by Airport actions.
package serialize

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/manageql/catalog"
)

// Table types reported in the listing.
const (
	TableTypeTable    = "TABLE"
	TableTypeFunction = "TABLE FUNCTION"
)

// ListingSchema is the schema of SerializeCatalog records. It extends the
// Flight SQL GetTables layout with the name in source of each table.
var ListingSchema = arrow.NewSchema([]arrow.Field{
	{Name: "catalog_name", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "db_schema_name", Type: arrow.BinaryTypes.String},
	{Name: "table_name", Type: arrow.BinaryTypes.String},
	{Name: "table_type", Type: arrow.BinaryTypes.String},
	{Name: "name_in_source", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// SerializeCatalog writes the tables and table functions of cat as one
// Arrow IPC stream with ListingSchema. An empty catalogName is written as
// null.
func SerializeCatalog(ctx context.Context, cat catalog.Catalog, catalogName string, allocator memory.Allocator) ([]byte, error) {
	schemas, err := cat.Schemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}

	b := array.NewRecordBuilder(allocator, ListingSchema)
	defer b.Release()
	catalogCol := b.Field(0).(*array.StringBuilder)
	schemaCol := b.Field(1).(*array.StringBuilder)
	nameCol := b.Field(2).(*array.StringBuilder)
	typeCol := b.Field(3).(*array.StringBuilder)
	sourceCol := b.Field(4).(*array.StringBuilder)

	appendRow := func(schema, name, typ, source string) {
		if catalogName == "" {
			catalogCol.AppendNull()
		} else {
			catalogCol.Append(catalogName)
		}
		schemaCol.Append(schema)
		nameCol.Append(name)
		typeCol.Append(typ)
		if source == "" {
			sourceCol.AppendNull()
		} else {
			sourceCol.Append(source)
		}
	}

	for _, schema := range schemas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tables, err := schema.Tables(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tables of %s: %w", schema.Name(), err)
		}
		for _, t := range tables {
			appendRow(schema.Name(), t.Name(), TableTypeTable, t.Comment())
		}

		functions, err := schema.TableFunctions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list table functions of %s: %w", schema.Name(), err)
		}
		for _, fn := range functions {
			appendRow(schema.Name(), fn.Name(), TableTypeFunction, "")
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(ListingSchema), ipc.WithAllocator(allocator))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("write IPC record: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close IPC writer: %w", err)
	}
	return buf.Bytes(), nil
}
