package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/query"
)

// DefaultBatchSize is the number of rows per record when none is given.
const DefaultBatchSize = 1024

// ArrowSchema returns the Arrow schema of rows produced for proj.
func ArrowSchema(proj query.Projection) *arrow.Schema {
	fields := make([]arrow.Field, 0, proj.Len())
	for name, typ := range proj.All() {
		fields = append(fields, arrow.Field{
			Name:     name,
			Type:     typ.ArrowType(),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{"relational_type"}, []string{typ.String()}),
		})
	}
	return arrow.NewSchema(fields, nil)
}

// ReaderOptions configures RecordReader.
type ReaderOptions struct {
	// Allocator for the records. Defaults to memory.DefaultAllocator.
	Allocator memory.Allocator

	// BatchSize is the maximum number of rows per record. Defaults to
	// DefaultBatchSize.
	BatchSize int

	// Limit stops reading after that many rows when positive.
	Limit int64

	// Schema is the schema of the produced records. Its fields are matched
	// to projected columns by name; fields that are not projected are
	// null. Defaults to ArrowSchema of the projection.
	Schema *arrow.Schema
}

// RecordReader executes e if needed and reads its rows into records. The
// execution is closed when RecordReader returns. The caller must release
// the reader.
func RecordReader(ctx context.Context, e *Execution, opts ReaderOptions) (array.RecordReader, error) {
	defer e.Close()

	alloc := opts.Allocator
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	schema := opts.Schema
	if schema == nil {
		schema = ArrowSchema(e.Projection())
	}

	if e.State() == StateCreated {
		if err := e.Execute(ctx); err != nil {
			return nil, err
		}
	}

	// source[i] is the row index feeding field i, or -1.
	proj := e.Projection()
	source := make([]int, schema.NumFields())
	types := make([]catalog.RelationalType, schema.NumFields())
	for i, f := range schema.Fields() {
		source[i] = -1
		for j := 0; j < proj.Len(); j++ {
			if col := proj.Column(j); strings.EqualFold(col.Name, f.Name) {
				source[i], types[i] = j, col.Type
				break
			}
		}
	}

	rb := array.NewRecordBuilder(alloc, schema)
	defer rb.Release()

	var records []arrow.Record
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	rows, total := 0, int64(0)
	for opts.Limit <= 0 || total < opts.Limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, ok, err := e.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for i, j := range source {
			var v any
			if j >= 0 {
				v = row[j]
			}
			if err := appendValue(rb.Field(i), types[i], v); err != nil {
				return nil, fmt.Errorf("column %s: %w", schema.Field(i).Name, err)
			}
		}
		rows++
		total++
		if rows == batchSize {
			records = append(records, rb.NewRecord())
			rows = 0
		}
	}
	if rows > 0 || len(records) == 0 {
		records = append(records, rb.NewRecord())
	}

	return array.NewRecordReader(schema, records)
}

// appendValue appends a coerced value to a builder of the matching type.
func appendValue(b array.Builder, typ catalog.RelationalType, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch bldr := b.(type) {
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(s)
	case *array.Int32Builder:
		n, ok := v.(int32)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(n)
	case *array.Int64Builder:
		n, ok := v.(int64)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(n)
	case *array.Int16Builder:
		n, ok := v.(int16)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(n)
	case *array.Int8Builder:
		n, ok := v.(int8)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(n)
	case *array.Float64Builder:
		f, ok := v.(float64)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(f)
	case *array.Float32Builder:
		f, ok := v.(float32)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(f)
	case *array.BooleanBuilder:
		f, ok := v.(bool)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(f)
	case *array.BinaryBuilder:
		bs, ok := v.([]byte)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(bs)
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(arrow.Date32FromTime(t))
	case *array.Time64Builder:
		t, ok := v.(time.Time)
		if !ok {
			return typeError(typ, v)
		}
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		bldr.Append(arrow.Time64(t.Sub(midnight).Microseconds()))
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return typeError(typ, v)
		}
		bldr.Append(arrow.Timestamp(t.UnixMicro()))
	case *array.ListBuilder:
		return appendList(bldr, typ, v)
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func appendList(b *array.ListBuilder, typ catalog.RelationalType, v any) error {
	elem, _ := typ.ElemType()
	vb := b.ValueBuilder()
	b.Append(true)

	switch items := v.(type) {
	case []string:
		for _, s := range items {
			if err := appendValue(vb, elem, s); err != nil {
				return err
			}
		}
	case []int64:
		for _, n := range items {
			if err := appendValue(vb, elem, n); err != nil {
				return err
			}
		}
	case []int32:
		for _, n := range items {
			if err := appendValue(vb, elem, n); err != nil {
				return err
			}
		}
	case []int16:
		for _, n := range items {
			if err := appendValue(vb, elem, n); err != nil {
				return err
			}
		}
	case []float64:
		for _, f := range items {
			if err := appendValue(vb, elem, f); err != nil {
				return err
			}
		}
	case []float32:
		for _, f := range items {
			if err := appendValue(vb, elem, f); err != nil {
				return err
			}
		}
	case []bool:
		for _, f := range items {
			if err := appendValue(vb, elem, f); err != nil {
				return err
			}
		}
	default:
		return typeError(typ, v)
	}
	return nil
}

func typeError(typ catalog.RelationalType, v any) error {
	return fmt.Errorf("value of type %T does not fit column type %s", v, typ)
}
