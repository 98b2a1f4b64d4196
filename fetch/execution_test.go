package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/mapping"
	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/query"
)

func testServer(t *testing.T) *mgmt.Server {
	t.Helper()
	srv := mgmt.NewServer()
	register := func(name string, obj *mgmt.Object) {
		if err := srv.Register(mgmt.MustParseObjectName(name), obj); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}
	register("ns:type=Foo", mgmt.NewObject().
		Static("Size", mgmt.TypeLong, mgmt.Long(42)).
		Static("Tags", mgmt.TypeStringArray, mgmt.Strings("x", "y")))
	register("ns:type=Bar", mgmt.NewObject().
		Static("Size", mgmt.TypeLong, mgmt.Long(7)).
		Static("Label", mgmt.TypeString, mgmt.String("bar")))
	register("other:type=Baz", mgmt.NewObject().
		Static("Size", mgmt.TypeLong, mgmt.Long(1)))
	return srv
}

func wildcardTable() *catalog.TableDefinition {
	def := catalog.NewTableDefinition("ns:*", "ns:*")
	def.AddColumn("Size", catalog.TypeLong)
	def.AddColumn("Tags", catalog.TypeStringArray)
	def.AddColumn("Label", catalog.TypeString)
	return def
}

func newExecution(t *testing.T, conn mgmt.Connection, def *catalog.TableDefinition, columns ...string) *Execution {
	t.Helper()
	sel, err := query.NewSelect(def, columns)
	if err != nil {
		t.Fatalf("NewSelect failed: %v", err)
	}
	return New(conn, def, query.Visit(sel), nil)
}

func drain(t *testing.T, e *Execution) []Row {
	t.Helper()
	var rows []Row
	for {
		row, ok, err := e.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

// TestExecutionSingleInstance tests a table backed by one exact object.
func TestExecutionSingleInstance(t *testing.T) {
	def := catalog.NewTableDefinition("ns:type=Foo", "ns:type=Foo")
	def.AddColumn("Size", catalog.TypeLong)

	e := newExecution(t, testServer(t), def, "Size")
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	rows := drain(t, e)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0][0] != int64(42) {
		t.Errorf("Size = %v, want 42", rows[0][0])
	}
	if e.State() != StateExhausted {
		t.Errorf("state = %s, want exhausted", e.State())
	}
}

// TestExecutionWildcard tests one row per match, $ObjectName and missing attributes.
func TestExecutionWildcard(t *testing.T) {
	e := newExecution(t, testServer(t), wildcardTable())
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	rows := drain(t, e)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	// Rows follow canonical order: Bar before Foo.
	bar, foo := rows[0], rows[1]
	if bar[0] != "ns:type=Bar" || foo[0] != "ns:type=Foo" {
		t.Errorf("$ObjectName values = %v, %v", bar[0], foo[0])
	}
	if bar[2] != nil {
		t.Errorf("Bar.Tags = %v, want nil", bar[2])
	}
	if bar[3] != "bar" {
		t.Errorf("Bar.Label = %v, want bar", bar[3])
	}
	if tags, ok := foo[2].([]string); !ok || len(tags) != 2 || tags[1] != "y" {
		t.Errorf("Foo.Tags = %#v", foo[2])
	}
	if foo[3] != nil {
		t.Errorf("Foo.Label = %v, want nil", foo[3])
	}

	// End of data is sticky.
	if _, ok, err := e.Next(context.Background()); ok || err != nil {
		t.Errorf("Next after end = %v, %v", ok, err)
	}
}

// TestExecutionCaseInsensitiveAttributes tests matching of attribute results by name.
func TestExecutionCaseInsensitiveAttributes(t *testing.T) {
	def := catalog.NewTableDefinition("ns:type=Foo", "ns:type=Foo")
	def.AddColumn("size", catalog.TypeLong)

	e := newExecution(t, &renamingConn{Connection: testServer(t)}, def, "size")
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	rows := drain(t, e)
	if len(rows) != 1 || rows[0][0] != int64(42) {
		t.Errorf("rows = %v", rows)
	}
}

// TestExecutionExactAttributeNames tests that attributes differing only in
// case keep their own values.
func TestExecutionExactAttributeNames(t *testing.T) {
	srv := mgmt.NewServer()
	if err := srv.Register(mgmt.MustParseObjectName("ns:type=Odd"), mgmt.NewObject().
		Static("Count", mgmt.TypeLong, mgmt.Long(1)).
		Static("count", mgmt.TypeLong, mgmt.Long(2))); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	def := catalog.NewTableDefinition("ns:type=Odd", "ns:type=Odd")
	def.AddColumn("Count", catalog.TypeLong)
	def.AddColumn("count", catalog.TypeLong)

	e := newExecution(t, srv, def, "Count", "count")
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	rows := drain(t, e)
	if len(rows) != 1 || rows[0][0] != int64(1) || rows[0][1] != int64(2) {
		t.Errorf("rows = %v, want [[1 2]]", rows)
	}
}

// renamingConn reads attributes case-insensitively and reports their declared names.
type renamingConn struct {
	mgmt.Connection
}

func (c *renamingConn) ReadAttributes(ctx context.Context, name mgmt.ObjectName, names []string) ([]mgmt.Attribute, error) {
	return c.Connection.ReadAttributes(ctx, name, []string{"Size"})
}

// TestExecutionLifecycle tests state errors and idempotent Close.
func TestExecutionLifecycle(t *testing.T) {
	e := newExecution(t, testServer(t), wildcardTable())
	if _, _, err := e.Next(context.Background()); !errors.Is(err, ErrNotExecuted) {
		t.Errorf("Next before Execute = %v, want ErrNotExecuted", err)
	}
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := e.Execute(context.Background()); err == nil {
		t.Error("second Execute should fail")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, _, err := e.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Next after Close = %v, want ErrClosed", err)
	}
}

// TestExecutionSnapshot tests that objects are resolved at Execute and errors surface.
func TestExecutionSnapshot(t *testing.T) {
	srv := testServer(t)
	e := newExecution(t, srv, wildcardTable(), "Size")
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Registered after Execute: not part of this execution.
	if err := srv.Register(mgmt.MustParseObjectName("ns:type=Late"), mgmt.NewObject()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	// Unregistered after Execute: reading it fails.
	if err := srv.Unregister(mgmt.MustParseObjectName("ns:type=Foo")); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	if _, ok, err := e.Next(context.Background()); !ok || err != nil {
		t.Fatalf("first Next = %v, %v", ok, err)
	}
	_, _, err := e.Next(context.Background())
	var ioErr *mgmt.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if !errors.Is(err, mgmt.ErrInstanceNotFound) {
		t.Errorf("expected ErrInstanceNotFound, got %v", err)
	}
}

// TestExecutionCoercionError tests that a value that cannot be coerced fails the row.
func TestExecutionCoercionError(t *testing.T) {
	def := catalog.NewTableDefinition("ns:type=Bar", "ns:type=Bar")
	def.AddColumn("Label", catalog.TypeLong)

	e := newExecution(t, testServer(t), def, "Label")
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	_, _, err := e.Next(context.Background())
	var ce *mapping.CoercionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CoercionError, got %v", err)
	}
}

// TestRecordReader tests batching of rows into Arrow records.
func TestRecordReader(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)

	e := newExecution(t, testServer(t), wildcardTable(), catalog.ObjectNameColumn, "Size", "Tags")
	reader, err := RecordReader(context.Background(), e, ReaderOptions{Allocator: alloc, BatchSize: 1})
	if err != nil {
		t.Fatalf("RecordReader failed: %v", err)
	}
	defer reader.Release()

	if reader.Schema().NumFields() != 3 {
		t.Fatalf("expected 3 fields, got %d", reader.Schema().NumFields())
	}

	var names []string
	batches := 0
	for reader.Next() {
		rec := reader.Record()
		batches++
		if rec.NumRows() != 1 {
			t.Errorf("batch %d has %d rows", batches, rec.NumRows())
		}
		names = append(names, rec.Column(0).(*array.String).Value(0))
		sizes := rec.Column(1).(*array.Int64)
		if sizes.Len() != 1 {
			t.Errorf("unexpected sizes length %d", sizes.Len())
		}
	}
	if batches != 2 {
		t.Errorf("expected 2 batches, got %d", batches)
	}
	if len(names) != 2 || names[0] != "ns:type=Bar" || names[1] != "ns:type=Foo" {
		t.Errorf("names = %v", names)
	}
	if e.State() != StateClosed {
		t.Errorf("execution state = %s, want closed", e.State())
	}
}

// TestRecordReaderEmpty tests that a table without matches yields an empty record.
func TestRecordReaderEmpty(t *testing.T) {
	def := catalog.NewTableDefinition("none:*", "none:*")
	e := newExecution(t, testServer(t), def)
	reader, err := RecordReader(context.Background(), e, ReaderOptions{})
	if err != nil {
		t.Fatalf("RecordReader failed: %v", err)
	}
	defer reader.Release()

	rows := int64(0)
	for reader.Next() {
		rows += reader.Record().NumRows()
	}
	if rows != 0 {
		t.Errorf("expected 0 rows, got %d", rows)
	}
}

// TestRecordReaderWidensToSchema tests null filling of unprojected fields and the row limit.
func TestRecordReaderWidensToSchema(t *testing.T) {
	def := wildcardTable()
	e := newExecution(t, testServer(t), def, "Label")
	reader, err := RecordReader(context.Background(), e, ReaderOptions{Schema: def.ArrowSchema(), Limit: 1})
	if err != nil {
		t.Fatalf("RecordReader failed: %v", err)
	}
	defer reader.Release()

	if !reader.Schema().Equal(def.ArrowSchema()) {
		t.Fatalf("schema mismatch: %v", reader.Schema())
	}
	if !reader.Next() {
		t.Fatal("expected a record")
	}
	rec := reader.Record()
	if rec.NumRows() != 1 {
		t.Fatalf("expected 1 row, got %d", rec.NumRows())
	}
	if !rec.Column(0).IsNull(0) || !rec.Column(1).IsNull(0) {
		t.Error("unprojected columns should be null")
	}
	if got := rec.Column(3).(*array.String).Value(0); got != "bar" {
		t.Errorf("Label = %q, want bar", got)
	}
}
