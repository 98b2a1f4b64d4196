package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/mgmt"
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
		Static("Size", mgmt.TypeInt, mgmt.Int(1)).
		Static("Tags", mgmt.TypeStringArray, mgmt.Strings("a")))
	register("ns:type=Bar,name=one", mgmt.NewObject().
		Static("Size", mgmt.TypeLong, mgmt.Long(2)).
		Static("Label", mgmt.TypeString, mgmt.String("one")))
	register("ns:type=Bar,name=two", mgmt.NewObject().
		Static("Size", mgmt.TypeLong, mgmt.Long(3)).
		Static("Extra", mgmt.TypeBoolean, mgmt.Bool(true)))
	return srv
}

func newEngine(conn mgmt.Connection, typing Typing) (*Engine, *catalog.Registry) {
	reg := catalog.NewRegistry()
	e := New(Config{
		Connection: conn,
		Registry:   reg,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Typing:     typing,
	})
	reg.SetMaterializer(e.Lookup)
	return e, reg
}

// TestDiscoverOneTablePerObject tests that every object yields a table with
// $ObjectName plus its attributes.
func TestDiscoverOneTablePerObject(t *testing.T) {
	e, reg := newEngine(testServer(t), TypingMapped)
	if err := e.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if reg.Len() != 3 {
		t.Fatalf("expected 3 tables, got %d", reg.Len())
	}

	def, ok := reg.Lookup("ns:type=Foo")
	if !ok {
		t.Fatal("table ns:type=Foo not found")
	}
	if got := def.ColumnNames(); !slices.Equal(got, []string{catalog.ObjectNameColumn, "Size", "Tags"}) {
		t.Errorf("columns = %v", got)
	}
	if c, _ := def.Column("Tags"); c.Type != catalog.TypeStringArray {
		t.Errorf("Tags type = %s, want string[]", c.Type)
	}

	count := 0
	for _, c := range def.Columns {
		if c.Name == catalog.ObjectNameColumn {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one %s column, got %d", catalog.ObjectNameColumn, count)
	}
}

// TestDiscoverStringTyping tests the legacy string-only column typing.
func TestDiscoverStringTyping(t *testing.T) {
	e, reg := newEngine(testServer(t), TypingString)
	if err := e.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	def, _ := reg.Lookup("ns:name=one,type=Bar")
	for _, c := range def.Columns {
		if c.Type != catalog.TypeString {
			t.Errorf("column %s has type %s, want string", c.Name, c.Type)
		}
	}
}

// TestDiscoverIsRepeatable tests that a second pass neither duplicates columns nor bumps the version.
func TestDiscoverIsRepeatable(t *testing.T) {
	e, reg := newEngine(testServer(t), TypingMapped)
	ctx := context.Background()
	if err := e.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	v := reg.Version()
	if err := e.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if reg.Version() != v {
		t.Errorf("version changed from %d to %d on unchanged pass", v, reg.Version())
	}
	def, _ := reg.Lookup("ns:type=Foo")
	if len(def.Columns) != 3 {
		t.Errorf("expected 3 columns, got %v", def.ColumnNames())
	}
}

// TestLookupPatternMatchesEagerRule tests that the lazy path folds like the eager one.
func TestLookupPatternMatchesEagerRule(t *testing.T) {
	e, reg := newEngine(testServer(t), TypingMapped)
	ctx := context.Background()

	def, err := reg.LookupOrMaterialize(ctx, "ns:type=Bar,*")
	if err != nil {
		t.Fatalf("LookupOrMaterialize failed: %v", err)
	}
	if def == nil {
		t.Fatal("expected pattern table")
	}
	if got := def.ColumnNames(); !slices.Equal(got, []string{catalog.ObjectNameColumn, "Size", "Label", "Extra"}) {
		t.Errorf("columns = %v", got)
	}
	if def.NameInSource != "ns:type=Bar,*" {
		t.Errorf("NameInSource = %q", def.NameInSource)
	}

	exact, err := e.Lookup(ctx, "ns:type=Foo")
	if err != nil || exact == nil {
		t.Fatalf("Lookup exact failed: %v", err)
	}

	eagerEngine, eager := newEngine(testServer(t), TypingMapped)
	if err := eagerEngine.Discover(ctx); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	want, _ := eager.Lookup("ns:type=Foo")
	if !slices.Equal(exact.Columns, want.Columns) {
		t.Errorf("lazy columns %v differ from eager %v", exact.ColumnNames(), want.ColumnNames())
	}
}

// TestLookupMisses tests names that cannot be resolved.
func TestLookupMisses(t *testing.T) {
	e, _ := newEngine(testServer(t), TypingMapped)
	ctx := context.Background()

	for _, name := range []string{"not an object name", "other:*", "ns:type=Missing"} {
		def, err := e.Lookup(ctx, name)
		if err != nil {
			t.Errorf("Lookup(%q) returned error: %v", name, err)
		}
		if def != nil {
			t.Errorf("Lookup(%q) = %v, want nil", name, def.Name)
		}
	}
}

type failingConn struct {
	mgmt.Connection
	describeErr error
	queryErr    error
}

func (f *failingConn) QueryNames(ctx context.Context, p *mgmt.ObjectName) ([]mgmt.ObjectName, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.Connection.QueryNames(ctx, p)
}

func (f *failingConn) Describe(ctx context.Context, n mgmt.ObjectName) ([]mgmt.AttributeInfo, error) {
	if n.Canonical() == "ns:type=Foo" {
		return nil, f.describeErr
	}
	return f.Connection.Describe(ctx, n)
}

// TestDiscoverSkipsBrokenObjects tests that a describe failure skips only that object.
func TestDiscoverSkipsBrokenObjects(t *testing.T) {
	conn := &failingConn{Connection: testServer(t), describeErr: errors.New("connection reset")}
	e, reg := newEngine(conn, TypingMapped)
	if err := e.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 tables, got %d", reg.Len())
	}
	if _, ok := reg.Lookup("ns:type=Foo"); ok {
		t.Error("broken object should have been skipped")
	}
}

// TestDiscoverQueryFailure tests that an enumeration failure is returned as IOError.
func TestDiscoverQueryFailure(t *testing.T) {
	conn := &failingConn{Connection: testServer(t), queryErr: errors.New("refused")}
	e, _ := newEngine(conn, TypingMapped)

	err := e.Discover(context.Background())
	var ioErr *mgmt.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}

	def, err := e.Lookup(context.Background(), "ns:*")
	if err != nil || def != nil {
		t.Errorf("Lookup should swallow I/O errors, got %v, %v", def, err)
	}
}

type blockingConn struct {
	mgmt.Connection
	object  string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingConn) Describe(ctx context.Context, n mgmt.ObjectName) ([]mgmt.AttributeInfo, error) {
	if n.Canonical() == b.object {
		close(b.entered)
		<-b.release
	}
	return b.Connection.Describe(ctx, n)
}

// TestLookupPublishesCompleteTable tests that a pattern table is not visible
// while its objects are still being described.
func TestLookupPublishesCompleteTable(t *testing.T) {
	conn := &blockingConn{
		Connection: testServer(t),
		object:     "ns:name=two,type=Bar",
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	e, reg := newEngine(conn, TypingMapped)

	type result struct {
		def *catalog.TableDefinition
		err error
	}
	done := make(chan result, 1)
	go func() {
		def, err := e.Lookup(context.Background(), "ns:type=Bar,*")
		done <- result{def, err}
	}()

	<-conn.entered
	if def, ok := reg.Lookup("ns:type=Bar,*"); ok {
		t.Errorf("partial table visible during lookup: %v", def.ColumnNames())
	}
	version := reg.Version()
	close(conn.release)

	res := <-done
	if res.err != nil || res.def == nil {
		t.Fatalf("Lookup = %v, %v", res.def, res.err)
	}
	want := []string{catalog.ObjectNameColumn, "Size", "Label", "Extra"}
	def, ok := reg.Lookup("ns:type=Bar,*")
	if !ok {
		t.Fatal("table not registered")
	}
	if !slices.Equal(def.ColumnNames(), want) {
		t.Errorf("registered columns = %v, want %v", def.ColumnNames(), want)
	}
	if got := reg.Version(); got != version+1 {
		t.Errorf("version = %d, want one write after %d", got, version)
	}
}
