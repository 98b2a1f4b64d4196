package materialize

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/discovery"
	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/sqlast"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testDialect = DuckDBDialect{Schema: "jmx", ScanFunction: "mgmt_scan"}

func testConnection(t *testing.T) *mgmt.Server {
	t.Helper()
	srv := mgmt.NewServer()
	register := func(name string, obj *mgmt.Object) {
		if err := srv.Register(mgmt.MustParseObjectName(name), obj); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}
	register("my.app:type=Cache,name=b", mgmt.NewObject().
		Static("Hits", mgmt.TypeLong, mgmt.Long(7)).
		Static("Evictions", mgmt.TypeLongArray, mgmt.Longs(1, 2)).
		Static("Stats", mgmt.TypeCompositeData, mgmt.Composite{Fields: map[string]mgmt.Value{"ratio": mgmt.Double(0.5)}}))
	register("my.app:type=Cache,name=a", mgmt.NewObject().
		Static("Hits", mgmt.TypeLong, mgmt.Long(3)).
		Static("Size", mgmt.TypeInt, mgmt.Int(10)))
	register("my.app:type=Pool", mgmt.NewObject().
		Static("Active", mgmt.TypeInt, mgmt.Int(2)))
	return srv
}

func newProcedure(conn mgmt.Connection) (*Procedure, *catalog.Registry) {
	reg := catalog.NewRegistry()
	eng := discovery.New(discovery.Config{Connection: conn, Registry: reg, Logger: discardLogger})
	return NewProcedure(ProcedureConfig{
		Discovery:  eng,
		Registry:   reg,
		Dialect:    testDialect,
		SourceName: "jmx",
		Logger:     discardLogger,
	}), reg
}

// TestDynamicTableDDLGolden tests the DDL produced for a pattern.
func TestDynamicTableDDLGolden(t *testing.T) {
	proc, reg := newProcedure(testConnection(t))

	ddl, err := proc.DynamicTableDDL(context.Background(), "my.app:type=Cache,*", "my_app:type=Cache,*")
	if err != nil {
		t.Fatalf("DynamicTableDDL failed: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "cache_pattern", []byte(ddl))

	def, ok := reg.Lookup("my_app:type=Cache,*")
	if !ok {
		t.Fatal("materialized table not registered")
	}
	if def.Updatable {
		t.Error("materialized table must not be updatable")
	}
	if def.NameInSource != "my.app:type=Cache,*" {
		t.Errorf("NameInSource = %q", def.NameInSource)
	}
}

// TestDynamicTableDDLIdempotent tests that the same objects yield identical DDL.
func TestDynamicTableDDLIdempotent(t *testing.T) {
	proc, reg := newProcedure(testConnection(t))
	ctx := context.Background()

	first, err := proc.DynamicTableDDL(ctx, "my.app:*", "t")
	if err != nil {
		t.Fatalf("DynamicTableDDL failed: %v", err)
	}
	second, err := proc.DynamicTableDDL(ctx, "my.app:*", "t")
	if err != nil {
		t.Fatalf("DynamicTableDDL failed: %v", err)
	}
	if first != second {
		t.Errorf("DDL differs between calls:\n%s\n---\n%s", first, second)
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 table, got %d", reg.Len())
	}

	def, _ := reg.Lookup("t")
	want := []string{catalog.ObjectNameColumn, "Hits", "Size", "Evictions", "Stats", "Active"}
	if got := def.ColumnNames(); !slices.Equal(got, want) {
		t.Errorf("columns = %v, want %v", got, want)
	}
}

// TestDynamicTableDDLSourcePrefix tests that a leading source schema is ignored.
func TestDynamicTableDDLSourcePrefix(t *testing.T) {
	proc, reg := newProcedure(testConnection(t))
	if _, err := proc.DynamicTableDDL(context.Background(), "JMX.my.app:type=Pool", "pool"); err != nil {
		t.Fatalf("DynamicTableDDL failed: %v", err)
	}
	def, _ := reg.Lookup("pool")
	if def.NameInSource != "my.app:type=Pool" {
		t.Errorf("NameInSource = %q", def.NameInSource)
	}
}

// TestDynamicTableDDLErrors tests malformed patterns and I/O failures.
func TestDynamicTableDDLErrors(t *testing.T) {
	proc, reg := newProcedure(testConnection(t))
	ctx := context.Background()

	_, err := proc.DynamicTableDDL(ctx, "no colon here", "t")
	var malformed *mgmt.MalformedNameError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedNameError, got %v", err)
	}

	if _, err := proc.DynamicTableDDL(ctx, "my.app:*", "t"); err != nil {
		t.Fatalf("DynamicTableDDL failed: %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = proc.DynamicTableDDL(cancelled, "my.app:*", "t")
	var ioErr *mgmt.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if _, ok := reg.Lookup("t"); ok {
		t.Error("failed materialization should drop the previous table")
	}
}

func TestTargetName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"java.lang:type=*", "java_lang:type=*"},
		{"ns:*", "ns:*"},
		{"a.b.c:k=v.w", "a_b_c:k=v_w"},
	}
	for _, tt := range tests {
		if got := TargetName(tt.in); got != tt.want {
			t.Errorf("TargetName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// fakeHost records what the preparser asks of it.
type fakeHost struct {
	proc     *Procedure
	refs     []sqlast.TableRef
	refsErr  error
	existing map[string]bool
	failing  map[string]bool

	execs    []string
	calls    []string
	unguided bool
}

func (h *fakeHost) TableRefs(ctx context.Context, query string) ([]sqlast.TableRef, error) {
	h.checkGuard(ctx)
	return h.refs, h.refsErr
}

func (h *fakeHost) TableExists(ctx context.Context, ref sqlast.TableRef) (bool, error) {
	h.checkGuard(ctx)
	return h.existing[ref.Table], nil
}

func (h *fakeHost) Exec(ctx context.Context, stmt string) error {
	h.checkGuard(ctx)
	h.execs = append(h.execs, stmt)
	return nil
}

func (h *fakeHost) DynamicTableDDL(ctx context.Context, pattern, target string) (string, error) {
	h.checkGuard(ctx)
	h.calls = append(h.calls, pattern)
	if h.failing[pattern] {
		return "", errors.New("connection refused")
	}
	return h.proc.DynamicTableDDL(ctx, pattern, target)
}

func (h *fakeHost) checkGuard(ctx context.Context) {
	if !Preparsing(ctx) {
		h.unguided = true
	}
}

func newPreparser() *Preparser {
	return NewPreparser(PreparserConfig{Dialect: testDialect, SourceName: "jmx", Logger: discardLogger})
}

// TestRewriteWildcard tests that a pattern reference is materialized once and replaced.
func TestRewriteWildcard(t *testing.T) {
	proc, reg := newProcedure(testConnection(t))
	host := &fakeHost{
		proc: proc,
		refs: []sqlast.TableRef{{Table: "my.app:type=Cache,*", Location: 14}},
	}

	query := `SELECT Hits FROM "my.app:type=Cache,*" WHERE Hits > 0`
	got := newPreparser().Rewrite(context.Background(), query, host)

	want := `SELECT Hits FROM "my_app:type=Cache,*" WHERE Hits > 0`
	if got != want {
		t.Errorf("Rewrite = %q, want %q", got, want)
	}
	if len(host.calls) != 1 {
		t.Errorf("expected 1 procedure call, got %d", len(host.calls))
	}
	if len(host.execs) != 2 || !strings.HasPrefix(host.execs[0], "DROP VIEW IF EXISTS") || !strings.HasPrefix(host.execs[1], "CREATE OR REPLACE VIEW") {
		t.Errorf("unexpected statements: %v", host.execs)
	}
	if host.unguided {
		t.Error("host called without the recursion guard")
	}
	if _, ok := reg.Lookup("my_app:type=Cache,*"); !ok {
		t.Error("target table not registered")
	}
}

// TestRewriteStripsSourcePrefix tests a source-qualified name written as one identifier.
func TestRewriteStripsSourcePrefix(t *testing.T) {
	proc, _ := newProcedure(testConnection(t))
	host := &fakeHost{proc: proc, refs: []sqlast.TableRef{{Table: "jmx.my.app:type=Pool"}}}

	got := newPreparser().Rewrite(context.Background(), `SELECT * FROM "jmx.my.app:type=Pool"`, host)
	if got != `SELECT * FROM "my_app:type=Pool"` {
		t.Errorf("Rewrite = %q", got)
	}
	if !slices.Equal(host.calls, []string{"my.app:type=Pool"}) {
		t.Errorf("calls = %v", host.calls)
	}
}

// TestRewriteSkips tests references that must not be materialized.
func TestRewriteSkips(t *testing.T) {
	proc, _ := newProcedure(testConnection(t))
	host := &fakeHost{
		proc: proc,
		refs: []sqlast.TableRef{
			{Schema: "pg_catalog", Table: "pg_class"},
			{Table: "sys.tables:*"},
			{Schema: "main", Table: "my.app:*"},
			{Catalog: "other", Schema: "jmx", Table: "my.app:*"},
			{Table: "plain_table"},
			{Table: "my.app:type=Pool"},
		},
		existing: map[string]bool{"my.app:type=Pool": true},
	}

	query := `SELECT 1`
	if got := newPreparser().Rewrite(context.Background(), query, host); got != query {
		t.Errorf("Rewrite = %q, want unchanged", got)
	}
	if len(host.calls) != 0 {
		t.Errorf("expected no procedure calls, got %v", host.calls)
	}
}

// TestRewriteFailureIsolated tests that one failing reference does not block the others.
func TestRewriteFailureIsolated(t *testing.T) {
	proc, _ := newProcedure(testConnection(t))
	host := &fakeHost{
		proc: proc,
		refs: []sqlast.TableRef{
			{Table: "bad.domain:*"},
			{Schema: "jmx", Table: "my.app:type=Cache,*"},
		},
		failing: map[string]bool{"bad.domain:*": true},
	}

	query := `SELECT * FROM "bad.domain:*", jmx."my.app:type=Cache,*"`
	got := newPreparser().Rewrite(context.Background(), query, host)
	want := `SELECT * FROM "bad.domain:*", jmx."my_app:type=Cache,*"`
	if got != want {
		t.Errorf("Rewrite = %q, want %q", got, want)
	}
	if len(host.calls) != 2 {
		t.Errorf("expected 2 procedure calls, got %v", host.calls)
	}
}

// TestRewriteGuard tests that a rewrite inside a rewrite is a no-op.
func TestRewriteGuard(t *testing.T) {
	host := &fakeHost{refsErr: errors.New("should not be called")}
	query := `SELECT * FROM "my.app:*"`

	got := newPreparser().Rewrite(WithinPreparse(context.Background()), query, host)
	if got != query {
		t.Errorf("Rewrite = %q, want unchanged", got)
	}
	if host.unguided {
		t.Error("host should not be called")
	}
	if Preparsing(context.Background()) {
		t.Error("background context must not be marked")
	}
}

// TestRewriteParseFailure tests that host parse errors leave the query unchanged.
func TestRewriteParseFailure(t *testing.T) {
	host := &fakeHost{refsErr: &sqlast.ParseError{Type: "PARSER", Message: "syntax error"}}
	query := `SELEC * FORM "my.app:*"`
	if got := newPreparser().Rewrite(context.Background(), query, host); got != query {
		t.Errorf("Rewrite = %q, want unchanged", got)
	}
}
