package materialize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/sqlast"
)

// DefaultReservedPrefixes are namespaces never treated as object names.
var DefaultReservedPrefixes = []string{"sys.", "sysadmin.", "pg_catalog.", "information_schema."}

// Host is the query engine a Preparser rewrites queries for. Calls made
// with the context passed to Rewrite carry the recursion guard, so a host
// routing its internal statements back through the Preparser is safe.
type Host interface {
	// TableRefs parses query without executing it and returns the base
	// tables it references.
	TableRefs(ctx context.Context, query string) ([]sqlast.TableRef, error)

	// TableExists reports whether the host resolves ref as it stands.
	TableExists(ctx context.Context, ref sqlast.TableRef) (bool, error)

	// Exec executes a statement on the host's internal connection.
	Exec(ctx context.Context, stmt string) error

	// DynamicTableDDL invokes get_dynamic_table_ddl through the host.
	DynamicTableDDL(ctx context.Context, pattern, target string) (string, error)
}

type preparseKey struct{}

// WithinPreparse marks ctx as being inside a preparse rewrite.
func WithinPreparse(ctx context.Context) context.Context {
	return context.WithValue(ctx, preparseKey{}, true)
}

// Preparsing reports whether ctx is inside a preparse rewrite.
func Preparsing(ctx context.Context) bool {
	v, _ := ctx.Value(preparseKey{}).(bool)
	return v
}

// PreparserConfig configures a Preparser.
type PreparserConfig struct {
	Dialect Dialect

	// SourceName is the schema management tables live in. References
	// qualified with any other schema are left alone.
	SourceName string

	// ReservedPrefixes overrides DefaultReservedPrefixes.
	ReservedPrefixes []string

	Logger *slog.Logger
}

// Preparser rewrites object-name references in query text to materialized
// tables.
type Preparser struct {
	dialect  Dialect
	source   string
	reserved []string
	logger   *slog.Logger
}

// NewPreparser creates a Preparser.
func NewPreparser(cfg PreparserConfig) *Preparser {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reserved := cfg.ReservedPrefixes
	if reserved == nil {
		reserved = DefaultReservedPrefixes
	}
	return &Preparser{
		dialect:  cfg.Dialect,
		source:   cfg.SourceName,
		reserved: reserved,
		logger:   logger,
	}
}

// Rewrite materializes every object-name reference in query that host does
// not resolve and returns the query with those references replaced by the
// materialized table names.
//
// Rewrite never fails. A reference that cannot be materialized is left
// unchanged and the host reports it when it parses the query. Inside a
// rewrite (see Preparsing) the query is returned as is.
func (p *Preparser) Rewrite(ctx context.Context, query string, host Host) string {
	if Preparsing(ctx) {
		return query
	}
	ctx = WithinPreparse(ctx)

	refs, err := host.TableRefs(ctx, query)
	if err != nil {
		p.logger.Debug("preparse: query not parsed", "error", err)
		return query
	}

	seen := make(map[string]bool)
	for _, ref := range refs {
		if seen[ref.Table] {
			continue
		}
		seen[ref.Table] = true

		name, ok := p.candidate(ref)
		if !ok {
			continue
		}
		exists, err := host.TableExists(ctx, ref)
		if err != nil {
			p.logger.Warn("preparse: table check failed", "table", ref.Table, "error", err)
			continue
		}
		if exists {
			continue
		}

		target := TargetName(name)
		if err := p.materialize(ctx, host, name, target); err != nil {
			p.logger.Warn("preparse: materialization failed", "pattern", name, "table", target, "error", err)
			continue
		}
		query = strings.ReplaceAll(query, ref.Table, target)
	}
	return query
}

// candidate returns the object name ref stands for, if any.
func (p *Preparser) candidate(ref sqlast.TableRef) (string, bool) {
	qualified := strings.ToLower(ref.Qualified())
	for _, prefix := range p.reserved {
		if strings.HasPrefix(qualified, strings.ToLower(prefix)) {
			return "", false
		}
	}
	if ref.Catalog != "" || (ref.Schema != "" && !strings.EqualFold(ref.Schema, p.source)) {
		return "", false
	}

	name := ref.Table
	if ref.Schema == "" {
		name = StripSource(name, p.source)
	}
	if _, err := mgmt.ParseObjectName(name); err != nil {
		return "", false
	}
	return name, true
}

func (p *Preparser) materialize(ctx context.Context, host Host, name, target string) error {
	if err := host.Exec(ctx, p.dialect.DropTable(target)); err != nil {
		p.logger.Debug("preparse: drop failed", "table", target, "error", err)
	}
	ddl, err := host.DynamicTableDDL(ctx, name, target)
	if err != nil {
		return err
	}
	return host.Exec(ctx, ddl)
}
