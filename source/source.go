// Package source registers the management object space as a relational
// source: a catalog of tables discovered from a management connection, an
// execution entry point reading their rows, the get_dynamic_table_ddl
// procedure and the preparse hook that calls it.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/discovery"
	"github.com/hugr-lab/manageql/fetch"
	"github.com/hugr-lab/manageql/materialize"
	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/query"
)

// DefaultName is the schema name management tables are exposed under.
const DefaultName = "jmx"

// Config configures a Source.
type Config struct {
	// Connection is the management connection. Required.
	Connection mgmt.Connection

	// Name is the schema name. Defaults to DefaultName.
	Name string

	// Registry holds the table definitions. A new registry is created
	// when nil.
	Registry *catalog.Registry

	// Typing selects discovered column types.
	Typing discovery.Typing

	// Dialect renders the DDL returned by get_dynamic_table_ddl.
	// Defaults to DuckDB views over ScanFunction in schema Name.
	Dialect materialize.Dialect

	// ReservedPrefixes overrides materialize.DefaultReservedPrefixes.
	ReservedPrefixes []string

	// Allocator for Arrow records. Defaults to memory.DefaultAllocator.
	Allocator memory.Allocator

	Logger *slog.Logger
}

// ScanFunction is the name of the table function the default dialect
// reads rows through.
const ScanFunction = "mgmt_scan"

// Source is a relational source over a management connection.
// It is goroutine-safe.
type Source struct {
	name      string
	conn      mgmt.Connection
	registry  *catalog.Registry
	discovery *discovery.Engine
	procedure *materialize.Procedure
	preparser *materialize.Preparser
	alloc     memory.Allocator
	logger    *slog.Logger
}

var _ catalog.VersionedCatalog = (*Source)(nil)

// New creates a Source. Tables are resolved lazily until Discover is called.
func New(cfg Config) (*Source, error) {
	if cfg.Connection == nil {
		return nil, errors.New("source: connection is required")
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = catalog.NewRegistry()
	}
	dialect := cfg.Dialect
	if dialect == nil {
		dialect = materialize.DuckDBDialect{Schema: name, ScanFunction: ScanFunction}
	}
	alloc := cfg.Allocator
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}

	eng := discovery.New(discovery.Config{
		Connection: cfg.Connection,
		Registry:   registry,
		Logger:     logger,
		Typing:     cfg.Typing,
	})
	registry.SetMaterializer(eng.Lookup)

	return &Source{
		name:      name,
		conn:      cfg.Connection,
		registry:  registry,
		discovery: eng,
		procedure: materialize.NewProcedure(materialize.ProcedureConfig{
			Discovery:  eng,
			Registry:   registry,
			Dialect:    dialect,
			SourceName: name,
			Logger:     logger,
		}),
		preparser: materialize.NewPreparser(materialize.PreparserConfig{
			Dialect:          dialect,
			SourceName:       name,
			ReservedPrefixes: cfg.ReservedPrefixes,
			Logger:           logger,
		}),
		alloc:  alloc,
		logger: logger,
	}, nil
}

// Name returns the schema name.
func (s *Source) Name() string { return s.name }

// Connection returns the management connection.
func (s *Source) Connection() mgmt.Connection { return s.conn }

// Registry returns the table registry.
func (s *Source) Registry() *catalog.Registry { return s.registry }

// Discover runs a discovery pass over every object.
func (s *Source) Discover(ctx context.Context) error {
	return s.discovery.Discover(ctx)
}

// Lookup returns the definition of table, materializing it from the
// management connection when it names objects not seen yet. Returns
// catalog.ErrNotFound when the table cannot be resolved.
func (s *Source) Lookup(ctx context.Context, table string) (*catalog.TableDefinition, error) {
	def, err := s.registry.LookupOrMaterialize(ctx, materialize.StripSource(table, s.name))
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("table %q: %w", table, catalog.ErrNotFound)
	}
	return def, nil
}

// Open prepares an execution reading columns of table. An empty column list
// reads every column. The execution still has to be executed.
func (s *Source) Open(ctx context.Context, table string, columns []string) (*fetch.Execution, error) {
	def, err := s.Lookup(ctx, table)
	if err != nil {
		return nil, err
	}
	sel, err := query.NewSelect(def, columns)
	if err != nil {
		return nil, err
	}
	return fetch.New(s.conn, def, query.Visit(sel), s.logger), nil
}

// DynamicTableDDL is the get_dynamic_table_ddl procedure.
func (s *Source) DynamicTableDDL(ctx context.Context, pattern, target string) (string, error) {
	return s.procedure.DynamicTableDDL(ctx, pattern, target)
}

// Preparser returns the preparse hook materializing pattern references.
func (s *Source) Preparser() *materialize.Preparser { return s.preparser }

// Schemas implements catalog.Catalog.
func (s *Source) Schemas(ctx context.Context) ([]catalog.Schema, error) {
	return []catalog.Schema{&schema{src: s}}, nil
}

// Schema implements catalog.Catalog.
func (s *Source) Schema(ctx context.Context, name string) (catalog.Schema, error) {
	if name != s.name {
		return nil, nil
	}
	return &schema{src: s}, nil
}

// CatalogVersion implements catalog.VersionedCatalog. The version changes
// whenever a table is discovered, materialized or dropped.
func (s *Source) CatalogVersion(ctx context.Context) (catalog.CatalogVersion, error) {
	return catalog.CatalogVersion{Version: s.registry.Version(), IsFixed: false}, nil
}
