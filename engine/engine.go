// Package engine hosts a Source inside an embedded DuckDB database.
//
// Every table of the source is exposed as a view in the source schema over
// the mgmt_scan table function, get_dynamic_table_ddl is registered as a
// table function, and queries run through QueryContext are rewritten by the
// source's preparser before DuckDB parses them.
package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/materialize"
	"github.com/hugr-lab/manageql/source"
)

// Config configures an Engine.
type Config struct {
	// Source to host. Required.
	Source *source.Source

	// DSN of the DuckDB database. Empty opens an in-memory database.
	DSN string

	Logger *slog.Logger
}

// Engine is a DuckDB database serving a Source. It is goroutine-safe.
type Engine struct {
	src     *source.Source
	db      *sql.DB
	dialect materialize.DuckDBDialect
	logger  *slog.Logger

	// ctx bounds management calls made from inside DuckDB, which has no
	// request context to hand down.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	views map[string]*catalog.TableDefinition
}

// Open creates the database, registers the table functions and the source
// schema, and creates views for the tables already in the registry.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("engine: source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schema := cfg.Source.Name()
	init := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s; SET search_path = %s",
		materialize.QuoteIdent(schema), materialize.QuoteLiteral("main,"+schema))
	connector, err := duckdb.NewConnector(cfg.DSN, func(execer driver.ExecerContext) error {
		_, err := execer.ExecContext(context.Background(), init, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("engine: open duckdb: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		src:     cfg.Source,
		db:      sql.OpenDB(connector),
		dialect: materialize.DuckDBDialect{Schema: schema, ScanFunction: source.ScanFunction},
		logger:  logger,
		ctx:     baseCtx,
		cancel:  cancel,
		views:   make(map[string]*catalog.TableDefinition),
	}

	if err := e.registerFunctions(ctx); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.Sync(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// DB returns the underlying database. Queries run on it directly bypass the
// preparser.
func (e *Engine) DB() *sql.DB { return e.db }

// Close closes the database.
func (e *Engine) Close() error {
	e.cancel()
	return e.db.Close()
}

// Sync creates or replaces a view for every table in the registry. A table
// whose view cannot be created is logged and skipped; only a cancelled
// context is returned.
func (e *Engine) Sync(ctx context.Context) error {
	for _, def := range e.src.Registry().Tables() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.ensureView(ctx, def.Name, def); err != nil {
			e.logger.Warn("engine: skipping table", "table", def.Name, "error", err)
		}
	}
	return nil
}

// Rewrite runs the preparse hook on query.
func (e *Engine) Rewrite(ctx context.Context, query string) string {
	return e.src.Preparser().Rewrite(ctx, query, e)
}

// QueryContext rewrites query and runs it.
func (e *Engine) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rewritten := e.Rewrite(ctx, query)
	if rewritten != query {
		e.logger.Debug("engine: query rewritten", "query", query, "rewritten", rewritten)
	}
	return e.db.QueryContext(ctx, rewritten, args...)
}

// ExecContext rewrites query and executes it.
func (e *Engine) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return e.db.ExecContext(ctx, e.Rewrite(ctx, query), args...)
}

// ensureView creates the view name over def unless the same definition is
// already exposed under that name.
func (e *Engine) ensureView(ctx context.Context, name string, def *catalog.TableDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.views[name] == def {
		return nil
	}

	view := def.Clone()
	view.Name = name
	if folded := view.FoldedColumns(); len(folded) != len(view.Columns) {
		e.logger.Warn("engine: columns differing only in case are hidden", "table", name,
			"columns", len(view.Columns), "exposed", len(folded))
	}
	if _, err := e.db.ExecContext(materialize.WithinPreparse(ctx), e.dialect.CreateTable(view)); err != nil {
		return fmt.Errorf("engine: create view %s: %w", name, err)
	}
	e.views[name] = def
	return nil
}

// forgetView drops the cached definition of a view replaced outside
// ensureView.
func (e *Engine) forgetView(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.views, name)
}
