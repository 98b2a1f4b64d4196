// Package discovery synthesizes table definitions from the attribute
// descriptors of management objects.
//
// Every object name becomes one table holding the reserved $ObjectName
// column plus one column per attribute. Tables are built eagerly by
// Discover and lazily by Lookup, which the registry uses as its
// materializer. Both paths fold attributes with the same rule, so a table
// looks the same whichever path created it.
package discovery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/mapping"
	"github.com/hugr-lab/manageql/mgmt"
)

// Typing selects how attribute columns are typed.
type Typing int

const (
	// TypingMapped types columns with mapping.MapType.
	TypingMapped Typing = iota

	// TypingString types every attribute column as string.
	TypingString
)

// ColumnType returns the column type for an attribute descriptor.
func (t Typing) ColumnType(descriptor string) catalog.RelationalType {
	if t == TypingString {
		return catalog.TypeString
	}
	return mapping.MapType(descriptor)
}

// Config configures an Engine.
type Config struct {
	// Connection is the management connection to discover from.
	Connection mgmt.Connection

	// Registry receives the discovered tables.
	Registry *catalog.Registry

	// Logger is used for swallowed failures. Defaults to slog.Default().
	Logger *slog.Logger

	// Typing selects column typing. Defaults to TypingMapped.
	Typing Typing
}

// Engine discovers tables from a management connection.
type Engine struct {
	conn     mgmt.Connection
	registry *catalog.Registry
	logger   *slog.Logger
	typing   Typing
}

// New creates an Engine. It does not install itself as the registry's
// materializer; call Registry.SetMaterializer(e.Lookup) for that.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		conn:     cfg.Connection,
		registry: cfg.Registry,
		logger:   logger,
		typing:   cfg.Typing,
	}
}

// Discover enumerates every object and folds its attributes into the table
// named after its canonical object name. Objects are visited in canonical
// order so column order is reproducible. Tables are never removed.
//
// A failure to describe one object is logged and skipped. Only a failure to
// enumerate objects is returned.
func (e *Engine) Discover(ctx context.Context) error {
	names, err := e.conn.QueryNames(ctx, nil)
	if err != nil {
		return mgmt.WrapIOError("query", "", err)
	}
	mgmt.SortNames(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := name.Canonical()
		infos, err := e.conn.Describe(ctx, name)
		if err != nil {
			e.logger.Warn("discovery: skipping object", "object", key, "error", err)
			continue
		}
		e.fold(key, key, infos)
	}

	e.logger.Debug("discovery: pass complete", "objects", len(names), "tables", e.registry.Len())
	return nil
}

// Lookup resolves a table the registry does not hold yet. When name parses
// as an object name or pattern, the matching objects are queried and
// folded into a table registered under name (under the canonical name for
// an exact object name). Returns (nil, nil) when nothing matches.
//
// The table is built before it is registered, so a concurrent lookup sees
// no table or the complete one. Management I/O failures are logged and
// reported as a miss; a cancelled context is returned.
func (e *Engine) Lookup(ctx context.Context, name string) (*catalog.TableDefinition, error) {
	pattern, err := mgmt.ParseObjectName(name)
	if err != nil {
		return nil, nil
	}

	tableName := name
	if !pattern.IsPattern() {
		tableName = pattern.Canonical()
		if def, ok := e.registry.Lookup(tableName); ok {
			return def, nil
		}
	}

	matches, err := e.Matches(ctx, pattern)
	if err != nil {
		e.logger.Warn("discovery: lookup failed", "table", name, "error", err)
		return nil, nil
	}

	built, described, err := e.columns(ctx, tableName, pattern.Canonical(), matches)
	if err != nil {
		return nil, err
	}
	if described == 0 {
		return nil, nil
	}
	return e.publish(built), nil
}

// Matches returns the objects selected by pattern in canonical order.
func (e *Engine) Matches(ctx context.Context, pattern mgmt.ObjectName) ([]mgmt.ObjectName, error) {
	names, err := e.conn.QueryNames(ctx, &pattern)
	if err != nil {
		return nil, mgmt.WrapIOError("query", pattern.Canonical(), err)
	}
	mgmt.SortNames(names)
	return names, nil
}

// Columns returns the union of the attributes of names, first occurrence
// wins, without registering anything. Objects that cannot be described are
// logged and skipped; a cancelled context is returned.
func (e *Engine) Columns(ctx context.Context, tableName, nameInSource string, names []mgmt.ObjectName) (*catalog.TableDefinition, error) {
	def, _, err := e.columns(ctx, tableName, nameInSource, names)
	return def, err
}

// columns is Columns that also counts the objects described.
func (e *Engine) columns(ctx context.Context, tableName, nameInSource string, names []mgmt.ObjectName) (*catalog.TableDefinition, int, error) {
	def := catalog.NewTableDefinition(tableName, nameInSource)
	described := 0
	for _, n := range names {
		infos, err := e.conn.Describe(ctx, n)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, 0, err
			}
			e.logger.Warn("discovery: skipping object", "object", n.Canonical(), "error", err)
			continue
		}
		e.addColumns(def, infos)
		described++
	}
	return def, described, nil
}

// publish registers built with a single registry write. Columns missing
// from a table registered meanwhile under the same name are appended to it.
func (e *Engine) publish(built *catalog.TableDefinition) *catalog.TableDefinition {
	return e.registry.Update(built.Name,
		built.Clone,
		func(def *catalog.TableDefinition) bool {
			changed := false
			for _, c := range built.Columns {
				if def.AddColumn(c.Name, c.Type) {
					changed = true
				}
			}
			return changed
		},
	)
}

// fold adds the attributes in infos to the table registered under name,
// creating it when absent.
func (e *Engine) fold(name, nameInSource string, infos []mgmt.AttributeInfo) *catalog.TableDefinition {
	return e.registry.Update(name,
		func() *catalog.TableDefinition { return catalog.NewTableDefinition(name, nameInSource) },
		func(def *catalog.TableDefinition) bool { return e.addColumns(def, infos) },
	)
}

func (e *Engine) addColumns(def *catalog.TableDefinition, infos []mgmt.AttributeInfo) bool {
	changed := false
	for _, info := range infos {
		if def.AddColumn(info.Name, e.typing.ColumnType(info.Type)) {
			changed = true
		}
	}
	return changed
}
