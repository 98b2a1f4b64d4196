// Package materialize synthesizes tables for object-name patterns on
// demand and rewrites queries to use them.
//
// A query referencing a pattern such as "java.lang:type=*" is rewritten
// before the host parses it: the Procedure (get_dynamic_table_ddl)
// registers a table named after the pattern with the union of the
// attributes of every matching object, the host executes the DDL the
// procedure returns, and the Preparser replaces the pattern in the query
// text with the new table name.
package materialize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/discovery"
	"github.com/hugr-lab/manageql/mgmt"
)

// ProcedureName is the name the procedure is registered under.
const ProcedureName = "get_dynamic_table_ddl"

// ProcedureConfig configures a Procedure.
type ProcedureConfig struct {
	Discovery *discovery.Engine
	Registry  *catalog.Registry
	Dialect   Dialect

	// SourceName is the schema tables are exposed under. A pattern written
	// as "<SourceName>.<pattern>" is accepted.
	SourceName string

	Logger *slog.Logger
}

// Procedure implements get_dynamic_table_ddl.
type Procedure struct {
	discovery *discovery.Engine
	registry  *catalog.Registry
	dialect   Dialect
	source    string
	logger    *slog.Logger
}

// NewProcedure creates a Procedure.
func NewProcedure(cfg ProcedureConfig) *Procedure {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Procedure{
		discovery: cfg.Discovery,
		registry:  cfg.Registry,
		dialect:   cfg.Dialect,
		source:    cfg.SourceName,
		logger:    logger,
	}
}

// DynamicTableDDL (re)creates the table target for the objects matching
// pattern and returns its DDL. The table holds $ObjectName plus the union
// of the attributes of all matching objects, first occurrence wins, with
// objects visited in canonical order. The same set of objects always
// yields the same DDL.
//
// Any existing table named target is replaced. The replacement is atomic
// for concurrent lookups. When the objects cannot be queried the existing
// table is dropped and the error returned.
//
// Returns *mgmt.MalformedNameError if pattern is not an object name.
func (p *Procedure) DynamicTableDDL(ctx context.Context, pattern, target string) (string, error) {
	name, err := mgmt.ParseObjectName(StripSource(pattern, p.source))
	if err != nil {
		return "", err
	}

	def, err := p.build(ctx, name, target)
	if err != nil {
		p.registry.Drop(target)
		return "", err
	}

	p.registry.Swap(def)
	p.logger.Debug("materialize: table created", "pattern", name.Canonical(), "table", target, "columns", len(def.Columns))
	return p.dialect.CreateTable(def), nil
}

func (p *Procedure) build(ctx context.Context, name mgmt.ObjectName, target string) (*catalog.TableDefinition, error) {
	matches, err := p.discovery.Matches(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.discovery.Columns(ctx, target, name.Canonical(), matches)
}

// TargetName returns the table name a pattern is materialized under.
func TargetName(pattern string) string {
	return strings.ReplaceAll(pattern, ".", "_")
}

// StripSource removes a leading "<source>." from name.
func StripSource(name, source string) string {
	if source == "" {
		return name
	}
	prefix := source + "."
	if len(name) > len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
		return name[len(prefix):]
	}
	return name
}
