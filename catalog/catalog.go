// Package catalog defines the relational view of the management object
// space: table definitions, the shared Registry that owns them, and the
// Catalog/Schema/Table interfaces through which transports expose them.
//
// All interfaces are goroutine-safe and support context-based cancellation.
package catalog

import (
	"context"
)

// Catalog represents the top-level metadata container.
// All methods MUST be goroutine-safe.
type Catalog interface {
	// Schemas returns all schemas visible in this catalog.
	// Returns empty slice (not nil) if no schemas available.
	// MUST respect context cancellation and deadlines.
	Schemas(ctx context.Context) ([]Schema, error)

	// Schema returns a specific schema by name.
	// Returns (nil, nil) if schema doesn't exist (not an error).
	// Returns (nil, err) if lookup fails for other reasons.
	Schema(ctx context.Context, name string) (Schema, error)
}

// Schema represents a database schema containing tables and functions.
// Implementations MUST be goroutine-safe.
type Schema interface {
	// Name returns the schema name (e.g., "jmx").
	// MUST return non-empty string.
	Name() string

	// Comment returns optional schema documentation.
	// Returns empty string if no comment provided.
	Comment() string

	// Tables returns all tables in this schema.
	// Returns empty slice (not nil) if no tables available.
	// MUST respect context cancellation.
	Tables(ctx context.Context) ([]Table, error)

	// Table returns a specific table by name.
	// Returns (nil, nil) if table doesn't exist (not an error).
	// Returns (nil, err) if lookup fails for other reasons.
	Table(ctx context.Context, name string) (Table, error)

	// TableFunctions returns all table-valued functions in this schema.
	// Returns empty slice (not nil) if no table functions available.
	TableFunctions(ctx context.Context) ([]TableFunction, error)
}
