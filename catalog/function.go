package catalog

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// TableFunction represents a table-valued function (returns table, not scalar).
// Supports DuckDB Airport Extension table_function_flight_info action.
type TableFunction interface {
	// Name returns the function name (e.g., "get_dynamic_table_ddl").
	// MUST return non-empty string.
	Name() string

	// Comment returns optional function documentation.
	// Returns empty string if no comment provided.
	Comment() string

	// Signature returns the function signature.
	Signature() FunctionSignature

	// SchemaForParameters returns the output schema for given parameters.
	// Used by GetFlightInfo before executing function.
	// Returns error if parameters are invalid.
	SchemaForParameters(ctx context.Context, params []any) (*arrow.Schema, error)

	// Execute runs the table function and returns a RecordReader.
	// Returned RecordReader schema MUST match SchemaForParameters result.
	// Caller MUST call reader.Release().
	Execute(ctx context.Context, params []any, opts *ScanOptions) (array.RecordReader, error)
}
