package catalog

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// ScanOptions provides options for table scans.
type ScanOptions struct {
	// Columns the caller needs. If nil/empty, all columns are read.
	// The returned records always carry the full table schema; columns
	// that were not requested are null.
	Columns []string

	// Limit is maximum rows to return.
	// If 0 or negative, no limit.
	Limit int64

	// BatchSize is hint for RecordReader batch size.
	// If 0, implementation chooses default.
	BatchSize int
}

// FunctionSignature describes table function parameter types.
type FunctionSignature struct {
	// Parameters is list of parameter types (in order).
	Parameters []arrow.DataType

	// ParameterNames names the parameters, parallel to Parameters.
	ParameterNames []string
}

// InputSchema returns an Arrow schema describing the parameters.
func (s FunctionSignature) InputSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(s.Parameters))
	for i, t := range s.Parameters {
		name := ""
		if i < len(s.ParameterNames) {
			name = s.ParameterNames[i]
		}
		fields[i] = arrow.Field{Name: name, Type: t, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}
