package source

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/materialize"
)

var ddlSchema = arrow.NewSchema([]arrow.Field{
	{Name: "ddl", Type: arrow.BinaryTypes.String},
}, nil)

// ddlFunction exposes get_dynamic_table_ddl as a table function returning
// one row with the DDL text.
type ddlFunction struct {
	src *Source
}

func (f *ddlFunction) Name() string { return materialize.ProcedureName }

func (f *ddlFunction) Comment() string {
	return "Creates a table for the objects matching a pattern and returns its DDL"
}

func (f *ddlFunction) Signature() catalog.FunctionSignature {
	return catalog.FunctionSignature{
		Parameters:     []arrow.DataType{arrow.BinaryTypes.String, arrow.BinaryTypes.String},
		ParameterNames: []string{"pattern", "target"},
	}
}

func (f *ddlFunction) SchemaForParameters(ctx context.Context, params []any) (*arrow.Schema, error) {
	if _, _, err := ddlParams(params); err != nil {
		return nil, err
	}
	return ddlSchema, nil
}

func (f *ddlFunction) Execute(ctx context.Context, params []any, opts *catalog.ScanOptions) (array.RecordReader, error) {
	pattern, target, err := ddlParams(params)
	if err != nil {
		return nil, err
	}
	ddl, err := f.src.DynamicTableDDL(ctx, pattern, target)
	if err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(f.src.alloc, ddlSchema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).Append(ddl)
	rec := b.NewRecord()
	defer rec.Release()

	return array.NewRecordReader(ddlSchema, []arrow.Record{rec})
}

func ddlParams(params []any) (pattern, target string, err error) {
	if len(params) != 2 {
		return "", "", fmt.Errorf("%s expects 2 parameters, got %d", materialize.ProcedureName, len(params))
	}
	pattern, ok1 := params[0].(string)
	target, ok2 := params[1].(string)
	if !ok1 || !ok2 {
		return "", "", fmt.Errorf("%s expects string parameters, got %T and %T", materialize.ProcedureName, params[0], params[1])
	}
	return pattern, target, nil
}
