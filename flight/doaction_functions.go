package flight

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hugr-lab/manageql/internal/msgpack"
)

// handleTableFunctionFlightInfo returns the FlightInfo of a table function
// call: its output schema for the given parameters and a ticket that
// executes the call.
//
// The request holds a serialized FlightDescriptor with path
// [schema, function] and the parameters as an Arrow IPC stream of one row.
func (s *Server) handleTableFunctionFlightInfo(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var request struct {
		Descriptor []byte `msgpack:"descriptor"`
		Parameters []byte `msgpack:"parameters"`
	}
	if err := msgpack.Decode(action.GetBody(), &request); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	var desc flight.FlightDescriptor
	if err := proto.Unmarshal(request.Descriptor, &desc); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid descriptor: %v", err)
	}
	if len(desc.Path) != 2 {
		return status.Errorf(codes.InvalidArgument, "expected descriptor path [schema, function], got %v", desc.Path)
	}
	schemaName, functionName := desc.Path[0], desc.Path[1]

	schema, err := s.catalog.Schema(ctx, schemaName)
	if err != nil {
		return statusError(err, "get schema %s", schemaName)
	}
	if schema == nil {
		return status.Errorf(codes.NotFound, "schema not found: %s", schemaName)
	}
	fn, err := findTableFunction(ctx, schema, functionName)
	if err != nil {
		return err
	}

	params, err := decodeTableFunctionParameters(request.Parameters)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode parameters: %v", err)
	}
	outSchema, err := fn.SchemaForParameters(ctx, params)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%s: %v", functionName, err)
	}

	ticket, err := (&TicketData{
		Catalog:        s.name,
		Schema:         schemaName,
		TableFunction:  functionName,
		FunctionParams: params,
	}).Encode()
	if err != nil {
		return status.Errorf(codes.Internal, "encode ticket: %v", err)
	}

	body, err := proto.Marshal(&flight.FlightInfo{
		Schema:           flight.SerializeSchema(outSchema, s.allocator),
		FlightDescriptor: &desc,
		Endpoint: []*flight.FlightEndpoint{{
			Ticket:   &flight.Ticket{Ticket: ticket},
			Location: s.location(),
		}},
		TotalRecords: -1,
		TotalBytes:   -1,
	})
	if err != nil {
		return status.Errorf(codes.Internal, "marshal FlightInfo: %v", err)
	}

	s.logger.Debug("table_function_flight_info",
		"schema", schemaName,
		"function", functionName,
		"param_count", len(params),
	)
	return sendBody(stream, body)
}

// decodeTableFunctionParameters reads the first row of an Arrow IPC stream
// as positional parameter values.
func decodeTableFunctionParameters(data []byte) ([]any, error) {
	if len(data) == 0 {
		return []any{}, nil
	}
	r, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read parameter stream: %w", err)
	}
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("no parameter record found")
	}
	rec := r.Record()
	params := make([]any, rec.NumCols())
	for i := range params {
		if col := rec.Column(i); col.Len() > 0 {
			params[i] = extractScalarValue(col, 0)
		}
	}
	return params, nil
}

// extractScalarValue converts the value at idx to a Go value. Integers
// widen to int64 and floats to float64. Unsupported types yield nil.
func extractScalarValue(arr arrow.Array, idx int) any {
	if arr.IsNull(idx) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(idx)
	case *array.LargeString:
		return a.Value(idx)
	case *array.Boolean:
		return a.Value(idx)
	case *array.Int8:
		return int64(a.Value(idx))
	case *array.Int16:
		return int64(a.Value(idx))
	case *array.Int32:
		return int64(a.Value(idx))
	case *array.Int64:
		return a.Value(idx)
	case *array.Uint8:
		return int64(a.Value(idx))
	case *array.Uint16:
		return int64(a.Value(idx))
	case *array.Uint32:
		return int64(a.Value(idx))
	case *array.Uint64:
		return int64(a.Value(idx))
	case *array.Float32:
		return float64(a.Value(idx))
	case *array.Float64:
		return a.Value(idx)
	case *array.Binary:
		return a.Value(idx)
	}
	return nil
}
