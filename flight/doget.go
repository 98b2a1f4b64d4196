package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/internal/recovery"
)

// DoGet streams the rows of a table, or the result of a table function
// call, as Arrow record batches.
//
// Rows are read from the management connection while the stream is being
// written; every batch reflects the attribute values at the time it was
// read.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) (err error) {
	defer recovery.Guard(s.logger, "DoGet", &err)
	ctx := EnrichContextMetadata(stream.Context())

	td, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}
	if s.name != "" && td.Catalog != "" && td.Catalog != s.name {
		return status.Errorf(codes.InvalidArgument, "catalog name mismatch: expected %q, got %q", s.name, td.Catalog)
	}

	s.logger.Debug("DoGet request",
		"trace_id", TraceIDFromContext(ctx),
		"schema", td.Schema,
		"table", td.Table,
		"table_function", td.TableFunction,
		"columns", td.Columns,
	)

	schema, err := s.catalog.Schema(ctx, td.Schema)
	if err != nil {
		return statusError(err, "get schema %s", td.Schema)
	}
	if schema == nil {
		return status.Errorf(codes.NotFound, "schema not found: %s", td.Schema)
	}

	var reader array.RecordReader
	var readerSchema *arrow.Schema
	if td.TableFunction != "" {
		reader, readerSchema, err = s.executeTableFunction(ctx, schema, td)
	} else {
		reader, readerSchema, err = s.executeTableScan(ctx, schema, td)
	}
	if err != nil {
		return err
	}
	defer reader.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(readerSchema), ipc.WithAllocator(s.allocator))
	defer writer.Close()

	var batches, rows int64
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			s.logger.Debug("DoGet cancelled by client", "batches_sent", batches, "rows_sent", rows)
			return status.Error(codes.Canceled, "request cancelled")
		}
		rec := reader.Record()
		if err := writer.Write(rec); err != nil {
			return status.Errorf(codes.Internal, "write batch %d: %v", batches+1, err)
		}
		batches++
		rows += rec.NumRows()
	}
	if err := reader.Err(); err != nil {
		s.logger.Warn("DoGet scan failed",
			"schema", td.Schema,
			"table", td.Table,
			"batches_sent", batches,
			"error", err,
		)
		return statusError(err, "scan error after batch %d", batches)
	}

	s.logger.Debug("DoGet completed",
		"schema", td.Schema,
		"table", td.Table,
		"table_function", td.TableFunction,
		"batches_sent", batches,
		"total_rows", rows,
	)
	return nil
}

// executeTableScan scans a table. The reader carries the full table schema
// with unrequested columns left null.
func (s *Server) executeTableScan(ctx context.Context, schema catalog.Schema, td *TicketData) (array.RecordReader, *arrow.Schema, error) {
	table, err := schema.Table(ctx, td.Table)
	if err != nil {
		return nil, nil, statusError(err, "get table %s.%s", td.Schema, td.Table)
	}
	if table == nil {
		return nil, nil, status.Errorf(codes.NotFound, "table not found: %s.%s", td.Schema, td.Table)
	}

	fullSchema := table.ArrowSchema()
	reader, err := table.Scan(ctx, s.scanOptions(td))
	if err != nil {
		return nil, nil, statusError(err, "scan %s.%s", td.Schema, td.Table)
	}
	if !fullSchema.Equal(reader.Schema()) {
		reader.Release()
		return nil, nil, status.Errorf(codes.Internal,
			"schema mismatch: table has %d fields, reader has %d fields",
			fullSchema.NumFields(), reader.Schema().NumFields())
	}
	return reader, fullSchema, nil
}

// executeTableFunction runs a table function call.
func (s *Server) executeTableFunction(ctx context.Context, schema catalog.Schema, td *TicketData) (array.RecordReader, *arrow.Schema, error) {
	fn, err := findTableFunction(ctx, schema, td.TableFunction)
	if err != nil {
		return nil, nil, err
	}

	fullSchema, err := fn.SchemaForParameters(ctx, td.FunctionParams)
	if err != nil {
		return nil, nil, status.Errorf(codes.InvalidArgument, "%s: %v", td.TableFunction, err)
	}

	reader, err := fn.Execute(ctx, td.FunctionParams, s.scanOptions(td))
	if err != nil {
		s.logger.Warn("table function failed",
			"schema", td.Schema,
			"function", td.TableFunction,
			"error", err,
		)
		return nil, nil, statusError(err, "%s failed", td.TableFunction)
	}
	if !fullSchema.Equal(reader.Schema()) {
		reader.Release()
		return nil, nil, status.Errorf(codes.Internal,
			"schema mismatch: function declared %d fields, reader has %d fields",
			fullSchema.NumFields(), reader.Schema().NumFields())
	}
	return reader, fullSchema, nil
}

func findTableFunction(ctx context.Context, schema catalog.Schema, name string) (catalog.TableFunction, error) {
	functions, err := schema.TableFunctions(ctx)
	if err != nil {
		return nil, statusError(err, "list table functions")
	}
	for _, fn := range functions {
		if fn.Name() == name {
			return fn, nil
		}
	}
	return nil, status.Errorf(codes.NotFound, "table function not found: %s.%s", schema.Name(), name)
}
