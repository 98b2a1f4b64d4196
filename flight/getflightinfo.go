package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/manageql/catalog"
)

// GetFlightInfo returns the schema and ticket of a table. The descriptor
// path is [schema_name, table_name]. A table name that is an object name
// or pattern not seen before is materialized on the fly.
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ctx = EnrichContextMetadata(ctx)
	schemaName, table, err := s.resolveDescriptor(ctx, desc)
	if err != nil {
		return nil, err
	}

	ticket, err := EncodeTicket(s.name, schemaName, table.Name())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode ticket: %v", err)
	}

	s.logger.Debug("GetFlightInfo",
		"trace_id", TraceIDFromContext(ctx),
		"schema", schemaName,
		"table", table.Name(),
	)
	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(table.ArrowSchema(), s.allocator),
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{{
			Ticket:   &flight.Ticket{Ticket: ticket},
			Location: s.location(),
		}},
		TotalRecords: -1,
		TotalBytes:   -1,
	}, nil
}

// GetSchema returns the Arrow schema of a table.
func (s *Server) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	ctx = EnrichContextMetadata(ctx)
	_, table, err := s.resolveDescriptor(ctx, desc)
	if err != nil {
		return nil, err
	}
	return &flight.SchemaResult{Schema: flight.SerializeSchema(table.ArrowSchema(), s.allocator)}, nil
}

func (s *Server) resolveDescriptor(ctx context.Context, desc *flight.FlightDescriptor) (string, catalog.Table, error) {
	if desc.GetType() != flight.DescriptorPATH {
		return "", nil, status.Error(codes.InvalidArgument, "descriptor must be PATH type")
	}
	path := desc.GetPath()
	if len(path) != 2 {
		return "", nil, status.Error(codes.InvalidArgument, "path must contain exactly 2 elements: [schema_name, table_name]")
	}

	schema, err := s.catalog.Schema(ctx, path[0])
	if err != nil {
		return "", nil, statusError(err, "get schema %s", path[0])
	}
	if schema == nil {
		return "", nil, status.Errorf(codes.NotFound, "schema not found: %s", path[0])
	}
	table, err := schema.Table(ctx, path[1])
	if err != nil {
		return "", nil, statusError(err, "get table %s.%s", path[0], path[1])
	}
	if table == nil {
		return "", nil, status.Errorf(codes.NotFound, "table not found: %s.%s", path[0], path[1])
	}
	return path[0], table, nil
}
