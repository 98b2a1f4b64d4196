package flight

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/internal/msgpack"
	"github.com/hugr-lab/manageql/internal/serialize"
)

// emptyHash is the hash reported for contents sent inline elsewhere.
const emptyHash = "0000000000000000000000000000000000000000000000000000000000000000"

// appMetadata mirrors AirportSerializedFlightAppMetadata.
type appMetadata struct {
	Type        string  `msgpack:"type"`
	Schema      string  `msgpack:"schema"`
	Catalog     string  `msgpack:"catalog"`
	Name        string  `msgpack:"name"`
	Comment     string  `msgpack:"comment"`
	InputSchema *string `msgpack:"input_schema"`
	ActionName  *string `msgpack:"action_name"`
	Description *string `msgpack:"description"`
	ExtraData   *string `msgpack:"extra_data"`
}

// handleListSchemas returns the catalog root: every schema with the
// serialized FlightInfo of its tables and table functions, and the catalog
// version. Clients re-list when the version changes, which happens after
// every discovery or materialization.
func (s *Server) handleListSchemas(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var params struct {
		CatalogName string `msgpack:"catalog_name"`
	}
	if err := msgpack.DecodeOptional(action.GetBody(), &params); err != nil {
		s.logger.Warn("list_schemas: ignoring undecodable body", "error", err)
	}

	schemas, err := s.catalog.Schemas(ctx)
	if err != nil {
		return statusError(err, "list schemas")
	}
	version, err := s.catalogVersion(ctx)
	if err != nil {
		return statusError(err, "catalog version")
	}

	schemaObjects := make([]map[string]any, 0, len(schemas))
	for i, schema := range schemas {
		contents, err := s.serializeSchemaContents(ctx, schema)
		if err != nil {
			return statusError(err, "serialize schema %s", schema.Name())
		}
		schemaObjects = append(schemaObjects, map[string]any{
			"name":        schema.Name(),
			"description": schema.Comment(),
			"tags":        map[string]string{},
			"contents": map[string]any{
				"sha256":     serialize.Hash(contents),
				"url":        nil,
				"serialized": string(contents),
			},
			"is_default": i == 0,
		})
	}

	root := map[string]any{
		"contents": map[string]any{
			"sha256":     emptyHash,
			"url":        nil,
			"serialized": nil,
		},
		"schemas": schemaObjects,
		"version_info": map[string]any{
			"catalog_version": version.Version,
			"is_fixed":        version.IsFixed,
		},
	}
	body, err := serialize.Seal(root)
	if err != nil {
		return status.Errorf(codes.Internal, "encode catalog root: %v", err)
	}

	s.logger.Debug("list_schemas",
		"catalog_name", params.CatalogName,
		"schema_count", len(schemas),
		"catalog_version", version.Version,
	)
	return sendBody(stream, body)
}

// serializeSchemaContents returns the sealed MessagePack array of
// protobuf FlightInfos for the tables and table functions of schema.
func (s *Server) serializeSchemaContents(ctx context.Context, schema catalog.Schema) ([]byte, error) {
	tables, err := schema.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	functions, err := schema.TableFunctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list table functions: %w", err)
	}

	infos := make([][]byte, 0, len(tables)+len(functions))
	for _, table := range tables {
		info, err := s.tableFlightInfo(schema.Name(), table)
		if err != nil {
			return nil, err
		}
		b, err := proto.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("marshal FlightInfo of %s: %w", table.Name(), err)
		}
		infos = append(infos, b)
	}
	for _, fn := range functions {
		info, err := s.functionListing(schema.Name(), fn)
		if err != nil {
			return nil, err
		}
		b, err := proto.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("marshal FlightInfo of %s: %w", fn.Name(), err)
		}
		infos = append(infos, b)
	}
	return serialize.Seal(infos)
}

// tableFlightInfo builds the FlightInfo of a table.
func (s *Server) tableFlightInfo(schemaName string, table catalog.Table) (*flight.FlightInfo, error) {
	md, err := msgpack.Encode(appMetadata{
		Type:    "table",
		Schema:  schemaName,
		Catalog: s.name,
		Name:    table.Name(),
		Comment: table.Comment(),
	})
	if err != nil {
		return nil, err
	}
	ticket, err := EncodeTicket(s.name, schemaName, table.Name())
	if err != nil {
		return nil, err
	}
	return &flight.FlightInfo{
		Schema: flight.SerializeSchema(table.ArrowSchema(), s.allocator),
		FlightDescriptor: &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{schemaName, table.Name()},
		},
		Endpoint: []*flight.FlightEndpoint{{
			Ticket:   &flight.Ticket{Ticket: ticket},
			Location: s.location(),
		}},
		TotalRecords: -1,
		TotalBytes:   -1,
		AppMetadata:  md,
	}, nil
}

// functionListing builds the catalog entry of a table function. Its
// schema is the parameter schema; the output schema is resolved per call
// through table_function_flight_info.
func (s *Server) functionListing(schemaName string, fn catalog.TableFunction) (*flight.FlightInfo, error) {
	input := string(flight.SerializeSchema(fn.Signature().InputSchema(), s.allocator))
	actionName := ActionTableFunctionFlightInfo
	description := fn.Comment()
	md, err := msgpack.Encode(appMetadata{
		Type:        "table_function",
		Schema:      schemaName,
		Catalog:     s.name,
		Name:        fn.Name(),
		Comment:     fn.Comment(),
		InputSchema: &input,
		ActionName:  &actionName,
		Description: &description,
	})
	if err != nil {
		return nil, err
	}
	return &flight.FlightInfo{
		Schema: flight.SerializeSchema(fn.Signature().InputSchema(), s.allocator),
		FlightDescriptor: &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{schemaName, fn.Name()},
		},
		TotalRecords: -1,
		TotalBytes:   -1,
		AppMetadata:  md,
	}, nil
}

// handleFlightInfo returns the protobuf FlightInfo of one table. The table
// is resolved, and materialized when needed, like GetFlightInfo.
func (s *Server) handleFlightInfo(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var request struct {
		Descriptor string `msgpack:"descriptor"`
	}
	if err := msgpack.Decode(action.GetBody(), &request); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	desc := &flight.FlightDescriptor{}
	if err := proto.Unmarshal([]byte(request.Descriptor), desc); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid descriptor: %v", err)
	}

	schemaName, table, err := s.resolveDescriptor(ctx, desc)
	if err != nil {
		return err
	}
	info, err := s.tableFlightInfo(schemaName, table)
	if err != nil {
		return status.Errorf(codes.Internal, "build FlightInfo: %v", err)
	}
	body, err := proto.Marshal(info)
	if err != nil {
		return status.Errorf(codes.Internal, "marshal FlightInfo: %v", err)
	}
	return sendBody(stream, body)
}

// handleEndpoints returns the endpoints for a table scan or a table
// function call. Requested column ids become the ticket's column list so
// only those attributes are read.
func (s *Server) handleEndpoints(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var request struct {
		Descriptor string `msgpack:"descriptor"`
		Parameters struct {
			JSONFilters             string   `msgpack:"json_filters"`
			ColumnIDs               []uint64 `msgpack:"column_ids"`
			TableFunctionParameters string   `msgpack:"table_function_parameters"`
		} `msgpack:"parameters"`
	}
	if err := msgpack.Decode(action.GetBody(), &request); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	desc := &flight.FlightDescriptor{}
	if err := proto.Unmarshal([]byte(request.Descriptor), desc); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid descriptor: %v", err)
	}
	path := desc.GetPath()
	if desc.GetType() != flight.DescriptorPATH || len(path) != 2 {
		return status.Error(codes.InvalidArgument, "descriptor must be PATH type with 2 elements [schema, table]")
	}

	td := &TicketData{Catalog: s.name, Schema: path[0]}
	if request.Parameters.TableFunctionParameters != "" {
		params, err := decodeTableFunctionParameters([]byte(request.Parameters.TableFunctionParameters))
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "decode parameters: %v", err)
		}
		td.TableFunction = path[1]
		td.FunctionParams = params
	} else {
		_, table, err := s.resolveDescriptor(ctx, desc)
		if err != nil {
			return err
		}
		td.Table = table.Name()
		td.Columns = columnNames(table.ArrowSchema(), request.Parameters.ColumnIDs)
	}

	ticket, err := td.Encode()
	if err != nil {
		return status.Errorf(codes.Internal, "encode ticket: %v", err)
	}
	endpoint, err := proto.Marshal(&flight.FlightEndpoint{
		Ticket:   &flight.Ticket{Ticket: ticket},
		Location: s.location(),
	})
	if err != nil {
		return status.Errorf(codes.Internal, "marshal endpoint: %v", err)
	}

	s.logger.Debug("endpoints",
		"schema", td.Schema,
		"table", td.Table,
		"table_function", td.TableFunction,
		"columns", td.Columns,
		"has_filters", request.Parameters.JSONFilters != "",
	)
	return sendMsgpack(stream, []string{string(endpoint)})
}

// columnNames maps column ids to field names. Ids past the schema, such as
// the row id pseudo column, are ignored. A result of nil reads all columns.
func columnNames(schema *arrow.Schema, ids []uint64) []string {
	var names []string
	for _, id := range ids {
		if id < uint64(schema.NumFields()) {
			names = append(names, schema.Field(int(id)).Name)
		}
	}
	return names
}

// handleCatalogVersion returns the catalog version.
func (s *Server) handleCatalogVersion(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	version, err := s.catalogVersion(ctx)
	if err != nil {
		return statusError(err, "catalog version")
	}
	return sendMsgpack(stream, map[string]any{
		"catalog_version": version.Version,
		"is_fixed":        version.IsFixed,
	})
}

// handleCreateTransaction returns a nil identifier: tables are read-only
// views of live objects and take no part in transactions.
func (s *Server) handleCreateTransaction(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	return sendMsgpack(stream, map[string]any{"identifier": nil})
}
