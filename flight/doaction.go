package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/manageql/internal/msgpack"
	"github.com/hugr-lab/manageql/internal/recovery"
)

// Airport action types.
const (
	ActionListSchemas             = "list_schemas"
	ActionEndpoints               = "endpoints"
	ActionFlightInfo              = "flight_info"
	ActionTableFunctionFlightInfo = "table_function_flight_info"
	ActionCatalogVersion          = "catalog_version"
	ActionCreateTransaction       = "create_transaction"
)

var actionTypes = []*flight.ActionType{
	{Type: ActionListSchemas, Description: "List schemas with the serialized FlightInfo of their tables"},
	{Type: ActionEndpoints, Description: "Return endpoints for a table or table function descriptor"},
	{Type: ActionFlightInfo, Description: "Return FlightInfo for a table descriptor"},
	{Type: ActionTableFunctionFlightInfo, Description: "Return FlightInfo for a table function call"},
	{Type: ActionCatalogVersion, Description: "Return the catalog version"},
	{Type: ActionCreateTransaction, Description: "Return a null transaction identifier"},
}

// DoAction dispatches Airport actions.
func (s *Server) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) (err error) {
	defer recovery.Guard(s.logger, "DoAction "+action.GetType(), &err)
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("DoAction",
		"trace_id", TraceIDFromContext(ctx),
		"type", action.GetType(),
		"body_size", len(action.GetBody()),
	)

	switch action.GetType() {
	case ActionListSchemas:
		return s.handleListSchemas(ctx, action, stream)
	case ActionEndpoints:
		return s.handleEndpoints(ctx, action, stream)
	case ActionFlightInfo:
		return s.handleFlightInfo(ctx, action, stream)
	case ActionTableFunctionFlightInfo:
		return s.handleTableFunctionFlightInfo(ctx, action, stream)
	case ActionCatalogVersion:
		return s.handleCatalogVersion(ctx, action, stream)
	case ActionCreateTransaction:
		return s.handleCreateTransaction(ctx, action, stream)
	}
	return status.Errorf(codes.Unimplemented, "unknown action type: %s", action.GetType())
}

// ListActions lists the supported action types.
func (s *Server) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	for _, at := range actionTypes {
		if err := stream.Send(at); err != nil {
			return err
		}
	}
	return nil
}

// sendMsgpack encodes v and sends it as the single result of an action.
func sendMsgpack(stream flight.FlightService_DoActionServer, v any) error {
	body, err := msgpack.Encode(v)
	if err != nil {
		return status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return sendBody(stream, body)
}

func sendBody(stream flight.FlightService_DoActionServer, body []byte) error {
	if err := stream.Send(&flight.Result{Body: body}); err != nil {
		return status.Errorf(codes.Internal, "send result: %v", err)
	}
	return nil
}
