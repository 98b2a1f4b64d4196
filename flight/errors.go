package flight

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/mgmt"
)

// statusCode maps domain errors to gRPC codes.
func statusCode(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, catalog.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, mgmt.ErrMalformedName):
		return codes.InvalidArgument
	}
	return codes.Internal
}

// statusError converts err into a gRPC status error prefixed with the
// formatted message. Status errors pass through unchanged.
func statusError(err error, format string, args ...any) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Errorf(statusCode(err), "%s: %v", fmt.Sprintf(format, args...), err)
}
