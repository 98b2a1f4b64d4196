// Package recovery turns panics in request handlers and engine callbacks
// into errors, so a failing attribute getter cannot take the process down.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PanicError is the error a recovered panic is converted to.
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Operation, e.Value)
}

// GRPCStatus lets the gRPC server report the panic as codes.Internal.
func (e *PanicError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Error())
}

// Guard recovers a panic and stores it in *errp. It must be deferred
// directly:
//
//	func (s *Server) DoGet(...) (err error) {
//	    defer recovery.Guard(s.logger, "DoGet", &err)
//	    ...
//	}
func Guard(logger *slog.Logger, operation string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error("panic recovered",
		"operation", operation,
		"panic", r,
		"stack", string(debug.Stack()),
	)
	*errp = &PanicError{Operation: operation, Value: r}
}

// Call runs fn and converts a panic into a *PanicError.
func Call[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer Guard(logger, operation, &err)
	return fn()
}
