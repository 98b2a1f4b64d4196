package flight

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/manageql/internal/recovery"
)

// UnaryServerInterceptor enriches the request context with ContextMeta,
// logs each call at debug level and converts handler panics to errors.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer recovery.Guard(logger, info.FullMethod, &err)
		ctx = EnrichContextMetadata(ctx)
		start := time.Now()
		resp, err = handler(ctx, req)
		logCall(ctx, logger, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer recovery.Guard(logger, info.FullMethod, &err)
		ctx := EnrichContextMetadata(ss.Context())
		start := time.Now()
		err = handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
		logCall(ctx, logger, info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, logger *slog.Logger, method string, start time.Time, err error) {
	logger.Debug("rpc",
		"method", method,
		"trace_id", TraceIDFromContext(ctx),
		"session_id", SessionIDFromContext(ctx),
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
