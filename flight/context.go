package flight

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

type contextKey int

const metaKey contextKey = iota

// Metadata header keys read from incoming requests.
const (
	// HeaderCatalog names the target catalog.
	HeaderCatalog = "airport-catalog"
	// HeaderTraceID is a distributed trace identifier.
	HeaderTraceID = "airport-trace-id"
	// HeaderSessionID identifies the client session.
	HeaderSessionID = "airport-client-session-id"
)

// ContextMeta holds request metadata attached to a context.
type ContextMeta struct {
	TraceID     string
	SessionID   string
	CatalogName string
}

// WithContextMeta returns ctx carrying meta.
func WithContextMeta(ctx context.Context, meta ContextMeta) context.Context {
	return context.WithValue(ctx, metaKey, &meta)
}

// MetaFromContext returns the metadata attached to ctx, or nil.
func MetaFromContext(ctx context.Context) *ContextMeta {
	meta, _ := ctx.Value(metaKey).(*ContextMeta)
	return meta
}

// TraceIDFromContext returns the trace ID from context, or empty string if not set.
func TraceIDFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.TraceID
	}
	return ""
}

// SessionIDFromContext returns the session ID from context, or empty string if not set.
func SessionIDFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.SessionID
	}
	return ""
}

// EnrichContextMetadata copies the request headers of an incoming gRPC
// context into ContextMeta. Requests without a trace ID get a fresh one.
// An enriched context is returned unchanged.
func EnrichContextMetadata(ctx context.Context) context.Context {
	if MetaFromContext(ctx) != nil {
		return ctx
	}

	var meta ContextMeta
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		meta.CatalogName = first(md, HeaderCatalog)
		meta.TraceID = first(md, HeaderTraceID)
		meta.SessionID = first(md, HeaderSessionID)
	}
	if meta.TraceID == "" {
		meta.TraceID = uuid.NewString()
	}
	return WithContextMeta(ctx, meta)
}

func first(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
