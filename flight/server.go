// Package flight serves a catalog over Arrow Flight RPC in the dialect of
// the DuckDB Airport extension: catalog listing and versioning actions,
// FlightInfo for tables and table functions, and DoGet streaming.
package flight

import (
	"context"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/manageql/catalog"
)

// Server implements the Flight service handlers.
// Embeds BaseFlightServer for forward compatibility with protocol changes.
type Server struct {
	flight.BaseFlightServer

	catalog   catalog.Catalog
	name      string
	allocator memory.Allocator
	logger    *slog.Logger
	address   string // public address for FlightEndpoint locations
	batchSize int
}

// Config configures a Server.
type Config struct {
	// Catalog to serve. Required. A catalog.VersionedCatalog has its
	// version reported to clients.
	Catalog catalog.Catalog

	// Name is the catalog name tickets are checked against. Empty accepts
	// any name.
	Name string

	// Address is the public address put into endpoint locations.
	Address string

	// BatchSize is the maximum number of rows per streamed record. Zero
	// uses the fetch default.
	BatchSize int

	Allocator memory.Allocator
	Logger    *slog.Logger
}

// NewServer creates a Flight server for cfg.Catalog.
func NewServer(cfg Config) *Server {
	alloc := cfg.Allocator
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		catalog:   cfg.Catalog,
		name:      cfg.Name,
		allocator: alloc,
		logger:    logger,
		address:   cfg.Address,
		batchSize: cfg.BatchSize,
	}
}

// CatalogName returns the configured catalog name.
func (s *Server) CatalogName() string { return s.name }

// RegisterFlightServer registers the Flight service on the provided gRPC server.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}

// catalogVersion reports the version of catalogs that track one. Other
// catalogs are reported as fixed at version 1.
func (s *Server) catalogVersion(ctx context.Context) (catalog.CatalogVersion, error) {
	if vc, ok := s.catalog.(catalog.VersionedCatalog); ok {
		return vc.CatalogVersion(ctx)
	}
	return catalog.CatalogVersion{Version: 1, IsFixed: true}, nil
}

// scanOptions returns the scan options of a ticket with the configured
// batch size applied.
func (s *Server) scanOptions(td *TicketData) *catalog.ScanOptions {
	opts := td.ToScanOptions()
	opts.BatchSize = s.batchSize
	return opts
}

// location returns the endpoint locations for this server.
func (s *Server) location() []*flight.Location {
	if s.address == "" {
		return nil
	}
	return []*flight.Location{{Uri: "grpc://" + s.address}}
}
