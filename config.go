package manageql

import (
	"errors"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/manageql/auth"
	"github.com/hugr-lab/manageql/discovery"
	"github.com/hugr-lab/manageql/mgmt"
)

// DefaultCatalogName is the catalog name reported to Flight clients.
const DefaultCatalogName = "mgmt"

// ServerConfig contains configuration for a manageql Flight server.
type ServerConfig struct {
	// Connection is the management connection objects are read from.
	// REQUIRED: MUST NOT be nil.
	Connection mgmt.Connection

	// CatalogName is the catalog name tickets are checked against.
	// OPTIONAL: Uses DefaultCatalogName if empty.
	CatalogName string

	// SchemaName is the schema management tables are exposed under.
	// OPTIONAL: Uses source.DefaultName if empty.
	SchemaName string

	// Typing selects how discovered attribute columns are typed.
	Typing discovery.Typing

	// SkipDiscovery leaves the catalog empty at startup. Tables are then
	// only created by lookups and get_dynamic_table_ddl.
	SkipDiscovery bool

	// Auth authenticates bearer tokens sent with every Flight call.
	// OPTIONAL: If nil, calls are not authenticated.
	Auth auth.Authenticator

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// If LogLevel is also set, a text logger at that level is created instead.
	Logger *slog.Logger

	// LogLevel sets the logging level when Logger is nil.
	LogLevel *slog.Level

	// BatchSize is the maximum number of rows per streamed record.
	// OPTIONAL: If 0, uses fetch.DefaultBatchSize.
	BatchSize int

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	MaxMessageSize int

	// Address is the listen address used by Start, and the public address
	// put into FlightEndpoint locations.
	// OPTIONAL for NewServer: If empty, locations will not include a URI.
	Address string
}

// Standard errors returned by the manageql package.
var (
	// ErrInvalidConfig indicates ServerConfig validation failed.
	ErrInvalidConfig = errors.New("invalid server config")

	// ErrAlreadyRunning is returned by Start while another server started
	// by Start is still running.
	ErrAlreadyRunning = errors.New("server already running")
)

// validateConfig checks that required ServerConfig fields are valid.
func validateConfig(config ServerConfig) error {
	if config.Connection == nil {
		return errors.New("connection is required")
	}
	if config.MaxMessageSize < 0 {
		return errors.New("max message size must not be negative")
	}
	if config.BatchSize < 0 {
		return errors.New("batch size must not be negative")
	}
	return nil
}
