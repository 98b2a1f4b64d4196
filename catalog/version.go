package catalog

import (
	"context"
	"errors"
)

// Sentinel errors for catalog lookups.
var (
	// ErrAlreadyExists is returned when creating an object that already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when an object doesn't exist.
	ErrNotFound = errors.New("not found")
)

// CatalogVersion contains the version information for a catalog.
type CatalogVersion struct {
	// Version is the current version number of the catalog.
	// When this changes, DuckDB refreshes its cached schema data.
	Version uint64

	// IsFixed indicates whether the version is fixed for the session.
	// When true, DuckDB caches this version and won't query again.
	IsFixed bool
}

// VersionedCatalog extends Catalog with version tracking.
// Implementations MUST be goroutine-safe.
type VersionedCatalog interface {
	Catalog

	// CatalogVersion returns the current version of the catalog.
	// When the version changes, clients should refresh their cached schema.
	CatalogVersion(ctx context.Context) (CatalogVersion, error)
}
