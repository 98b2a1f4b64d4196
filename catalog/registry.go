package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Materializer builds the definition for a table the registry does not
// hold yet. It returns (nil, nil) when the name cannot be resolved.
type Materializer func(ctx context.Context, name string) (*TableDefinition, error)

// Registry is the process-wide set of table definitions. Names are
// compared case-insensitively.
//
// Every mutation replaces whole definitions under the write lock, so a
// concurrent Lookup observes either the old or the new definition of a
// table, never a partially updated one.
// Registry is goroutine-safe.
type Registry struct {
	mu           sync.RWMutex
	tables       map[string]*TableDefinition
	version      uint64
	materializer Materializer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*TableDefinition)}
}

func registryKey(name string) string { return strings.ToLower(name) }

// SetMaterializer installs the fallback used by LookupOrMaterialize.
func (r *Registry) SetMaterializer(m Materializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.materializer = m
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*TableDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tables[registryKey(name)]
	return def, ok
}

// LookupOrMaterialize returns the definition registered under name. On a
// miss it asks the materializer, which is expected to register the table
// itself. Returns (nil, nil) if the table cannot be resolved.
func (r *Registry) LookupOrMaterialize(ctx context.Context, name string) (*TableDefinition, error) {
	if def, ok := r.Lookup(name); ok {
		return def, nil
	}

	r.mu.RLock()
	m := r.materializer
	r.mu.RUnlock()
	if m == nil {
		return nil, nil
	}

	def, err := m(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", name, err)
	}
	return def, nil
}

// Swap registers def, replacing any definition with the same name, and
// returns the replaced definition if there was one. The registry keeps a
// copy of def.
func (r *Registry) Swap(def *TableDefinition) (*TableDefinition, bool) {
	def = def.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey(def.Name)
	old, ok := r.tables[key]
	r.tables[key] = def
	r.version++
	return old, ok
}

// Drop removes the definition registered under name. It reports whether a
// definition was removed; dropping an absent table is not an error.
func (r *Registry) Drop(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey(name)
	if _, ok := r.tables[key]; !ok {
		return false
	}
	delete(r.tables, key)
	r.version++
	return true
}

// Update atomically applies fn to a copy of the definition registered under
// name and stores the result. When no definition exists, create provides
// the starting point. An existing definition that fn reports as unchanged
// is kept as is.
func (r *Registry) Update(name string, create func() *TableDefinition, fn func(*TableDefinition) bool) *TableDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey(name)
	old, exists := r.tables[key]
	var def *TableDefinition
	if exists {
		def = old.Clone()
	} else {
		def = create()
	}

	changed := fn(def)
	if exists && !changed {
		return old
	}
	r.tables[key] = def
	r.version++
	return def
}

// Tables returns all definitions sorted by name.
func (r *Registry) Tables() []*TableDefinition {
	r.mu.RLock()
	defs := make([]*TableDefinition, 0, len(r.tables))
	for _, def := range r.tables {
		defs = append(defs, def)
	}
	r.mu.RUnlock()

	slices.SortFunc(defs, func(a, b *TableDefinition) int { return strings.Compare(a.Name, b.Name) })
	return defs
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// Version returns a counter incremented on every mutation.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
