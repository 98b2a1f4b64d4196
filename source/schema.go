package source

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/fetch"
)

type schema struct {
	src *Source
}

func (s *schema) Name() string { return s.src.name }

func (s *schema) Comment() string {
	return "Management objects of " + s.src.name
}

func (s *schema) Tables(ctx context.Context) ([]catalog.Table, error) {
	defs := s.src.registry.Tables()
	tables := make([]catalog.Table, len(defs))
	for i, def := range defs {
		tables[i] = &table{src: s.src, def: def}
	}
	return tables, nil
}

func (s *schema) Table(ctx context.Context, name string) (catalog.Table, error) {
	def, err := s.src.Lookup(ctx, name)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &table{src: s.src, def: def}, nil
}

func (s *schema) TableFunctions(ctx context.Context) ([]catalog.TableFunction, error) {
	return []catalog.TableFunction{&ddlFunction{src: s.src}}, nil
}

// table exposes a snapshot of one definition.
type table struct {
	src *Source
	def *catalog.TableDefinition
}

func (t *table) Name() string { return t.def.Name }

func (t *table) Comment() string { return t.def.NameInSource }

func (t *table) ArrowSchema() *arrow.Schema { return t.def.ArrowSchema() }

func (t *table) Scan(ctx context.Context, opts *catalog.ScanOptions) (array.RecordReader, error) {
	if opts == nil {
		opts = &catalog.ScanOptions{}
	}
	exec, err := t.src.Open(ctx, t.def.Name, opts.Columns)
	if err != nil {
		return nil, err
	}
	return fetch.RecordReader(ctx, exec, fetch.ReaderOptions{
		Allocator: t.src.alloc,
		BatchSize: opts.BatchSize,
		Limit:     opts.Limit,
		Schema:    t.def.ArrowSchema(),
	})
}
