// Package fetch reads rows of management tables.
//
// An Execution resolves the objects behind a table when it is executed and
// then produces one row per object, reading only the projected attributes.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hugr-lab/manageql/catalog"
	"github.com/hugr-lab/manageql/mapping"
	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/query"
)

// State is the lifecycle state of an Execution.
type State int

const (
	StateCreated State = iota
	StateExecuted
	StateFetching
	StateExhausted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateExecuted:
		return "executed"
	case StateFetching:
		return "fetching"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrNotExecuted is returned by Next before Execute.
	ErrNotExecuted = errors.New("fetch: execution not executed")

	// ErrClosed is returned when using a closed Execution.
	ErrClosed = errors.New("fetch: execution closed")
)

// Row holds the values of one object in projection order.
type Row []any

// Execution reads the rows of one table. It is not goroutine-safe.
type Execution struct {
	id     uuid.UUID
	conn   mgmt.Connection
	table  *catalog.TableDefinition
	proj   query.Projection
	logger *slog.Logger

	// attrs are the projected columns read from the source, without
	// $ObjectName.
	attrs []string

	state State
	keys  []mgmt.ObjectName
	pos   int
}

// New creates an execution of proj over table. A nil logger defaults to
// slog.Default().
func New(conn mgmt.Connection, table *catalog.TableDefinition, proj query.Projection, logger *slog.Logger) *Execution {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Execution{
		id:     uuid.New(),
		conn:   conn,
		table:  table,
		proj:   proj,
		logger: logger,
	}
	seen := make(map[string]bool)
	for name := range proj.All() {
		if strings.EqualFold(name, catalog.ObjectNameColumn) || seen[name] {
			continue
		}
		seen[name] = true
		e.attrs = append(e.attrs, name)
	}
	return e
}

// ID identifies the execution in logs.
func (e *Execution) ID() uuid.UUID { return e.id }

// State returns the current state.
func (e *Execution) State() State { return e.state }

// Projection returns the projected columns.
func (e *Execution) Projection() query.Projection { return e.proj }

// Keys returns the objects resolved by Execute, in row order.
func (e *Execution) Keys() []mgmt.ObjectName { return e.keys }

// Execute resolves the objects behind the table: the objects matching its
// name in source, sorted canonically. The set is fixed for the lifetime of
// the execution.
func (e *Execution) Execute(ctx context.Context) error {
	switch e.state {
	case StateClosed:
		return ErrClosed
	case StateCreated:
	default:
		return fmt.Errorf("fetch: execute in state %s", e.state)
	}

	pattern, err := mgmt.ParseObjectName(e.table.NameInSource)
	if err != nil {
		return fmt.Errorf("table %s: %w", e.table.Name, err)
	}
	keys, err := e.conn.QueryNames(ctx, &pattern)
	if err != nil {
		return mgmt.WrapIOError("query", pattern.Canonical(), err)
	}
	mgmt.SortNames(keys)

	e.keys = keys
	e.state = StateExecuted
	e.logger.Debug("fetch: executed",
		"execution", e.id,
		"table", e.table.Name,
		"objects", len(keys),
		"attributes", e.attrs,
	)
	return nil
}

// Next returns the row of the next object. ok is false once every object
// has been read; that is not an error.
func (e *Execution) Next(ctx context.Context) (row Row, ok bool, err error) {
	switch e.state {
	case StateCreated:
		return nil, false, ErrNotExecuted
	case StateClosed:
		return nil, false, ErrClosed
	case StateExhausted:
		return nil, false, nil
	}

	if e.pos >= len(e.keys) {
		e.state = StateExhausted
		return nil, false, nil
	}
	e.state = StateFetching
	key := e.keys[e.pos]
	e.pos++

	values, err := e.read(ctx, key)
	if err != nil {
		return nil, false, err
	}

	row = make(Row, e.proj.Len())
	for i := range row {
		col := e.proj.Column(i)
		if strings.EqualFold(col.Name, catalog.ObjectNameColumn) {
			row[i] = key.Canonical()
			continue
		}
		v, err := mapping.Coerce(lookupValue(values, col.Name), col.Type)
		if err != nil {
			return nil, false, fmt.Errorf("%s.%s of %s: %w", e.table.Name, col.Name, key, err)
		}
		row[i] = v
	}
	return row, true, nil
}

// read fetches the projected attributes of key in one call, keyed by
// attribute name.
func (e *Execution) read(ctx context.Context, key mgmt.ObjectName) (map[string]mgmt.Value, error) {
	if len(e.attrs) == 0 {
		return nil, nil
	}
	attrs, err := e.conn.ReadAttributes(ctx, key, e.attrs)
	if err != nil {
		return nil, mgmt.WrapIOError("read", key.Canonical(), err)
	}
	values := make(map[string]mgmt.Value, len(attrs))
	for _, a := range attrs {
		values[a.Name] = a.Value
	}
	return values, nil
}

// lookupValue returns the value of the attribute named name, falling back
// to a case-insensitive match when no attribute has exactly that name.
func lookupValue(values map[string]mgmt.Value, name string) mgmt.Value {
	if v, ok := values[name]; ok {
		return v
	}
	for n, v := range values {
		if strings.EqualFold(n, name) {
			return v
		}
	}
	return nil
}

// Close releases the execution. Calling Close more than once is a no-op.
func (e *Execution) Close() error {
	if e.state == StateClosed {
		return nil
	}
	e.state = StateClosed
	e.keys = nil
	return nil
}
