package mgmt

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Getter produces the current value of an attribute.
type Getter func(ctx context.Context) (Value, error)

// Object is a management object: a set of attributes backed by getters.
// Attributes may be added while the object is registered.
type Object struct {
	mu      sync.RWMutex
	infos   []AttributeInfo
	getters map[string]Getter
}

// NewObject returns an object with no attributes.
func NewObject() *Object {
	return &Object{getters: make(map[string]Getter)}
}

// Attribute adds an attribute whose value is computed on every read.
// Adding an existing name replaces it.
func (o *Object) Attribute(info AttributeInfo, get Getter) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.getters[info.Name]; ok {
		o.infos = slices.DeleteFunc(o.infos, func(a AttributeInfo) bool { return a.Name == info.Name })
	}
	o.infos = append(o.infos, info)
	o.getters[info.Name] = get
	return o
}

// Static adds an attribute with a fixed value.
func (o *Object) Static(name, typ string, v Value) *Object {
	return o.Attribute(AttributeInfo{Name: name, Type: typ}, func(context.Context) (Value, error) {
		return v, nil
	})
}

type registration struct {
	name   ObjectName
	object *Object
}

// Server is an in-process Connection over registered Objects.
type Server struct {
	mu      sync.RWMutex
	objects map[string]registration
}

var _ Connection = (*Server)(nil)

// NewServer returns an empty object server.
func NewServer() *Server {
	return &Server{objects: make(map[string]registration)}
}

// Register adds obj under name. Name must be exact.
func (s *Server) Register(name ObjectName, obj *Object) error {
	if name.IsZero() || name.IsPattern() {
		return fmt.Errorf("register %s: %w", name, &MalformedNameError{Name: name.String(), Reason: "pattern not allowed"})
	}
	key := name.Canonical()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok {
		return fmt.Errorf("register %s: %w", key, ErrAlreadyRegistered)
	}
	s.objects[key] = registration{name: name, object: obj}
	return nil
}

// Unregister removes the object registered under name.
func (s *Server) Unregister(name ObjectName) error {
	key := name.Canonical()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("unregister %s: %w", key, ErrInstanceNotFound)
	}
	delete(s.objects, key)
	return nil
}

func (s *Server) lookup(name ObjectName) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.objects[name.Canonical()]
	return r.object, ok
}

// QueryNames implements Connection.
func (s *Server) QueryNames(ctx context.Context, pattern *ObjectName) ([]ObjectName, error) {
	if err := ctx.Err(); err != nil {
		return nil, &IOError{Op: "query", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]ObjectName, 0, len(s.objects))
	for _, r := range s.objects {
		if pattern == nil || pattern.Match(r.name) {
			names = append(names, r.name)
		}
	}
	return names, nil
}

// Describe implements Connection.
func (s *Server) Describe(ctx context.Context, name ObjectName) ([]AttributeInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, &IOError{Op: "describe", Name: name.String(), Err: err}
	}
	obj, ok := s.lookup(name)
	if !ok {
		return nil, &IOError{Op: "describe", Name: name.String(), Err: ErrInstanceNotFound}
	}
	obj.mu.RLock()
	defer obj.mu.RUnlock()
	return slices.Clone(obj.infos), nil
}

// ReadAttributes implements Connection. Attributes whose getter fails are
// omitted.
func (s *Server) ReadAttributes(ctx context.Context, name ObjectName, names []string) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, &IOError{Op: "read", Name: name.String(), Err: err}
	}
	obj, ok := s.lookup(name)
	if !ok {
		return nil, &IOError{Op: "read", Name: name.String(), Err: ErrInstanceNotFound}
	}

	attrs := make([]Attribute, 0, len(names))
	for _, n := range names {
		obj.mu.RLock()
		get, ok := obj.getters[n]
		obj.mu.RUnlock()
		if !ok {
			continue
		}
		v, err := get(ctx)
		if err != nil {
			continue
		}
		attrs = append(attrs, Attribute{Name: n, Value: v})
	}
	return attrs, nil
}
