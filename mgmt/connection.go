// Package mgmt defines the management-object model: object names, attribute
// descriptors, live values, and the Connection used to reach them.
//
// The model follows JMX: every object is addressed by an ObjectName and
// exposes named attributes whose types are described by JMX type
// descriptor strings (see the Type* constants).
package mgmt

import (
	"context"
	"errors"
	"fmt"
)

// Type descriptors understood by the relational mapping.
const (
	TypeObjectName   = "javax.management.ObjectName"
	TypeString       = "java.lang.String"
	TypeInt          = "int"
	TypeInteger      = "java.lang.Integer"
	TypeLong         = "long"
	TypeLongObject   = "java.lang.Long"
	TypeBoolean      = "boolean"
	TypeBooleanObj   = "java.lang.Boolean"
	TypeDouble       = "double"
	TypeFloat        = "float"
	TypeShort        = "short"
	TypeByte         = "byte"
	TypeChar         = "char"
	TypeDate         = "java.util.Date"
	TypeStringArray  = "[Ljava.lang.String;"
	TypeLongArray    = "[J"
	TypeIntArray     = "[I"
	TypeDoubleArray  = "[D"
	TypeBooleanArray = "[Z"
	TypeByteArray    = "[B"
	TypeCharArray    = "[C"
	TypeFloatArray   = "[F"
	TypeShortArray   = "[S"

	TypeCompositeData      = "javax.management.openmbean.CompositeData"
	TypeTabularData        = "javax.management.openmbean.TabularData"
	TypeCompositeDataArray = "[Ljavax.management.openmbean.CompositeData;"
	TypeTabularDataArray   = "[Ljavax.management.openmbean.TabularData;"
)

// AttributeInfo describes one attribute of a management object.
type AttributeInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Attribute is a named attribute value as returned by ReadAttributes.
type Attribute struct {
	Name  string
	Value Value
}

// Connection reaches a space of management objects.
// Implementations MUST be goroutine-safe.
type Connection interface {
	// QueryNames returns the names of the registered objects selected by
	// pattern. A nil pattern selects every object. An exact pattern
	// selects at most one object. The order is unspecified.
	QueryNames(ctx context.Context, pattern *ObjectName) ([]ObjectName, error)

	// Describe returns the attribute descriptors of one object.
	Describe(ctx context.Context, name ObjectName) ([]AttributeInfo, error)

	// ReadAttributes returns the values of the named attributes of one
	// object. Attributes that do not exist or cannot be read are omitted
	// from the result rather than reported as errors.
	ReadAttributes(ctx context.Context, name ObjectName, names []string) ([]Attribute, error)
}

var (
	// ErrInstanceNotFound is returned when an object is not registered.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrAlreadyRegistered is returned when registering a duplicate name.
	ErrAlreadyRegistered = errors.New("instance already registered")
)

// IOError reports a failed call on a Connection.
type IOError struct {
	Op   string // "query", "describe" or "read"
	Name string
	Err  error
}

func (e *IOError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("management %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("management %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// WrapIOError wraps err in an *IOError unless it already is one.
func WrapIOError(op string, name string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Name: name, Err: err}
}
