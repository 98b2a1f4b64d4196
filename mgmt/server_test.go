package mgmt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer()
	require.NoError(t, srv.Register(MustParseObjectName("ns:type=Foo"), NewObject().
		Static("Size", TypeInt, Int(3)).
		Static("Label", TypeString, String("foo"))))
	require.NoError(t, srv.Register(MustParseObjectName("ns:type=Bar"), NewObject().
		Static("Size", TypeInt, Int(5)).
		Attribute(AttributeInfo{Name: "Broken", Type: TypeLong}, func(context.Context) (Value, error) {
			return nil, errors.New("boom")
		})))
	return srv
}

func TestServerQueryNames(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	all, err := srv.QueryNames(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	p := MustParseObjectName("ns:type=F*")
	matched, err := srv.QueryNames(ctx, &p)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, "ns:type=Foo", matched[0].String())

	exact := MustParseObjectName("ns:type=Missing")
	none, err := srv.QueryNames(ctx, &exact)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestServerRegisterErrors(t *testing.T) {
	srv := newTestServer(t)

	err := srv.Register(MustParseObjectName("ns:type=Foo"), NewObject())
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	err = srv.Register(MustParseObjectName("ns:*"), NewObject())
	require.ErrorIs(t, err, ErrMalformedName)

	require.NoError(t, srv.Unregister(MustParseObjectName("ns:type=Foo")))
	require.ErrorIs(t, srv.Unregister(MustParseObjectName("ns:type=Foo")), ErrInstanceNotFound)
}

func TestServerDescribeAndRead(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	infos, err := srv.Describe(ctx, MustParseObjectName("ns:type=Foo"))
	require.NoError(t, err)
	require.Equal(t, []AttributeInfo{{Name: "Size", Type: TypeInt}, {Name: "Label", Type: TypeString}}, infos)

	attrs, err := srv.ReadAttributes(ctx, MustParseObjectName("ns:type=Bar"), []string{"Size", "Broken", "Missing"})
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	require.Equal(t, "Size", attrs[0].Name)
	require.Equal(t, Int(5), attrs[0].Value)

	_, err = srv.Describe(ctx, MustParseObjectName("ns:type=Missing"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "describe", ioErr.Op)
	require.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestServerAttributeAddedAfterRegistration(t *testing.T) {
	srv := NewServer()
	obj := NewObject().Static("A", TypeInt, Int(1))
	name := MustParseObjectName("ns:type=Live")
	require.NoError(t, srv.Register(name, obj))

	obj.Static("B", TypeInt, Int(2))

	infos, err := srv.Describe(context.Background(), name)
	require.NoError(t, err)
	require.Len(t, infos, 2)
}

func TestServerCancelledContext(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := srv.QueryNames(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegisterRuntime(t *testing.T) {
	srv := NewServer()
	require.NoError(t, RegisterRuntime(srv))
	ctx := context.Background()

	p := MustParseObjectName(RuntimeDomain + ":*")
	names, err := srv.QueryNames(ctx, &p)
	require.NoError(t, err)
	require.Len(t, names, 4)

	rt := MustParseObjectName(RuntimeDomain + ":type=Runtime")
	attrs, err := srv.ReadAttributes(ctx, rt, []string{"Uptime", "StartTime", "SpecName"})
	require.NoError(t, err)
	require.Len(t, attrs, 3)
	require.Equal(t, KindLong, attrs[0].Value.Kind())
	start := attrs[1].Value.(Scalar).Interface().(time.Time)
	require.False(t, start.After(time.Now()))

	gc := MustParseObjectName(RuntimeDomain + ":type=GarbageCollector,name=GC")
	attrs, err = srv.ReadAttributes(ctx, gc, []string{"LastGcInfo"})
	require.NoError(t, err)
	info := attrs[0].Value.(Composite)
	before, ok := info.Get("memoryUsageBeforeGc").(Tabular)
	require.True(t, ok)
	require.Equal(t, []string{"key"}, before.Index)
	require.NotEmpty(t, before.Rows)
}

func TestWireValueRoundTrip(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := Composite{
		TypeName: "t",
		Fields: map[string]Value{
			"name":  String("x"),
			"count": Long(7),
			"flag":  Bool(true),
			"c":     Char('z'),
			"owner": Name(MustParseObjectName("ns:type=Foo")),
			"at":    Date(when),
			"list":  Longs(1, 2),
			"rows": Tabular{Index: []string{"key"}, Rows: []Composite{
				{Fields: map[string]Value{"key": String("a"), "value": Int(1)}},
			}},
			"missing": nil,
		},
	}

	w, err := EncodeValue(in)
	require.NoError(t, err)
	out, err := DecodeValue(w)
	require.NoError(t, err)
	require.Equal(t, in, out)
}
