package agent

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/manageql/mgmt"
)

func newTestAgent(t *testing.T, token string) *Agent {
	t.Helper()
	conn := mgmt.NewServer()
	require.NoError(t, conn.Register(mgmt.MustParseObjectName("app:type=Pool,name=db"), mgmt.NewObject().
		Static("Active", mgmt.TypeInt, mgmt.Int(3)).
		Static("Usage", mgmt.TypeCompositeData, mgmt.Composite{Fields: map[string]mgmt.Value{"used": mgmt.Long(5)}})))
	require.NoError(t, conn.Register(mgmt.MustParseObjectName("app:type=Cache"), mgmt.NewObject().
		Static("Size", mgmt.TypeLong, mgmt.Long(10))))

	a, err := New(Config{
		Connection: conn,
		Token:      token,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return a
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestNewRequiresConnection(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestGetNames(t *testing.T) {
	h := newTestAgent(t, "").Handler()

	var all NamesResponse
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, PathNames, nil, &all))
	require.Equal(t, []string{"app:name=db,type=Pool", "app:type=Cache"}, all.Names)

	var pools NamesResponse
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, PathNames+"?pattern=app:type%3DPool,*", nil, &pools))
	require.Equal(t, []string{"app:name=db,type=Pool"}, pools.Names)

	var er ErrorResponse
	require.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, PathNames+"?pattern=nodomain", nil, &er))
	require.Equal(t, CodeMalformedName, er.Code)
}

func TestGetDescribe(t *testing.T) {
	h := newTestAgent(t, "").Handler()

	var resp DescribeResponse
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, PathDescribe+"?name=app:type%3DCache", nil, &resp))
	require.Equal(t, "app:type=Cache", resp.Name)
	require.Equal(t, []mgmt.AttributeInfo{{Name: "Size", Type: mgmt.TypeLong}}, resp.Attributes)

	var er ErrorResponse
	require.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, PathDescribe+"?name=app:type%3DMissing", nil, &er))
	require.Equal(t, CodeNotFound, er.Code)

	require.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, PathDescribe, nil, &er))
	require.Equal(t, CodeBadRequest, er.Code)
}

func TestPostRead(t *testing.T) {
	h := newTestAgent(t, "").Handler()

	var resp ReadResponse
	code := doJSON(t, h, http.MethodPost, PathRead, ReadRequest{
		Name:       "app:type=Pool,name=db",
		Attributes: []string{"Active", "Usage", "Unknown"},
	}, &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "app:name=db,type=Pool", resp.Name)
	require.Len(t, resp.Attributes, 2)

	active, err := mgmt.DecodeValue(resp.Attributes[0].Value)
	require.NoError(t, err)
	require.Equal(t, mgmt.Int(3), active)

	usage, err := mgmt.DecodeValue(resp.Attributes[1].Value)
	require.NoError(t, err)
	require.Equal(t, mgmt.Long(5), usage.(mgmt.Composite).Get("used"))

	var er ErrorResponse
	require.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, PathRead, map[string]any{"name": 1}, &er))
	require.Equal(t, CodeBadRequest, er.Code)
}

func TestToken(t *testing.T) {
	h := newTestAgent(t, "s3cret").Handler()

	var er ErrorResponse
	require.Equal(t, http.StatusUnauthorized, doJSON(t, h, http.MethodGet, PathNames, nil, &er))
	require.Equal(t, CodeUnauthorized, er.Code)

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, PathHealth, nil, nil))

	bad := httptest.NewRequest(http.MethodGet, PathNames, nil)
	bad.Header.Set("Authorization", "Bearer wrong")
	badRec := httptest.NewRecorder()
	h.ServeHTTP(badRec, bad)
	require.Equal(t, http.StatusUnauthorized, badRec.Code)

	req := httptest.NewRequest(http.MethodGet, PathNames, nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServeShutdown(t *testing.T) {
	a := newTestAgent(t, "")
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Serve(ctx, lis) }()

	resp, err := http.Get("http://" + lis.Addr().String() + PathHealth)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
