package admin

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"yoroi/metrics"
	"yoroi/registry"
)

func newRouter(t *testing.T) (http.Handler, *registry.ServiceRegistry) {
	t.Helper()
	reg := registry.NewServiceRegistry()
	reg.Register("svc", "Service", []string{"10.0.0.2:80", "10.0.0.1:80"})
	reg.Register("empty", "Empty", nil)
	m := metrics.New()
	m.WatchRegistrySize(reg.Len)
	h := NewRouter(Options{
		Registry: reg,
		Metrics:  m,
		State:    func() string { return "serving" },
	})
	return h, reg
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newRouter(t)
	rec := get(h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","state":"serving"}`, rec.Body.String())
}

func TestServices(t *testing.T) {
	h, _ := newRouter(t)
	rec := get(h, "/services/")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []Service
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, []Service{
		{ID: "empty", Name: "Empty", Endpoints: []string{}},
		{ID: "svc", Name: "Service", Endpoints: []string{"10.0.0.1:80", "10.0.0.2:80"}},
	}, list)
}

func TestService(t *testing.T) {
	h, _ := newRouter(t)
	rec := get(h, "/services/svc")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":"svc","name":"Service","endpoints":["10.0.0.1:80","10.0.0.2:80"]}`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, get(h, "/services/ghost").Code)
}

func TestResolve(t *testing.T) {
	h, reg := newRouter(t)
	rec := get(h, "/services/svc/resolve")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, []string{"10.0.0.1:80", "10.0.0.2:80"}, body["endpoint"])

	require.Equal(t, http.StatusNotFound, get(h, "/services/empty/resolve").Code)
	reg.Deregister("svc")
	require.Equal(t, http.StatusNotFound, get(h, "/services/svc/resolve").Code)
}

func TestMetrics(t *testing.T) {
	h, _ := newRouter(t)
	rec := get(h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "yoroi_registry_services 2")
}

func TestMetricsDisabled(t *testing.T) {
	h := NewRouter(Options{Registry: registry.NewServiceRegistry()})
	require.Equal(t, http.StatusNotFound, get(h, "/metrics").Code)
}

func TestServeListenerStopsWithContext(t *testing.T) {
	h, _ := newRouter(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, ln, h, nil) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), `"ok"`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("admin server did not stop")
	}
}
