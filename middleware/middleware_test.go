package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// echoHandler answers every request with "ok".
var echoHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, "ok")
})

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Logging(zap.New(core))(echoHandler)

	rec := serve(handler, http.MethodGet, "/svc/health")
	require.Equal(t, "ok", rec.Body.String())

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/svc/health", fields["path"])
	require.Equal(t, int64(http.StatusOK), fields["status"])
	require.Equal(t, int64(2), fields["bytes"])
}

func TestLoggingRecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := serve(handler, http.MethodGet, "/")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, int64(http.StatusBadGateway), logs.All()[0].ContextMap()["status"])
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: the first two pass, the third is rejected.
	handler := RateLimit(1, 2)(echoHandler)

	for i := 0; i < 2; i++ {
		rec := serve(handler, http.MethodGet, "/")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := serve(handler, http.MethodGet, "/")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	handler := Recover(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := serve(handler, http.MethodGet, "/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, logs.FilterMessage("handler panic").Len())
}

func TestRecoverKeepsWrittenResponse(t *testing.T) {
	handler := Recover(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))

	rec := serve(handler, http.MethodGet, "/")
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRecoverRethrowsAbort(t *testing.T) {
	handler := Recover(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() { serve(handler, http.MethodGet, "/") })
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+".before")
				next.ServeHTTP(w, r)
				order = append(order, name+".after")
			})
		}
	}

	handler := Chain(mark("A"), mark("B"), Logging(zap.NewNop()))(echoHandler)
	rec := serve(handler, http.MethodGet, "/")

	require.Equal(t, "ok", rec.Body.String())
	require.Equal(t, "A.before,B.before,B.after,A.after", strings.Join(order, ","))
}

func TestRecorderUnwrapsForFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &statusRecorder{ResponseWriter: rec}
	require.NoError(t, http.NewResponseController(wrapped).Flush())
	require.True(t, rec.Flushed)
}
