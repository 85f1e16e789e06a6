package test

import (
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"yoroi/gateway"
	"yoroi/kyc"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

// arithHandler serves /add and /multiply with JSON Args → Reply.
func arithHandler() http.Handler {
	mux := http.NewServeMux()
	op := func(f func(a, b int) int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var args Args
			if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(Reply{Result: f(args.A, args.B)})
		}
	}
	mux.HandleFunc("POST /add", op(func(a, b int) int { return a + b }))
	mux.HandleFunc("POST /multiply", op(func(a, b int) int { return a * b }))
	return mux
}

// startH2C serves handler over cleartext HTTP/2 on a loopback port.
func startH2C(tb testing.TB, handler http.Handler) string {
	tb.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(tb, err)
	tb.Cleanup(func() { ln.Close() })

	srv := &http2.Server{}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.ServeConn(c, &http2.ServeConnOpts{Handler: handler})
		}
	}()
	return ln.Addr().String()
}

// startKyc serves the kyc service with an in-memory store.
func startKyc(tb testing.TB) string {
	tb.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(tb, err)
	srv := kyc.NewGRPCServer(kyc.NewService(kyc.NewMemoryStore(), nil, nil), zap.NewNop())
	go func() { _ = srv.Serve(ln) }()
	tb.Cleanup(srv.Stop)
	return ln.Addr().String()
}

// startGateway serves a gateway and stops it on cleanup.
func startGateway(tb testing.TB, opts ...gateway.Option) (*gateway.Server, string) {
	tb.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(tb, err)

	srv := gateway.New(append(opts, gateway.WithoutSignals())...)
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ln) }()

	tb.Cleanup(func() {
		srv.Handler().Request(0)
		select {
		case err := <-done:
			require.NoError(tb, err)
		case <-time.After(5 * time.Second):
			tb.Error("gateway did not stop")
		}
	})
	return srv, ln.Addr().String()
}
