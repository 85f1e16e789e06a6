package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"

	"yoroi/metrics"
	"yoroi/tunnel"
)

const badConnectBody = "CONNECT must be to a socket address"

// ReverseProxy drops these in Rewrite mode; the gateway forwards them untouched.
var forwardingHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

type targetKey struct{}

// target carries the resolved endpoint from route to the proxy callbacks.
type target struct {
	key      string
	endpoint string
	failed   bool
}

// route dispatches one HTTP/2 stream.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key := RoutingKey(r.URL.Path)
	endpoint, ok := s.resolver.Resolve(key)
	if !ok {
		s.logger.Debug("no route", zap.String("route", key), zap.String("method", r.Method))
		w.WriteHeader(s.missStatus)
		s.metrics.Request(metrics.OutcomeMiss, time.Since(start))
		return
	}
	if r.Method == http.MethodConnect {
		s.connect(w, r, key, start)
		return
	}
	s.forward(w, r, &target{key: key, endpoint: endpoint}, start)
}

// connect answers a CONNECT with an empty 200 and relays the stream to the authority.
func (s *Server) connect(w http.ResponseWriter, r *http.Request, key string, start time.Time) {
	addr, ok := ConnectTarget(r.Host)
	if !ok {
		s.logger.Warn("CONNECT host is not a socket address",
			zap.String("route", key), zap.String("authority", r.Host))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, badConnectBody)
		s.metrics.Request(metrics.OutcomeBadConnect, time.Since(start))
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := http.NewResponseController(w).Flush(); err != nil {
		s.logger.Error("CONNECT flush failed", zap.String("target", addr), zap.Error(err))
		return
	}

	logger := s.logger.Named("tunnel").With(zap.String("route", key), zap.String("target", addr))
	logger.Debug("tunnel opened")
	res, err := tunnel.Run(r.Context(), tunnel.NewStream(w, r), addr,
		tunnel.WithDialFunc(s.dialer.DialContext))
	s.metrics.Tunnel(res.Up, res.Down)
	s.metrics.Request(metrics.OutcomeTunnel, time.Since(start))
	if err != nil {
		logger.Error("server io error", zap.Error(err))
		return
	}
	logger.Debug("tunnel closed", zap.Int64("up", res.Up), zap.Int64("down", res.Down))
}

// forward proxies the request over a fresh HTTP/2 session to t.endpoint.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, t *target, start time.Time) {
	ctx := context.WithValue(r.Context(), targetKey{}, t)
	s.proxy.ServeHTTP(w, r.WithContext(ctx))

	outcome := metrics.OutcomeForwarded
	if t.failed {
		outcome = metrics.OutcomeBackendError
	}
	s.metrics.Request(outcome, time.Since(start))
}

func (s *Server) rewrite(pr *httputil.ProxyRequest) {
	t := pr.In.Context().Value(targetKey{}).(*target)
	pr.Out.URL.Scheme = "http"
	pr.Out.URL.Host = t.endpoint
	for _, h := range forwardingHeaders {
		if v, ok := pr.In.Header[h]; ok {
			pr.Out.Header[h] = v
		}
	}
	if s.preservePath {
		return
	}
	// Strip from the escaped form so "/svc/a%2Fb" reaches the backend as "/a%2Fb".
	raw := StripRoutingKey(pr.In.URL.EscapedPath())
	path, err := url.PathUnescape(raw)
	if err != nil {
		pr.Out.URL.Path = StripRoutingKey(pr.In.URL.Path)
		pr.Out.URL.RawPath = ""
		return
	}
	pr.Out.URL.Path = path
	pr.Out.URL.RawPath = raw
}

func (s *Server) backendError(w http.ResponseWriter, r *http.Request, err error) {
	t := r.Context().Value(targetKey{}).(*target)
	t.failed = true
	s.logger.Error("backend request failed",
		zap.String("route", t.key), zap.String("endpoint", t.endpoint), zap.Error(err))
	w.WriteHeader(http.StatusBadGateway)
}
