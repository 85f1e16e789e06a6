package gateway

import (
	"time"

	"go.uber.org/zap"

	"yoroi/metrics"
	"yoroi/middleware"
	"yoroi/registry"
	"yoroi/transport"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The server logs under the "gateway" name.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry makes the server route through reg instead of a fresh registry.
func WithRegistry(reg *registry.ServiceRegistry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithMiddleware appends HTTP middleware around the router. Middleware runs in the given order,
// inside the built-in panic recovery.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Server) { s.middlewares = append(s.middlewares, mws...) }
}

// WithMissStatus sets the status of the empty response sent for an unknown routing key.
func WithMissStatus(code int) Option {
	return func(s *Server) { s.missStatus = code }
}

// WithPreservePath forwards the full request path instead of the remainder after the
// routing key. gRPC backends need this: their method path starts with the service id.
func WithPreservePath(preserve bool) Option {
	return func(s *Server) { s.preservePath = preserve }
}

// WithDrainTimeout bounds how long Serve waits for open connections after shutdown.
// Connections still open afterwards are closed. Zero waits forever.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Server) { s.drainTimeout = d }
}

// WithSignalDelay is the delay passed to the shutdown handler when a termination signal
// arrives.
func WithSignalDelay(d time.Duration) Option {
	return func(s *Server) { s.signalDelay = d }
}

// WithoutSignals stops Serve from listening for SIGINT and SIGTERM.
func WithoutSignals() Option {
	return func(s *Server) { s.signals = false }
}

// WithMetrics records connection, routing and tunnel metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDialer replaces the dialer used for backend sessions and tunnel targets.
func WithDialer(d transport.Dialer) Option {
	return func(s *Server) { s.dialer = d }
}

// WithDialTimeout bounds outbound connects made with the default dialer.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Server) { s.dialTimeout = d }
}
