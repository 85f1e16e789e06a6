// Package gateway implements the HTTP/2 service gateway: it accepts cleartext HTTP/2
// connections, routes each request by its first path segment through the service registry,
// and either forwards it to the backend or turns it into a raw TCP tunnel (CONNECT).
//
// Connection processing pipeline:
//
//	accept goroutine → conns channel → accept loop (selects against shutdown)
//	  → go serveConn (one HTTP/2 session per connection)
//	    → per stream: middleware chain → route → forward (ReverseProxy) | tunnel | empty miss
//
// Shutdown stops the accept loop, sends GOAWAY on every open session and waits for the
// connection goroutines to finish.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"yoroi/metrics"
	"yoroi/middleware"
	"yoroi/registry"
	"yoroi/shutdown"
	"yoroi/signal"
	"yoroi/transport"
)

// ErrServerStarted is returned when Serve is called on a server that already served.
var ErrServerStarted = errors.New("gateway: server already started")

// State is the lifecycle stage of a Server.
type State int32

const (
	StateIdle State = iota
	StateServing
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateServing:
		return "serving"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Server is the gateway. A Server serves once; create a new one to serve again.
type Server struct {
	registry     *registry.ServiceRegistry
	resolver     registry.Resolver // the route path only resolves
	handle       shutdown.Handler
	receiver     *shutdown.Receiver
	logger       *zap.Logger
	metrics      *metrics.Metrics
	middlewares  []middleware.Middleware
	missStatus   int
	preservePath bool
	drainTimeout time.Duration
	signalDelay  time.Duration
	signals      bool
	dialer       transport.Dialer
	dialTimeout  time.Duration

	handler http.Handler
	proxy   *httputil.ReverseProxy
	h2      *http2.Server
	hs      *http.Server // owns the graceful-shutdown hook of h2

	state   atomic.Int32
	started atomic.Bool

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup // one per connection goroutine
}

// New creates an idle server with its own registry and shutdown coordinator.
func New(opts ...Option) *Server {
	s := &Server{
		missStatus: http.StatusOK,
		signals:    true,
		conns:      make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("gateway")
	if s.registry == nil {
		s.registry = registry.NewServiceRegistry()
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{Timeout: s.dialTimeout}
	}
	s.resolver = s.registry
	s.handle, s.receiver = shutdown.New()
	s.metrics.WatchRegistrySize(s.registry.Len)

	s.proxy = &httputil.ReverseProxy{
		Rewrite:       s.rewrite,
		Transport:     transport.NewSession(s.dialer, s.dialTimeout),
		FlushInterval: -1,
		ErrorHandler:  s.backendError,
		ErrorLog:      zap.NewStdLog(s.logger.Named("proxy")),
	}
	// Build the chain once at construction, recovery outermost.
	mws := append([]middleware.Middleware{middleware.Recover(s.logger)}, s.middlewares...)
	s.handler = middleware.Chain(mws...)(http.HandlerFunc(s.route))
	s.h2 = &http2.Server{}
	s.hs = &http.Server{
		Handler:  s.handler,
		ErrorLog: zap.NewStdLog(s.logger.Named("http2")),
	}
	return s
}

// Registry is the table the server routes through.
func (s *Server) Registry() *registry.ServiceRegistry {
	return s.registry
}

// Handler returns a shutdown handle. It may be copied and used from any goroutine.
func (s *Server) Handler() shutdown.Handler {
	return s.handle
}

// State reports the lifecycle stage.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr is the bound address, or nil before Serve binds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve binds address (a literal ip:port) and serves until shutdown is requested and every
// connection has finished. A bind failure is returned immediately.
func (s *Server) Serve(address string) error {
	if s.started.Load() {
		return ErrServerStarted
	}
	ap, err := parseSocketAddr(address)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", ap.String())
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", address, err)
	}
	return s.ServeListener(ln)
}

// ServeListener is Serve over an already bound listener. The listener is closed on return.
func (s *Server) ServeListener(ln net.Listener) error {
	if !s.started.CompareAndSwap(false, true) {
		ln.Close()
		return ErrServerStarted
	}
	if err := http2.ConfigureServer(s.hs, s.h2); err != nil {
		ln.Close()
		return fmt.Errorf("gateway: configure http2: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s.signals {
		go s.listenSignals(ctx)
	}

	s.setState(StateServing)
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		s.logger.Info("gateway started", zap.String("url", SocketAddrToURL(tcp.AddrPort())))
	}
	s.acceptLoop(ln)
	s.drain()
	return nil
}

func (s *Server) listenSignals(ctx context.Context) {
	sig := signal.Listen(ctx, s.handle.Request, s.signalDelay)
	if sig != nil {
		s.logger.Info("termination signal received",
			zap.String("signal", signal.Name(sig)), zap.Duration("delay", s.signalDelay))
	}
}

// acceptLoop runs until a shutdown notification arrives. A connection that is accepted
// together with the notification is closed unserved.
func (s *Server) acceptLoop(ln net.Listener) {
	conns := make(chan net.Conn)
	stop := make(chan struct{})
	var acceptor sync.WaitGroup
	acceptor.Add(1)
	go func() {
		defer acceptor.Done()
		s.accept(ln, conns, stop)
	}()

loop:
	for {
		if s.receiver.Pending() {
			break
		}
		select {
		case c := <-conns:
			if !s.admit(c) {
				break loop
			}
		case <-s.receiver.C():
			break loop
		}
	}
	s.logger.Info("shutdown requested, no longer accepting")

	close(stop)
	ln.Close()
	acceptor.Wait()
}

// accept feeds conns until the listener is closed. Transient errors are logged and retried
// with backoff.
func (s *Server) accept(ln net.Listener, conns chan<- net.Conn, stop <-chan struct{}) {
	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			s.logger.Error("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-time.After(delay):
				continue
			case <-stop:
				return
			}
		}
		delay = 0
		select {
		case conns <- c:
		case <-stop:
			c.Close()
			return
		}
	}
}

// admit starts serving c, or closes it unserved when a shutdown notification is pending.
func (s *Server) admit(c net.Conn) bool {
	if s.receiver.Pending() {
		c.Close()
		return false
	}
	s.track(c)
	go s.serveConn(c)
	return true
}

func (s *Server) serveConn(c net.Conn) {
	defer s.wg.Done()
	defer s.untrack(c)
	defer c.Close()

	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()

	logger := s.logger.With(zap.String("remote", c.RemoteAddr().String()))
	defer func() {
		if p := recover(); p != nil {
			logger.Error("connection panic", zap.Any("panic", p))
		}
	}()
	logger.Debug("connection accepted")
	s.h2.ServeConn(c, &http2.ServeConnOpts{
		Context:    context.Background(),
		BaseConfig: s.hs,
		Handler:    s.handler,
	})
	logger.Debug("connection closed")
}

func (s *Server) track(c net.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// drain waits for every connection goroutine. Open sessions receive GOAWAY so they end once
// their in-flight streams complete.
func (s *Server) drain() {
	s.setState(StateDraining)

	// hs tracks no listeners or conns of its own, so this only fires the GOAWAY hooks.
	_ = s.hs.Shutdown(context.Background())

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	if s.drainTimeout <= 0 {
		<-done
	} else {
		timer := time.NewTimer(s.drainTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			n := s.closeConns()
			s.logger.Warn("drain timeout, closing connections",
				zap.Duration("timeout", s.drainTimeout), zap.Int("connections", n))
			<-done
		}
	}
	s.setState(StateStopped)
}

func (s *Server) closeConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
	return len(s.conns)
}

func (s *Server) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	s.logger.Info("state changed", zap.Stringer("from", prev), zap.Stringer("to", st))
}
