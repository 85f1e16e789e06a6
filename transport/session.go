// Package transport opens outbound HTTP/2 sessions to backends.
//
// Backends speak HTTP/2 over cleartext TCP with prior knowledge (h2c). Every forwarded
// request gets its own TCP connection and its own HTTP/2 client session; the session is torn
// down when the response body is closed:
//
//	gateway stream ──RoundTrip──→ dial endpoint → h2 preface → request → response
//	                                                      body.Close() ──→ session closed
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// Dialer opens the raw connection for a session. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Session is an http.RoundTripper that uses a fresh HTTP/2 session per request.
// The request URL host must be the backend's host:port.
type Session struct {
	dialer Dialer
	h2     *http2.Transport
}

var _ http.RoundTripper = (*Session)(nil)

// NewSession creates a Session. A nil dialer means a plain net.Dialer with dialTimeout.
func NewSession(dialer Dialer, dialTimeout time.Duration) *Session {
	if dialer == nil {
		dialer = &net.Dialer{Timeout: dialTimeout}
	}
	return &Session{
		dialer: dialer,
		h2:     &http2.Transport{AllowHTTP: true},
	}
}

// Dial opens a new HTTP/2 client session to addr.
func (s *Session) Dial(ctx context.Context, addr string) (*http2.ClientConn, error) {
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	cc, err := s.h2.NewClientConn(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("h2 handshake %s: %w", addr, err)
	}
	return cc, nil
}

// RoundTrip sends req over a new session to req.URL.Host.
func (s *Session) RoundTrip(req *http.Request) (*http.Response, error) {
	cc, err := s.Dial(req.Context(), req.URL.Host)
	if err != nil {
		return nil, err
	}
	resp, err := cc.RoundTrip(req)
	if err != nil {
		cc.Close()
		return nil, err
	}
	resp.Body = &sessionBody{ReadCloser: resp.Body, cc: cc}
	return resp, nil
}

// sessionBody closes the owning session together with the body.
type sessionBody struct {
	io.ReadCloser
	cc   *http2.ClientConn
	once sync.Once
}

func (b *sessionBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() { b.cc.Close() })
	return err
}
