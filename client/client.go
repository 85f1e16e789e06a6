// Package client talks to a yoroi gateway over cleartext HTTP/2 with prior knowledge.
//
// Requests are addressed by service id: Call("svc", "/health", ...) goes to
// http://<gateway>/svc/health. Connect opens a CONNECT tunnel through the gateway.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

type Client struct {
	gateway string // host:port of the gateway
	h2      *http2.Transport
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds whole requests made with Call and Get. Tunnels are not affected.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the gateway listening on addr (host:port).
func New(addr string, opts ...Option) *Client {
	h2 := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	c := &Client{
		gateway: addr,
		h2:      h2,
		http:    &http.Client{Transport: h2},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the gateway URL for path under service id.
func (c *Client) URL(id, path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + c.gateway + "/" + id + path
}

// Do sends req to the gateway. The request URL host is replaced with the gateway address.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = c.gateway
	return c.http.Do(req)
}

// Get fetches path (including the routing key) from the gateway.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+c.gateway+path, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// Call posts args as JSON to path on service id and decodes the JSON reply into reply.
// A nil reply discards the body. Non-2xx responses are returned as *StatusError.
func (c *Client) Call(ctx context.Context, id, path string, args any, reply any) error {
	var body io.Reader
	method := http.MethodGet
	if args != nil {
		payload, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
		body = bytes.NewReader(payload)
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(id, path), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if reply == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, reply); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// Connect opens a tunnel to target (host:port) through the gateway. The gateway routes
// CONNECT through the service registered under the empty id.
func (c *Client) Connect(ctx context.Context, target string) (*Tunnel, error) {
	pr, pw := io.Pipe()
	req := &http.Request{
		Method:        http.MethodConnect,
		URL:           &url.URL{Scheme: "http", Host: c.gateway},
		Host:          target,
		Header:        make(http.Header),
		Body:          pr,
		ContentLength: -1,
	}
	req = req.WithContext(ctx)

	resp, err := c.h2.RoundTrip(req)
	if err != nil {
		pw.Close()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		pw.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return &Tunnel{r: resp.Body, w: pw}, nil
}

// Close releases idle connections to the gateway.
func (c *Client) Close() {
	c.h2.CloseIdleConnections()
}

// StatusError is a non-success gateway response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: status %d", e.Code)
	}
	return fmt.Sprintf("gateway: status %d: %s", e.Code, e.Body)
}

// Tunnel is an open CONNECT stream.
type Tunnel struct {
	r io.ReadCloser
	w *io.PipeWriter
}

func (t *Tunnel) Read(p []byte) (int, error)  { return t.r.Read(p) }
func (t *Tunnel) Write(p []byte) (int, error) { return t.w.Write(p) }

// CloseWrite ends the client → target direction; replies can still be read.
func (t *Tunnel) CloseWrite() error {
	return t.w.Close()
}

// Close tears down both directions.
func (t *Tunnel) Close() error {
	t.w.Close()
	return t.r.Close()
}
