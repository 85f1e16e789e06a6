// Package tunnel relays raw bytes between an already-upgraded client stream and a TCP target.
//
// Each direction runs in its own goroutine. When one direction reaches end-of-stream the
// write side of the opposite peer is half-closed so in-flight replies still get through;
// an error in either direction tears both peers down. Run returns once both directions are
// done and both peers are closed.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Result is the byte count moved in each direction.
type Result struct {
	Up   int64 // client → target
	Down int64 // target → client
}

// Option configures Run.
type Option func(*options)

type options struct {
	dialTimeout time.Duration
	dial        func(ctx context.Context, network, addr string) (net.Conn, error)
}

// WithDialTimeout bounds the outbound connect.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithDialFunc replaces the outbound dialer.
func WithDialFunc(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(o *options) { o.dial = dial }
}

// Run dials addr and copies bytes between client and the new connection until both
// directions finish. client is always closed when Run returns.
func Run(ctx context.Context, client io.ReadWriteCloser, addr string, opts ...Option) (Result, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dial == nil {
		d := &net.Dialer{Timeout: o.dialTimeout}
		o.dial = d.DialContext
	}

	target, err := o.dial(ctx, "tcp", addr)
	if err != nil {
		client.Close()
		return Result{}, fmt.Errorf("dial %s: %w", addr, err)
	}

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			client.Close()
			target.Close()
		})
	}
	defer closeBoth()
	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	var (
		res     Result
		wg      sync.WaitGroup
		errMu   sync.Mutex
		copyErr error
	)
	record := func(err error) {
		errMu.Lock()
		if copyErr == nil {
			copyErr = err
		}
		errMu.Unlock()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		n, err := CopyWithBuffer(target, client)
		res.Up = n
		if err != nil && !isIgnorableError(err) {
			record(err)
			closeBoth()
			return
		}
		halfClose(target)
	}()
	go func() {
		defer wg.Done()
		n, err := CopyWithBuffer(client, target)
		res.Down = n
		if err != nil && !isIgnorableError(err) {
			record(err)
			closeBoth()
			return
		}
		halfClose(client)
	}()
	wg.Wait()

	return res, copyErr
}

type closeWriter interface {
	CloseWrite() error
}

// halfClose signals end-of-stream to c, falling back to a full close.
func halfClose(c io.Closer) {
	if cw, ok := c.(closeWriter); ok {
		if err := cw.CloseWrite(); err == nil {
			return
		}
	}
	c.Close()
}

// isIgnorableError reports errors that only mean the other side went away first.
func isIgnorableError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "body closed by handler") ||
		strings.Contains(msg, "connection reset by peer")
}
