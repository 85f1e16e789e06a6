// Package shutdown is the one-slot notification the gateway's accept loop waits on.
//
// Handlers are plain values and can be copied into any goroutine; the Receiver stays with
// the server. A request never blocks and never panics, even after the server stopped
// listening: the slot holds at most one pending notification and extra ones are dropped.
package shutdown

import (
	"context"
	"time"
)

// Handler requests a graceful shutdown.
type Handler struct {
	ch chan struct{}
}

// Receiver is the consuming side, owned by the server.
type Receiver struct {
	ch chan struct{}
}

// New returns a connected Handler / Receiver pair.
func New() (Handler, *Receiver) {
	ch := make(chan struct{}, 1)
	return Handler{ch: ch}, &Receiver{ch: ch}
}

// Request waits for delay and then delivers one shutdown notification.
func (h Handler) Request(delay time.Duration) {
	h.RequestContext(context.Background(), delay)
}

// RequestContext is Request with a cancellable delay. It reports whether the notification was
// queued; false means ctx ended first or a notification was already pending.
func (h Handler) RequestContext(ctx context.Context, delay time.Duration) bool {
	if h.ch == nil {
		return false
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false
		}
	}
	select {
	case h.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// C is the channel the accept loop selects on.
func (r *Receiver) C() <-chan struct{} {
	return r.ch
}

// Pending consumes a queued notification without blocking.
func (r *Receiver) Pending() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}
