// Package signal bridges OS termination signals to a shutdown callback.
package signal

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"
)

// Termination are the signals Listen waits for by default.
var Termination = []os.Signal{os.Interrupt, syscall.SIGTERM}

var names = map[os.Signal]string{
	os.Interrupt:    "SIGINT",
	syscall.SIGTERM: "SIGTERM",
}

// Name returns a printable name for sig.
func Name(sig os.Signal) string {
	if name, ok := names[sig]; ok {
		return name
	}
	return sig.String()
}

// Listen blocks until one of sigs (Termination when empty) arrives, calls fn(delay) once and
// returns the signal. It stops listening before calling fn. If ctx ends first, fn is not
// called and nil is returned.
func Listen(ctx context.Context, fn func(time.Duration), delay time.Duration, sigs ...os.Signal) os.Signal {
	if len(sigs) == 0 {
		sigs = Termination
	}
	c := make(chan os.Signal, 1)
	ossignal.Notify(c, sigs...)
	defer ossignal.Stop(c)

	select {
	case sig := <-c:
		ossignal.Stop(c)
		fn(delay)
		return sig
	case <-ctx.Done():
		return nil
	}
}
