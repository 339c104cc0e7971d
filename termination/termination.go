// Package termination turns process signals into an error that stops a system.
package termination

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var ErrTerminated = errors.New("terminated")

// Handle blocks until the process is asked to stop or ctx is done. On a signal it waits
// delay before returning ErrTerminated, so load balancers can drain the service.
func Handle(ctx context.Context, delay time.Duration) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
		return nil
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
	return ErrTerminated
}
