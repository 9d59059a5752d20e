// Package termination waits for the process to be told to stop.
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

var signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Handle blocks until the process receives SIGINT or SIGTERM, then waits for
// delay before returning ErrTerminated. It returns nil if ctx is done first.
func Handle(ctx context.Context, delay time.Duration) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, signals...)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
		return nil
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	return ErrTerminated
}
