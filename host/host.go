package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/circleci/workerhost/o11y"
	"github.com/circleci/workerhost/system"
)

var ErrHostStarted = errors.New("host: already started")

// Host is a built worker: its container, its hosted services and the
// background system they run on.
type Host struct {
	hctx      Context
	container *Container
	lifetime  *Lifetime
	sys       *system.System
	hosted    []hostedService

	mu       sync.Mutex
	starting bool
	running  []Service
	stopped  bool
}

func (h *Host) Services() *Container {
	return h.container
}

func (h *Host) Context() Context {
	return h.hctx
}

func (h *Host) Lifetime() *Lifetime {
	return h.lifetime
}

// Start starts the hosted services in the order they were registered, then the
// background system, then runs the OnStarted callbacks. If a hosted service
// fails to start, the ones already started are stopped again.
func (h *Host) Start(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "host: start")
	defer o11y.End(span, &err)
	span.AddField("environment", h.hctx.Environment)

	h.mu.Lock()
	if h.starting || h.stopped {
		h.mu.Unlock()
		return ErrHostStarted
	}
	h.starting = true
	h.mu.Unlock()

	// Services keep running after the caller's context is done; Stop ends them.
	runCtx := context.WithoutCancel(ctx)

	for _, hs := range h.hosted {
		svc, err := hs.resolve(h.container)
		if err != nil {
			return h.abortStart(ctx, fmt.Errorf("host: resolve %v: %w", hs.typ, err))
		}
		if err := svc.Start(runCtx); err != nil {
			return h.abortStart(ctx, fmt.Errorf("host: start %v: %w", hs.typ, err))
		}
		h.mu.Lock()
		h.running = append(h.running, svc)
		h.mu.Unlock()
	}
	span.AddField("hosted_services", len(h.hosted))

	if err := h.sys.Start(runCtx); err != nil {
		return h.abortStart(ctx, fmt.Errorf("host: start system: %w", err))
	}

	h.lifetime.notifyStarted(runCtx)
	return nil
}

// Stop runs the OnStopping callbacks, stops hosted services in reverse order,
// stops the background system and runs its cleanups. Only the first call has
// any effect.
func (h *Host) Stop(ctx context.Context) (err error) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	h.mu.Unlock()

	ctx, span := o11y.StartSpan(ctx, "host: stop")
	defer o11y.End(span, &err)

	h.lifetime.notifyStopping(ctx)

	var result error
	if err := h.stopRunning(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := h.sys.Stop(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("host: stop system: %w", err))
	}
	h.sys.Cleanup(ctx)
	return result
}

// abortStart stops the hosted services already started and reports err along
// with any errors stopping them.
func (h *Host) abortStart(ctx context.Context, err error) error {
	if stopErr := h.stopRunning(ctx); stopErr != nil {
		return multierror.Append(err, stopErr)
	}
	return err
}

func (h *Host) stopRunning(ctx context.Context) error {
	h.mu.Lock()
	running := h.running
	h.running = nil
	h.mu.Unlock()

	var result error
	for i := len(running) - 1; i >= 0; i-- {
		if err := running[i].Stop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("host: stop %T: %w", running[i], err))
		}
	}
	return result
}

// Run starts the host and blocks until the process is terminated or a
// background service fails, then stops the host.
func (h *Host) Run(ctx context.Context, shutdownDelay time.Duration) error {
	if err := h.Start(ctx); err != nil {
		return err
	}
	runErr := h.sys.Run(ctx, shutdownDelay)
	stopErr := h.Stop(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	return stopErr
}
