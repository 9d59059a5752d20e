package system

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/circleci/workerhost/o11y"
	"github.com/circleci/workerhost/termination"
)

var ErrAlreadyStarted = errors.New("system already started")

type System struct {
	mu             sync.Mutex
	services       []func(context.Context) error
	metrics        []MetricProducer
	gauges         []GaugeProducer
	cleanups       []func(ctx context.Context) error
	group          *errgroup.Group
	ctx            context.Context
	cancel         context.CancelFunc
	cleanupStarted bool
}

func New() *System {
	return &System{}
}

var terminationTestHook = termination.Handle

// Start launches every registered service in the background. Services added
// after Start are not run.
func (r *System) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.group != nil {
		return ErrAlreadyStarted
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.group, r.ctx = errgroup.WithContext(ctx)

	for _, f := range r.services {
		f := f
		r.group.Go(func() error {
			return f(r.ctx)
		})
	}

	if len(r.metrics) > 0 || len(r.gauges) > 0 {
		r.group.Go(metricsReporter(r.ctx, r.metrics, r.gauges))
	}
	return nil
}

// Run starts the system if needed and blocks until the process is terminated
// or a service fails.
func (r *System) Run(ctx context.Context, delay time.Duration) (err error) {
	_, span := o11y.StartSpan(ctx, "system: run")
	defer o11y.End(span, &err)
	span.RecordMetric(o11y.Timing("system.run", "result"))

	if err := r.Start(ctx); err != nil && !errors.Is(err, ErrAlreadyStarted) {
		return err
	}

	r.group.Go(func() error {
		return terminationTestHook(r.ctx, delay)
	})
	return r.group.Wait()
}

// Stop cancels the running services and waits for them to return, or for ctx
// to be done.
func (r *System) Stop(ctx context.Context) error {
	r.mu.Lock()
	group, cancel := r.group, r.cancel
	r.mu.Unlock()
	if group == nil {
		return nil
	}

	cancel()
	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *System) AddService(s func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append(r.services, s)
}

func (r *System) AddMetrics(m MetricProducer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

func (r *System) AddGauges(g GaugeProducer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges = append(r.gauges, g)
}

func (r *System) AddCleanup(c func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, c)
}

// Cleanup runs the cleanups in the order they were added. It only runs once.
func (r *System) Cleanup(ctx context.Context) {
	r.mu.Lock()
	if r.cleanupStarted {
		r.mu.Unlock()
		return
	}
	r.cleanupStarted = true
	cleanups := r.cleanups
	r.mu.Unlock()

	for _, c := range cleanups {
		err := c(ctx)
		if err != nil {
			o11y.LogError(ctx, "system: cleanup error", err)
		}
	}
}
