// Package worker calls a unit of work in a loop, backing off while there is
// nothing to do. The host runs its periodic metrics this way.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/circleci/workerhost/o11y"
)

// ErrShouldBackoff tells Run the work found nothing to do, so the next call
// waits for the back-off.
var ErrShouldBackoff = errors.New("should back off")

type Config struct {
	// Name identifies the loop in traces and metrics.
	Name string
	// NoWorkBackOff paces the calls after ErrShouldBackoff, and is reset by any
	// other result. Defaults to exponential, from 50ms up to 5s.
	NoWorkBackOff backoff.BackOff
	// MaxWorkTime bounds each call to WorkFunc. Defaults to 10s.
	MaxWorkTime time.Duration
	WorkFunc    func(ctx context.Context) error

	waiter func(ctx context.Context, delay time.Duration)
}

// Run calls WorkFunc until ctx is done. A call in progress is not interrupted.
func Run(ctx context.Context, cfg Config) {
	cfg = setDefaults(cfg)
	provider := o11y.FromContext(ctx)

	cfg.NoWorkBackOff.Reset()
	for ctx.Err() == nil {
		if delay := doWork(provider, cfg); delay >= 0 {
			cfg.waiter(ctx, delay)
			continue
		}
		cfg.NoWorkBackOff.Reset()
	}
}

func setDefaults(cfg Config) Config {
	if cfg.Name == "" {
		cfg.Name = "unnamed"
	}
	if cfg.MaxWorkTime <= 0 {
		cfg.MaxWorkTime = 10 * time.Second
	}
	if cfg.NoWorkBackOff == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 50 * time.Millisecond
		b.MaxInterval = 5 * time.Second
		b.MaxElapsedTime = 0
		cfg.NoWorkBackOff = b
	}
	if cfg.waiter == nil {
		cfg.waiter = sleep
	}
	return cfg
}

// doWork makes one call to WorkFunc and returns how long to wait before the
// next, or -1 when it is due straight away.
func doWork(provider o11y.Provider, cfg Config) (delay time.Duration) {
	// Detached from the loop's context so a shutdown lets the call finish.
	ctx, cancel := context.WithTimeout(o11y.WithProvider(context.Background(), provider), cfg.MaxWorkTime)
	defer cancel()

	ctx, span := provider.StartSpan(ctx, "worker: "+cfg.Name)
	span.AddField("loop_name", cfg.Name)
	span.RecordMetric(o11y.Timing("worker_loop", "loop_name", o11y.FieldResult))
	var err error
	defer o11y.End(span, &err)

	delay = -1
	defer func() {
		if r := recover(); r != nil {
			err = o11y.HandlePanic(ctx, span, r)
			delay = -1
		}
	}()

	err = cfg.WorkFunc(ctx)
	if errors.Is(err, ErrShouldBackoff) {
		err = nil
		delay = cfg.NoWorkBackOff.NextBackOff()
		span.AddField("backoff_ms", delay.Milliseconds())
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
