package host

import (
	"context"
	"sync"
)

// Service is a component started and stopped with the Host.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Lifetime lets components react to the Host starting and stopping.
type Lifetime struct {
	mu        sync.Mutex
	started   []func(context.Context)
	stopping  []func(context.Context)
	startCtx  context.Context
	startedCh chan struct{}
	stopped   bool
}

func newLifetime() *Lifetime {
	return &Lifetime{startedCh: make(chan struct{})}
}

// OnStarted registers fn to run once every hosted service has started. If the
// host has already started fn runs straight away.
func (l *Lifetime) OnStarted(fn func(ctx context.Context)) {
	l.mu.Lock()
	if l.startCtx == nil {
		l.started = append(l.started, fn)
		l.mu.Unlock()
		return
	}
	ctx := l.startCtx
	l.mu.Unlock()
	fn(ctx)
}

// OnStopping registers fn to run when the host begins to stop.
func (l *Lifetime) OnStopping(fn func(ctx context.Context)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopping = append(l.stopping, fn)
}

// Started is closed once the OnStarted callbacks have run.
func (l *Lifetime) Started() <-chan struct{} {
	return l.startedCh
}

func (l *Lifetime) notifyStarted(ctx context.Context) {
	l.mu.Lock()
	if l.startCtx != nil {
		l.mu.Unlock()
		return
	}
	l.startCtx = ctx
	fns := l.started
	l.started = nil
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
	close(l.startedCh)
}

func (l *Lifetime) notifyStopping(ctx context.Context) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	fns := l.stopping
	l.stopping = nil
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}
