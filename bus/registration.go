package bus

import (
	"context"
	"sync"
)

// Registration is the handle returned for a registered operation. Cancel
// withdraws the operation from the bus that issued it.
type Registration struct {
	operation string
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewRegistration(operation string) *Registration {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registration{
		operation: operation,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *Registration) Operation() string {
	return r.operation
}

// Cancel is safe to call more than once.
func (r *Registration) Cancel() {
	r.cancel()
}

// Done is closed once the registration is cancelled.
func (r *Registration) Done() <-chan struct{} {
	return r.ctx.Done()
}

func (r *Registration) Canceled() bool {
	return r.ctx.Err() != nil
}

// OnCancel arranges for fn to run in its own goroutine once the registration
// is cancelled. The returned stop func unhooks fn if it has not run yet.
func (r *Registration) OnCancel(fn func()) (stop func() bool) {
	return context.AfterFunc(r.ctx, fn)
}

// Registrations holds the handles a component has been given.
// The zero value is ready to use.
type Registrations struct {
	mu   sync.Mutex
	regs []*Registration
}

func (rs *Registrations) Add(r *Registration) {
	if r == nil {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.regs = append(rs.regs, r)
}

func (rs *Registrations) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.regs)
}

// CancelAll cancels every held registration and forgets them, so calling it
// again cancels nothing.
func (rs *Registrations) CancelAll() {
	rs.mu.Lock()
	regs := rs.regs
	rs.regs = nil
	rs.mu.Unlock()

	for _, r := range regs {
		r.Cancel()
	}
}
