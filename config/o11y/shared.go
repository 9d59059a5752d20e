package o11y

import (
	"context"
	"sync"

	"github.com/circleci/workerhost/o11y"
)

// Shared hands one provider to every user in a process, typically the tests
// of one package each starting their own worker. The first Acquire sets the
// provider up and the last release closes it, flushing whatever was traced.
type Shared struct {
	conf Config

	mu       sync.Mutex
	refs     int
	provider o11y.Provider
	shutdown func(context.Context)
}

func NewShared(conf Config) *Shared {
	return &Shared{conf: conf}
}

// Acquire returns ctx carrying the shared provider, and the func that gives
// it back. Calling the release func more than once has no further effect.
func (s *Shared) Acquire(ctx context.Context) (context.Context, func(context.Context), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		pctx, shutdown, err := Setup(ctx, s.conf)
		if err != nil {
			return ctx, nil, err
		}
		s.provider = o11y.FromContext(pctx)
		s.shutdown = shutdown
	}
	s.refs++

	var once sync.Once
	release := func(ctx context.Context) {
		once.Do(func() { s.release(ctx) })
	}
	return o11y.WithProvider(ctx, s.provider), release, nil
}

func (s *Shared) release(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs--
	if s.refs > 0 {
		return
	}
	s.shutdown(ctx)
	s.provider = nil
	s.shutdown = nil
}

// Users reports how many acquisitions are still held.
func (s *Shared) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}
