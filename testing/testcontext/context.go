// Package testcontext provides a context with working o11y for tests.
package testcontext

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/circleci/workerhost/config/o11y"
)

var (
	shared = o11y.NewShared(o11y.Config{
		Format:  format(),
		Service: "test-service",
		Version: "dev",
	})

	background     context.Context
	backgroundOnce sync.Once
)

// Background returns a context for use in tests which contains a working o11y,
// so you get logs. It holds the provider for the life of the test binary.
func Background() context.Context {
	backgroundOnce.Do(func() {
		background = acquire()
	})
	return background
}

// New returns a context sharing the same provider as Background, held until
// the test finishes. Traces are flushed once the last holder lets go.
func New(t testing.TB) context.Context {
	t.Helper()
	ctx, release, err := shared.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		release(ctx)
	})
	return ctx
}

func acquire() context.Context {
	ctx, _, err := shared.Acquire(context.Background())
	if err != nil {
		panic(err)
	}
	return ctx
}

func format() string {
	if f := os.Getenv("TEST_O11Y_FORMAT"); f != "" {
		return f
	}
	return "color"
}
