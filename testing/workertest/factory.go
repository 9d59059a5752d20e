package workertest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"gotest.tools/v3/assert"

	"github.com/circleci/workerhost/host"
	"github.com/circleci/workerhost/o11y"
)

type State int

const (
	Created State = iota
	Starting
	Started
	Failed
	Disposed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Starting:
		return "starting"
	case Started:
		return "started"
	case Failed:
		return "failed"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Factory starts a worker in the test process. Derive a Factory with
// WithHostBuilder to change how the worker is configured; derived factories
// are stopped with the Factory they came from.
type Factory struct {
	factory      host.BuilderFactory
	app          Application
	baseDir      string
	environment  string
	fallback     fallbackRoot
	contentRoots []ContentRoot

	testModules   func(ctx context.Context, app Application, baseDir string) []TestModule
	createBuilder func() (*host.Builder, error)
	createHost    func(ctx context.Context, b *host.Builder) (*host.Host, error)
	manifest      func(dir string) (*Manifest, error)

	configure []func(*host.Builder)

	mu       sync.Mutex
	state    State
	host     *host.Host
	children []*Factory
}

// New returns a Factory for the worker created by factory. Nothing is built
// until Start.
func New(factory host.BuilderFactory, opts ...Option) *Factory {
	f := &Factory{
		factory:     factory,
		environment: host.Development,
		testModules: DiscoverTestModules,
		createHost:  defaultCreateHost,
		manifest:    LoadManifest,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// WithHostBuilder returns a new Factory that applies configure after every
// configuration this Factory applies.
func (f *Factory) WithHostBuilder(configure func(*host.Builder)) *Factory {
	f.mu.Lock()
	defer f.mu.Unlock()

	child := &Factory{
		factory:       f.factory,
		app:           f.app,
		baseDir:       f.baseDir,
		environment:   f.environment,
		fallback:      f.fallback,
		contentRoots:  append([]ContentRoot(nil), f.contentRoots...),
		testModules:   f.testModules,
		createBuilder: f.createBuilder,
		createHost:    f.createHost,
		manifest:      f.manifest,
		configure:     append(slices.Clone(f.configure), configure),
	}
	if f.state == Disposed {
		child.state = Disposed
	}
	f.children = append(f.children, child)
	return child
}

// Start builds and starts the worker. A Factory starts at most once; if Start
// fails the Factory cannot be used again.
func (f *Factory) Start(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "workertest: start")
	defer o11y.End(span, &err)

	f.mu.Lock()
	switch f.state {
	case Created:
		f.state = Starting
	case Disposed:
		f.mu.Unlock()
		return ErrDisposed
	default:
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.mu.Unlock()

	h, err := f.start(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case err != nil:
		if f.state != Disposed {
			f.state = Failed
		}
		return err
	case f.state == Disposed:
		_ = h.Stop(ctx)
		return ErrDisposed
	}
	f.host = h
	f.state = Started
	return nil
}

func (f *Factory) start(ctx context.Context) (*host.Host, error) {
	baseDir, err := f.resolveBaseDir()
	if err != nil {
		return nil, err
	}
	if _, err := f.manifest(baseDir); err != nil {
		return nil, err
	}

	b, app, err := f.bootstrap()
	if err != nil {
		return nil, err
	}
	b.UseEnvironment(f.environment)

	modules := f.testModules(ctx, app, baseDir)
	if len(f.contentRoots) > 0 {
		modules = append([]TestModule{{Package: "options", ContentRoots: f.contentRoots}}, modules...)
	}
	root, err := locateContentRoot(ctx, app, baseDir, modules, f.fallback)
	if err != nil {
		return nil, err
	}
	b.UseContentRoot(root)

	for _, configure := range f.configure {
		configure(b)
	}
	return f.createHost(ctx, b)
}

func (f *Factory) bootstrap() (*host.Builder, Application, error) {
	if f.createBuilder == nil {
		return resolveBootstrap(f.factory, f.app)
	}

	app := f.app
	if app.FullName == "" && f.factory != nil {
		app = applicationFromPackage(packageOf(funcName(f.factory)))
	}
	if app.FullName == "" {
		return nil, app, &ResolutionError{Reason: "the worker's package is unknown, use WithApplication"}
	}
	b, err := f.createBuilder()
	if err != nil {
		return nil, app, &ResolutionError{Reason: err.Error()}
	}
	if b == nil {
		return nil, app, &ResolutionError{Reason: "the builder factory returned a nil builder"}
	}
	return b, app, nil
}

func (f *Factory) resolveBaseDir() (string, error) {
	dir := f.baseDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

// Services returns the started worker's container.
func (f *Factory) Services() (*host.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Started:
		return f.host.Services(), nil
	case Disposed:
		return nil, ErrDisposed
	}
	return nil, ErrNotStarted
}

// Host returns the started worker, or nil.
func (f *Factory) Host() *host.Host {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.host
}

// Factories returns the factories derived from this one.
func (f *Factory) Factories() []*Factory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Factory(nil), f.children...)
}

func (f *Factory) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Stop stops every derived factory, depth first, then this factory's host.
// Only the first call has any effect.
func (f *Factory) Stop(ctx context.Context) error {
	f.mu.Lock()
	if f.state == Disposed {
		f.mu.Unlock()
		return nil
	}
	f.state = Disposed
	children := f.children
	h := f.host
	f.host = nil
	f.mu.Unlock()

	var result error
	for _, child := range children {
		if err := child.Stop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if h != nil {
		if err := h.Stop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Close stops the factory with a background context.
func (f *Factory) Close() error {
	return f.Stop(context.Background())
}

// Start starts f for the duration of the test and returns the worker's container.
func Start(ctx context.Context, t testing.TB, f *Factory) *host.Container {
	t.Helper()
	t.Cleanup(func() {
		assert.Check(t, f.Stop(context.WithoutCancel(ctx)))
	})
	assert.NilError(t, f.Start(ctx))

	c, err := f.Services()
	assert.NilError(t, err)
	return c
}
