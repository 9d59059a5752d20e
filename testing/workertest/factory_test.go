package workertest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"

	"github.com/circleci/workerhost/host"
	"github.com/circleci/workerhost/testing/testcontext"
)

type greeting struct {
	text string
}

type label string

type stopLog struct {
	mu      sync.Mutex
	stopped []string
}

func (l *stopLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = append(l.stopped, s)
}

func (l *stopLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.stopped...)
}

type labelledService struct {
	label label
	log   *stopLog
}

func (s *labelledService) Start(context.Context) error { return nil }

func (s *labelledService) Stop(context.Context) error {
	s.log.add(string(s.label))
	return nil
}

// createBuilder stands in for a worker's CreateBuilder.
func createBuilder(args []string) *host.Builder {
	return host.NewBuilder(args).ConfigureServices(func(hctx host.Context, s *host.Services) {
		hctx.Config.SetDefault("greeting", "worker")
		host.AddSingleton(s, greeting{text: hctx.Config.GetString("greeting")})
		host.AddSingleton(s, label("root"))
		host.AddSingleton(s, &stopLog{})
		host.AddHostedService[*labelledService](s, func(l label, log *stopLog) *labelledService {
			return &labelledService{label: l, log: log}
		})
	})
}

func withLabel(l label, log *stopLog) func(*host.Builder) {
	return func(b *host.Builder) {
		b.ConfigureServices(func(_ host.Context, s *host.Services) {
			host.Replace(s, l)
			host.Replace(s, log)
		})
	}
}

func moduleRoot(t *testing.T) string {
	t.Helper()
	m, err := LoadManifest(".")
	assert.Assert(t, err)
	return m.Dir()
}

func TestFactory_Start(t *testing.T) {
	ctx := testcontext.Background()
	f := New(createBuilder)
	assert.Check(t, cmp.Equal(f.State(), Created))

	c := Start(ctx, t, f)

	assert.Check(t, cmp.Equal(f.State(), Started))
	assert.Check(t, cmp.Equal(host.MustResolve[greeting](c).text, "worker"))

	hctx := f.Host().Context()
	assert.Check(t, cmp.Equal(hctx.Environment, host.Development))
	wd, err := os.Getwd()
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(hctx.ContentRoot, wd))
	assert.Check(t, cmp.Equal(hctx.ContentRoot, filepath.Join(moduleRoot(t), "testing", "workertest")))

	assert.Check(t, errors.Is(f.Start(ctx), ErrAlreadyStarted))
}

func TestFactory_ServicesBeforeStart(t *testing.T) {
	f := New(createBuilder)

	_, err := f.Services()
	assert.Check(t, errors.Is(err, ErrNotStarted))
	var notStarted *NotStartedError
	assert.Check(t, errors.As(err, &notStarted))
	assert.Check(t, f.Host() == nil)
}

func TestFactory_DerivedConfigurationAppliesParentThenChild(t *testing.T) {
	ctx := testcontext.Background()
	var order []string

	parent := New(createBuilder).WithHostBuilder(func(b *host.Builder) {
		order = append(order, "parent")
		b.ConfigureServices(func(_ host.Context, s *host.Services) {
			host.Replace(s, greeting{text: "parent"})
		})
	})
	child := parent.WithHostBuilder(func(b *host.Builder) {
		order = append(order, "child")
		b.ConfigureServices(func(_ host.Context, s *host.Services) {
			host.Replace(s, greeting{text: "child"})
		})
	})

	c := Start(ctx, t, child)

	assert.Check(t, cmp.Equal(host.MustResolve[greeting](c).text, "child"))
	assert.Check(t, cmp.DeepEqual(order, []string{"parent", "child"}))
	assert.Check(t, cmp.Equal(parent.State(), Created), "deriving builds nothing")
	assert.Check(t, cmp.Len(parent.Factories(), 1))
	assert.Check(t, parent.Factories()[0] == child)
}

func TestFactory_SiblingsKeepTheirOwnConfiguration(t *testing.T) {
	ctx := testcontext.Background()

	parent := New(createBuilder).
		WithHostBuilder(func(*host.Builder) {}).
		WithHostBuilder(func(*host.Builder) {})
	first := parent.WithHostBuilder(func(b *host.Builder) {
		b.ConfigureServices(func(_ host.Context, s *host.Services) {
			host.Replace(s, greeting{text: "first"})
		})
	})
	second := parent.WithHostBuilder(func(b *host.Builder) {
		b.ConfigureServices(func(_ host.Context, s *host.Services) {
			host.Replace(s, greeting{text: "second"})
		})
	})

	assert.Check(t, cmp.Len(parent.configure, 2))
	assert.Check(t, cmp.Len(first.configure, 3))
	assert.Check(t, cmp.Len(second.configure, 3))

	c := Start(ctx, t, first)
	assert.Check(t, cmp.Equal(host.MustResolve[greeting](c).text, "first"))
	c = Start(ctx, t, second)
	assert.Check(t, cmp.Equal(host.MustResolve[greeting](c).text, "second"))
}

func TestFactory_StopDisposesChildrenDepthFirst(t *testing.T) {
	ctx := testcontext.Background()
	log := &stopLog{}

	root := New(createBuilder).WithHostBuilder(withLabel("root", log))
	child1 := root.WithHostBuilder(withLabel("child1", log))
	grandchild := child1.WithHostBuilder(withLabel("grandchild", log))
	child2 := root.WithHostBuilder(withLabel("child2", log))

	for _, f := range []*Factory{root, child1, grandchild, child2} {
		assert.Assert(t, f.Start(ctx))
	}

	assert.Check(t, root.Stop(ctx))
	assert.Check(t, cmp.DeepEqual(log.list(), []string{"grandchild", "child1", "child2", "root"}))

	assert.Check(t, root.Stop(ctx))
	assert.Check(t, child1.Close())
	assert.Check(t, cmp.Len(log.list(), 4), "each factory is disposed once")

	for _, f := range []*Factory{root, child1, grandchild, child2} {
		assert.Check(t, cmp.Equal(f.State(), Disposed))
		_, err := f.Services()
		assert.Check(t, errors.Is(err, ErrDisposed))
	}
	assert.Check(t, errors.Is(root.Start(ctx), ErrDisposed))
}

func TestFactory_StopUnstartedChildren(t *testing.T) {
	root := New(createBuilder)
	child := root.WithHostBuilder(func(*host.Builder) {})

	assert.Check(t, root.Close())
	assert.Check(t, cmp.Equal(child.State(), Disposed))

	late := root.WithHostBuilder(func(*host.Builder) {})
	assert.Check(t, errors.Is(late.Start(context.Background()), ErrDisposed))
}

func TestFactory_ContentRootFromOptions(t *testing.T) {
	ctx := testcontext.Background()
	dir := fs.NewDir(t, "content-root", fs.WithFile("config.yaml", "greeting: from-config\n"))

	f := New(createBuilder,
		WithContentRoots(ContentRoot{Key: "WorkerTest", Path: dir.Path(), Marker: "config.yaml"}),
		WithEnvironment(host.Staging),
	)
	c := Start(ctx, t, f)

	assert.Check(t, cmp.Equal(f.Host().Context().ContentRoot, dir.Path()))
	assert.Check(t, cmp.Equal(f.Host().Context().Environment, host.Staging))
	assert.Check(t, cmp.Equal(host.MustResolve[greeting](c).text, "from-config"))
}

func TestFactory_Strategies(t *testing.T) {
	ctx := testcontext.Background()
	var discovered, built bool

	f := New(nil,
		WithApplication("github.com/circleci/workerhost/testing/workertest"),
		WithBuilderFactory(func() (*host.Builder, error) {
			return createBuilder([]string{"--set", "greeting=from-args"}), nil
		}),
		WithTestModules(func(_ context.Context, app Application, _ string) []TestModule {
			discovered = true
			assert.Check(t, cmp.Equal(app.Name, "workertest"))
			return nil
		}),
		WithHostFactory(func(ctx context.Context, b *host.Builder) (*host.Host, error) {
			built = true
			assert.Check(t, cmp.Equal(b.Environment(), host.Development))
			return defaultCreateHost(ctx, b)
		}),
	)
	c := Start(ctx, t, f)

	assert.Check(t, discovered)
	assert.Check(t, built)
	assert.Check(t, cmp.Equal(host.MustResolve[greeting](c).text, "from-args"))
}

func TestFactory_StartFailures(t *testing.T) {
	ctx := testcontext.Background()

	tests := []struct {
		name    string
		factory *Factory
		check   func(t *testing.T, err error)
	}{
		{
			name:    "no manifest",
			factory: New(createBuilder, WithBaseDir(fs.NewDir(t, "no-manifest").Path())),
			check: func(t *testing.T, err error) {
				var target *DependencyManifestError
				assert.Check(t, errors.As(err, &target))
			},
		},
		{
			name:    "nil factory",
			factory: New(nil),
			check: func(t *testing.T, err error) {
				var target *ResolutionError
				assert.Check(t, errors.As(err, &target))
			},
		},
		{
			name:    "builder strategy fails",
			factory: New(createBuilder, WithBuilderFactory(func() (*host.Builder, error) { return nil, errors.New("no builder") })),
			check: func(t *testing.T, err error) {
				var target *ResolutionError
				assert.Check(t, errors.As(err, &target))
				assert.Check(t, cmp.ErrorContains(err, "no builder"))
			},
		},
		{
			name:    "no content root",
			factory: New(createBuilder, WithSolutionRelativeContentRoot("", "workertest-no-such.marker")),
			check: func(t *testing.T, err error) {
				var target *ContentRootResolutionError
				assert.Check(t, errors.As(err, &target))
			},
		},
		{
			name: "host fails to build",
			factory: New(createBuilder).WithHostBuilder(func(b *host.Builder) {
				b.ConfigureServices(func(_ host.Context, s *host.Services) {
					s.Provide(42)
				})
			}),
			check: func(t *testing.T, err error) {
				assert.Check(t, cmp.ErrorContains(err, "constructor must be a function"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.factory.Start(ctx)
			tt.check(t, err)
			assert.Check(t, cmp.Equal(tt.factory.State(), Failed))
			assert.Check(t, errors.Is(tt.factory.Start(ctx), ErrAlreadyStarted), "a failed factory cannot be restarted")
			assert.Check(t, tt.factory.Close())
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Check(t, cmp.Equal(Started.String(), "started"))
	assert.Check(t, cmp.Equal(State(42).String(), "State(42)"))
}
