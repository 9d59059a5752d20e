package workertest

import (
	"context"

	"github.com/circleci/workerhost/host"
)

type Option func(*Factory)

// WithApplication sets the worker's package import path instead of taking it
// from the builder factory.
func WithApplication(pkg string) Option {
	return func(f *Factory) {
		f.app = applicationFromPackage(pkg)
	}
}

// WithBaseDir sets the directory content roots are resolved from. It defaults
// to the working directory, which go test sets to the test's package.
func WithBaseDir(dir string) Option {
	return func(f *Factory) {
		f.baseDir = dir
	}
}

// WithSolutionRelativeContentRoot sets the content root used when no
// declaration matches: relativePath below the nearest directory, at or above
// the base directory, containing a file matching the marker glob.
func WithSolutionRelativeContentRoot(relativePath, marker string) Option {
	return func(f *Factory) {
		f.fallback = fallbackRoot{relativePath: relativePath, marker: marker}
	}
}

// WithContentRoots adds declarations that are considered alongside those made
// with DeclareContentRoot.
func WithContentRoots(roots ...ContentRoot) Option {
	return func(f *Factory) {
		f.contentRoots = append(f.contentRoots, roots...)
	}
}

// WithTestModules replaces how declaring packages are discovered.
func WithTestModules(fn func(ctx context.Context, app Application, baseDir string) []TestModule) Option {
	return func(f *Factory) {
		f.testModules = fn
	}
}

// WithBuilderFactory replaces how the worker's builder is created. The
// worker's identity still comes from the factory passed to New, or from
// WithApplication.
func WithBuilderFactory(fn func() (*host.Builder, error)) Option {
	return func(f *Factory) {
		f.createBuilder = fn
	}
}

// WithHostFactory replaces how the configured builder is turned into a
// started host.
func WithHostFactory(fn func(ctx context.Context, b *host.Builder) (*host.Host, error)) Option {
	return func(f *Factory) {
		f.createHost = fn
	}
}

// WithEnvironment sets the host environment. It defaults to Development.
func WithEnvironment(env string) Option {
	return func(f *Factory) {
		f.environment = env
	}
}

func defaultCreateHost(ctx context.Context, b *host.Builder) (*host.Host, error) {
	h, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.Start(ctx); err != nil {
		_ = h.Stop(ctx)
		return nil, err
	}
	return h, nil
}
