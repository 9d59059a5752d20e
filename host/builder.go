package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/circleci/workerhost/o11y"
	"github.com/circleci/workerhost/system"
)

var ErrBuilderUsed = errors.New("host: builder has already been built")

// BuilderFactory is the entry point a worker exposes to create its Builder.
type BuilderFactory func(args []string) *Builder

// Builder describes how to create a Host. Nothing is constructed until Build.
type Builder struct {
	args []string

	argEnvironment string
	argContentRoot string
	argSettings    []string
	argErr         error

	environment string
	contentRoot string

	configDelegates  []func(Context, *viper.Viper)
	serviceDelegates []func(Context, *Services)

	built bool
}

// NewBuilder returns a Builder that understands --environment, --content-root
// and repeated --set key=value arguments. Other arguments are ignored.
func NewBuilder(args []string) *Builder {
	b := &Builder{args: args}

	fs := pflag.NewFlagSet("host", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.StringVar(&b.argEnvironment, "environment", "", "host environment")
	fs.StringVar(&b.argContentRoot, "content-root", "", "directory holding the worker's config files")
	fs.StringArrayVar(&b.argSettings, "set", nil, "configuration override, key=value")
	b.argErr = fs.Parse(args)

	return b
}

// UseEnvironment overrides the environment from arguments or the process environment.
func (b *Builder) UseEnvironment(env string) *Builder {
	b.environment = env
	return b
}

func (b *Builder) UseContentRoot(dir string) *Builder {
	b.contentRoot = dir
	return b
}

func (b *Builder) Environment() string {
	switch {
	case b.environment != "":
		return b.environment
	case b.argEnvironment != "":
		return b.argEnvironment
	}
	if env := os.Getenv(EnvironmentVariable); env != "" {
		return env
	}
	return Production
}

// ContentRoot returns the configured content root, or the working directory.
func (b *Builder) ContentRoot() string {
	switch {
	case b.contentRoot != "":
		return b.contentRoot
	case b.argContentRoot != "":
		return b.argContentRoot
	}
	wd, _ := os.Getwd()
	return wd
}

func (b *Builder) ConfigureAppConfiguration(fn func(Context, *viper.Viper)) *Builder {
	b.configDelegates = append(b.configDelegates, fn)
	return b
}

// ConfigureServices adds a delegate that registers services. Delegates run in
// the order they were added, so later ones replace what earlier ones registered.
func (b *Builder) ConfigureServices(fn func(Context, *Services)) *Builder {
	b.serviceDelegates = append(b.serviceDelegates, fn)
	return b
}

// Build creates the Host. A Builder can only be built once.
func (b *Builder) Build(ctx context.Context) (_ *Host, err error) {
	ctx, span := o11y.StartSpan(ctx, "host: build")
	defer o11y.End(span, &err)

	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	if b.argErr != nil {
		return nil, fmt.Errorf("host: parse arguments: %w", b.argErr)
	}

	hctx := Context{
		Environment: b.Environment(),
		ContentRoot: b.ContentRoot(),
		Args:        b.args,
	}
	span.AddField("environment", hctx.Environment)
	span.AddField("content_root", hctx.ContentRoot)

	hctx.Config, err = loadConfig(hctx, b.argSettings)
	if err != nil {
		return nil, err
	}
	for _, fn := range b.configDelegates {
		fn(hctx, hctx.Config)
	}

	lifetime := newLifetime()
	sys := system.New()

	s := &Services{}
	AddSingleton(s, context.WithoutCancel(ctx))
	AddSingleton(s, hctx)
	AddSingleton(s, hctx.Config)
	AddSingleton(s, lifetime)
	AddSingleton(s, sys)
	for _, fn := range b.serviceDelegates {
		fn(hctx, s)
	}
	if s.err != nil {
		return nil, s.err
	}

	c, err := s.build()
	if err != nil {
		return nil, err
	}
	span.AddField("services", len(s.descriptors))

	return &Host{
		hctx:      hctx,
		container: c,
		lifetime:  lifetime,
		sys:       sys,
		hosted:    s.hosted,
	}, nil
}
