package main

import (
	"context"
	"errors"
	"log" //nolint:depguard // non-o11y log is allowed for a top-level fatal
	"time"

	"github.com/alecthomas/kong"

	"github.com/circleci/workerhost/config/o11y"
	"github.com/circleci/workerhost/config/secret"
	"github.com/circleci/workerhost/example/calcworker"
	o11ycore "github.com/circleci/workerhost/o11y"
	"github.com/circleci/workerhost/termination"
)

var (
	Version = "dev"
	Date    = "unknown"
)

type cli struct {
	ShutdownDelay time.Duration `env:"SHUTDOWN_DELAY" default:"5s" help:"Delay shutdown by this amount" hidden:""`

	Environment string   `env:"WORKER_ENVIRONMENT" default:"Production" help:"Host environment, selects config.<environment>.yaml"`
	ContentRoot string   `env:"WORKER_CONTENT_ROOT" help:"Directory holding config.yaml, defaults to the working directory"`
	Set         []string `help:"Override a configuration key, as key=value"`

	O11yStatsd           string        `name:"o11y-statsd" env:"O11Y_STATSD" help:"Address to send statsd metrics"`
	O11yHoneycombEnabled bool          `name:"o11y-honeycomb" env:"O11Y_HONEYCOMB" default:"false" help:"Send traces to honeycomb"`
	O11yHoneycombDataset string        `name:"o11y-honeycomb-dataset" env:"O11Y_HONEYCOMB_DATASET" default:"calcworker"`
	O11yHoneycombKey     secret.String `name:"o11y-honeycomb-key" env:"O11Y_HONEYCOMB_KEY"`
	O11yFormat           string        `name:"o11y-format" env:"O11Y_FORMAT" enum:"json,color,text" default:"json" help:"Format used for stderr logging"`
}

func main() {
	err := run(Version, Date)
	if err != nil && !errors.Is(err, termination.ErrTerminated) {
		log.Fatal("Unexpected Error: ", err)
	}
	log.Println("exited 0")
}

func run(version, date string) (err error) {
	c := cli{}
	kong.Parse(&c)

	ctx, o11yCleanup, err := o11y.Setup(context.Background(), o11y.Config{
		Statsd:           c.O11yStatsd,
		HoneycombEnabled: c.O11yHoneycombEnabled,
		HoneycombDataset: c.O11yHoneycombDataset,
		HoneycombKey:     c.O11yHoneycombKey,
		Format:           c.O11yFormat,
		Version:          version,
		Service:          "calcworker",
		StatsNamespace:   "circleci.calcworker.",
		Mode:             "worker",
	})
	if err != nil {
		return err
	}
	defer o11yCleanup(ctx)

	ctx, runSpan := o11ycore.StartSpan(ctx, "main: run")
	defer o11ycore.End(runSpan, &err)

	o11ycore.Log(ctx, "starting calcworker",
		o11ycore.Field("version", version),
		o11ycore.Field("date", date),
	)

	h, err := calcworker.CreateBuilder(c.hostArgs()).Build(ctx)
	if err != nil {
		return err
	}
	return h.Run(ctx, c.ShutdownDelay)
}

// hostArgs passes the host's own flags through to the builder.
func (c cli) hostArgs() []string {
	args := []string{"--environment", c.Environment}
	if c.ContentRoot != "" {
		args = append(args, "--content-root", c.ContentRoot)
	}
	for _, s := range c.Set {
		args = append(args, "--set", s)
	}
	return args
}
