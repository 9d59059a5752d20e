// Package o11y sets up the observability stack for worker processes and tests.
package o11y

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/circleci/workerhost/config/secret"
	"github.com/circleci/workerhost/o11y"
	"github.com/circleci/workerhost/o11y/honeycomb"
)

type Config struct {
	// Statsd is the agent address. Empty disables metrics.
	Statsd           string
	HoneycombEnabled bool
	HoneycombDataset string
	HoneycombKey     secret.String
	// Format of the local trace output: json, text, colour or none.
	Format string
	// Writer receives the local trace output. Nil means stderr.
	Writer         io.Writer
	Version        string
	Service        string
	StatsNamespace string

	// Mode tells apart processes of one service, such as worker and migrator.
	Mode                    string
	Debug                   bool
	StatsdTelemetryDisabled bool
}

// Setup builds the provider described by o and returns ctx carrying it, with
// the func that flushes and closes it. Tests that start many workers should
// share one provider through Shared instead.
func Setup(ctx context.Context, o Config) (context.Context, func(context.Context), error) {
	conf := o.honeycomb()
	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}

	metrics, err := o.metrics()
	if err != nil {
		return nil, nil, err
	}
	conf.Metrics = metrics

	provider := honeycomb.New(conf)
	for key, val := range o.globalFields() {
		provider.AddGlobalField(key, val)
	}
	return o11y.WithProvider(ctx, provider), provider.Close, nil
}

func (o Config) globalFields() map[string]string {
	fields := map[string]string{
		"service": o.Service,
		"version": o.Version,
	}
	if o.Mode != "" {
		fields["mode"] = o.Mode
	}
	return fields
}

func (o Config) honeycomb() honeycomb.Config {
	return honeycomb.Config{
		Dataset:     o.HoneycombDataset,
		Key:         o.HoneycombKey.Raw(),
		Format:      o.Format,
		Writer:      o.Writer,
		SendTraces:  o.HoneycombEnabled,
		ServiceName: o.Service,
		Debug:       o.Debug,
	}
}

func (o Config) metrics() (o11y.ClosableMetricsProvider, error) {
	if o.Statsd == "" {
		return &statsd.NoOpClient{}, nil
	}

	hostname, _ := os.Hostname()
	tags := []string{"hostname:" + hostname}
	for key, val := range o.globalFields() {
		tags = append(tags, key+":"+val)
	}
	sort.Strings(tags)

	opts := []statsd.Option{
		statsd.WithNamespace(o.StatsNamespace),
		statsd.WithTags(tags),
	}
	if o.StatsdTelemetryDisabled {
		opts = append(opts, statsd.WithoutTelemetry())
	}
	return statsd.New(o.Statsd, opts...)
}
