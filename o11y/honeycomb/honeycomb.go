// Package honeycomb is an o11y.Provider built on the Honeycomb beeline. Spans
// are written locally in the configured format and, when enabled, sent to
// Honeycomb. Metrics recorded on spans go to the configured metrics client.
package honeycomb

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/honeycombio/beeline-go"
	"github.com/honeycombio/beeline-go/client"
	"github.com/honeycombio/beeline-go/trace"
	"github.com/honeycombio/libhoney-go"
	"github.com/honeycombio/libhoney-go/transmission"

	"github.com/circleci/workerhost/o11y"
)

type Config struct {
	Host    string
	Dataset string
	Key     string
	// SendTraces sends spans to Honeycomb as well as writing them locally.
	SendTraces bool
	// Sender replaces the Honeycomb API sender, in tests for instance.
	Sender transmission.Sender

	// Format of the local output: json (the default), text, colour or none.
	Format string
	// Writer receives the local output. Nil means stderr.
	Writer io.Writer

	Metrics     o11y.ClosableMetricsProvider
	ServiceName string
	Debug       bool
}

func (c *Config) Validate() error {
	if c.SendTraces && c.Key == "" && c.Sender == nil {
		return errors.New("honeycomb_key key required for honeycomb")
	}
	return nil
}

func (c *Config) local() transmission.Sender {
	w := c.Writer
	if w == nil {
		w = os.Stderr
	}
	switch c.Format {
	case "none":
		return nil
	case "text":
		return &TextSender{w: w}
	case "colour", "color":
		return &TextSender{w: w, colour: true}
	default:
		return &transmission.WriterSender{W: w}
	}
}

func (c *Config) remote() transmission.Sender {
	switch {
	case !c.SendTraces:
		return nil
	case c.Sender != nil:
		return c.Sender
	}
	return &transmission.Honeycomb{
		MaxBatchSize:         libhoney.DefaultMaxBatchSize,
		BatchTimeout:         libhoney.DefaultBatchTimeout,
		MaxConcurrentBatches: libhoney.DefaultMaxConcurrentBatches,
		PendingWorkCapacity:  libhoney.DefaultPendingWorkCapacity,
		UserAgentAddition:    c.ServiceName,
	}
}

func (c *Config) sender() *MultiSender {
	s := &MultiSender{}
	for _, tx := range []transmission.Sender{c.remote(), c.local()} {
		if tx != nil {
			s.Senders = append(s.Senders, tx)
		}
	}
	return s
}

type provider struct {
	metrics o11y.ClosableMetricsProvider
}

// New initialises the beeline and returns a provider using it. The beeline is
// global, so the provider from the latest call is the one in effect.
func New(conf Config) o11y.Provider {
	// beeline.Init ignores this error too; a bad config shows up as events
	// failing to send.
	c, _ := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:       conf.Key,
		Dataset:      conf.Dataset,
		APIHost:      conf.Host,
		Transmission: conf.sender(),
	})

	beeline.Init(beeline.Config{
		Client:      c,
		Debug:       conf.Debug,
		WriteKey:    conf.Key,
		ServiceName: conf.ServiceName,
		PresendHook: metricsHook(conf.Metrics),
	})
	return &provider{metrics: conf.Metrics}
}

func (p *provider) AddGlobalField(key string, val any) {
	mustValidateKey(key)
	client.AddField(key, val)
}

func (p *provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	var s *trace.Span
	if parent := trace.GetSpanFromContext(ctx); parent != nil {
		ctx, s = parent.CreateChild(ctx)
	} else {
		// The new trace's root span is the span we return.
		ctx, _ = trace.NewTrace(ctx, nil)
		s = trace.GetSpanFromContext(ctx)
	}
	s.AddField("name", name)
	return ctx, &span{span: s}
}

func (p *provider) AddField(ctx context.Context, key string, val any) {
	mustValidateKey(key)
	beeline.AddField(ctx, key, val)
}

func (p *provider) AddFieldToTrace(ctx context.Context, key string, val any) {
	mustValidateKey(key)
	beeline.AddFieldToTrace(ctx, key, val)
}

func (p *provider) Log(ctx context.Context, name string, fields ...o11y.Pair) {
	_, s := p.StartSpan(ctx, name)
	for _, f := range fields {
		s.AddField(f.Key, f.Value)
	}
	s.End()
}

func (p *provider) MetricsProvider() o11y.MetricsProvider {
	if p.metrics == nil {
		return noopMetrics{}
	}
	return p.metrics
}

// Close flushes the beeline then closes the metrics client.
func (p *provider) Close(context.Context) {
	beeline.Close()
	if p.metrics != nil {
		_ = p.metrics.Close()
	}
}

type noopMetrics struct{}

func (noopMetrics) Histogram(string, float64, []string, float64) error          { return nil }
func (noopMetrics) TimeInMilliseconds(string, float64, []string, float64) error { return nil }
func (noopMetrics) Gauge(string, float64, []string, float64) error              { return nil }
func (noopMetrics) Count(string, int64, []string, float64) error                { return nil }
