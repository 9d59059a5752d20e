package system

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/circleci/workerhost/o11y"
	"github.com/circleci/workerhost/worker"
)

const metricsInterval = 10 * time.Second

type MetricProducer interface {
	// MetricName The name for this group of metrics
	MetricName() string
	// Gauges are instantaneous name value pairs
	Gauges(context.Context) map[string]float64
}

func traceMetrics(ctx context.Context, producers []MetricProducer) {
	metrics := o11y.FromContext(ctx).MetricsProvider()
	for _, producer := range producers {
		producerName := scrubName(producer.MetricName())
		for f, v := range producer.Gauges(ctx) {
			_ = metrics.Gauge(fmt.Sprintf("gauge.%s.%s", producerName, f), v, []string{}, 1)
		}
	}
}

func scrubName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// metricsReporter returns a func for errgroup.Go that publishes the gauges
// from every producer until ctx is done.
func metricsReporter(ctx context.Context, mps []MetricProducer, gps []GaugeProducer) func() error {
	return func() error {
		worker.Run(ctx, worker.Config{
			Name:          "metric-loop",
			MaxWorkTime:   time.Second,
			NoWorkBackOff: backoff.NewConstantBackOff(metricsInterval),
			WorkFunc: func(ctx context.Context) error {
				traceMetrics(ctx, mps)
				emitGauges(ctx, gps)
				return worker.ErrShouldBackoff
			},
		})
		return nil
	}
}
