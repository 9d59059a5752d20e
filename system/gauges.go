package system

import (
	"context"
	"fmt"

	"github.com/circleci/workerhost/o11y"
)

// GaugeProducer reports gauges that carry their own tags, such as one value
// per registered operation.
type GaugeProducer interface {
	GaugeName() string
	Gauges(context.Context) map[string][]TaggedValue
}

type TaggedValue struct {
	Val  float64
	Tags []string
}

func emitGauges(ctx context.Context, producers []GaugeProducer) {
	metrics := o11y.FromContext(ctx).MetricsProvider()
	for _, producer := range producers {
		producerName := scrubName(producer.GaugeName())
		for f, tvs := range producer.Gauges(ctx) {
			for _, tv := range tvs {
				_ = metrics.Gauge(fmt.Sprintf("gauge.%s.%s", producerName, f), tv.Val, tv.Tags, 1)
			}
		}
	}
}
