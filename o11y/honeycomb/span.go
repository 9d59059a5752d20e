package honeycomb

import (
	"fmt"
	"strings"

	"github.com/honeycombio/beeline-go/trace"

	"github.com/circleci/workerhost/o11y"
)

// metricsField carries the span's recorded metrics to metricsHook, which
// removes it before the event is sent.
const metricsField = "__o11y_metrics__"

type span struct {
	span    *trace.Span
	metrics []o11y.Metric
}

func (s *span) AddField(key string, val any) {
	s.AddRawField("app."+key, val)
}

func (s *span) AddRawField(key string, val any) {
	mustValidateKey(key)
	if err, ok := val.(error); ok {
		val = err.Error()
	}
	s.span.AddField(key, val)
}

func (s *span) RecordMetric(m o11y.Metric) {
	s.metrics = append(s.metrics, m)
	s.span.AddField(metricsField, s.metrics)
}

func (s *span) End() {
	s.span.Send()
}

// mustValidateKey rejects keys that would not survive as statsd tag names.
func mustValidateKey(key string) {
	if strings.Contains(key, "-") {
		panic(fmt.Errorf("key %q cannot contain '-'", key))
	}
}
