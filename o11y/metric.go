package o11y

import "io"

type MetricType string

const (
	MetricTimer MetricType = "timer"
	MetricGauge MetricType = "gauge"
	MetricCount MetricType = "count"
)

// Metric describes a value taken from a span's fields when it ends.
type Metric struct {
	Type MetricType
	Name string
	// Field holds the value for timers and gauges. Counters always add one.
	Field string
	// TagFields are span fields sent as name:value tags, in this order. Fields
	// missing from the span are left out.
	TagFields []string
}

// Timing records the span's duration.
func Timing(name string, tagFields ...string) Metric {
	return Metric{Type: MetricTimer, Name: name, Field: "duration_ms", TagFields: tagFields}
}

// Incr counts the span.
func Incr(name string, tagFields ...string) Metric {
	return Metric{Type: MetricCount, Name: name, TagFields: tagFields}
}

// Gauge records the numeric span field valueField.
func Gauge(name, valueField string, tagFields ...string) Metric {
	return Metric{Type: MetricGauge, Name: name, Field: valueField, TagFields: tagFields}
}

// MetricsProvider is the subset of the statsd client the host uses.
type MetricsProvider interface {
	Histogram(name string, value float64, tags []string, rate float64) error
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
}

type ClosableMetricsProvider interface {
	MetricsProvider
	io.Closer
}
