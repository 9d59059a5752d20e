package honeycomb

import (
	"fmt"
	"time"

	"github.com/circleci/workerhost/o11y"
)

// metricsHook returns the beeline presend hook that emits the metrics spans
// recorded, and counts the spans ending in an error or a warning. Those
// counts are tagged with the span's operation when it has one, so failing
// operations can be told apart.
func metricsHook(mp o11y.MetricsProvider) func(map[string]any) {
	if mp == nil {
		return func(fields map[string]any) {
			delete(fields, metricsField)
		}
	}

	return func(fields map[string]any) {
		outcomeTags := append([]string{"type:o11y"}, tags([]string{o11y.FieldOperation}, fields)...)
		for _, name := range []string{"error", "warning"} {
			if _, ok := fields[name]; ok {
				_ = mp.Count(name, 1, outcomeTags, 1)
			}
		}

		metrics, _ := fields[metricsField].([]o11y.Metric)
		delete(fields, metricsField)
		for _, m := range metrics {
			emit(mp, m, fields)
		}
	}
}

func emit(mp o11y.MetricsProvider, m o11y.Metric, fields map[string]any) {
	t := tags(m.TagFields, fields)
	switch m.Type {
	case o11y.MetricCount:
		_ = mp.Count(m.Name, 1, t, 1)
	case o11y.MetricTimer:
		if v, ok := milliseconds(field(m.Field, fields)); ok {
			_ = mp.TimeInMilliseconds(m.Name, v, t, 1)
		}
	case o11y.MetricGauge:
		if v, ok := number(field(m.Field, fields)); ok {
			_ = mp.Gauge(m.Name, v, t, 1)
		}
	}
}

// tags renders the named fields as name:value, skipping any not set.
func tags(names []string, fields map[string]any) []string {
	t := make([]string, 0, len(names))
	for _, name := range names {
		if v := field(name, fields); v != nil {
			t = append(t, fmt.Sprintf("%s:%v", name, v))
		}
	}
	return t
}

// field looks name up as a raw field, then as an application field.
func field(name string, fields map[string]any) any {
	if v, ok := fields[name]; ok {
		return v
	}
	return fields["app."+name]
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func milliseconds(v any) (float64, bool) {
	if d, ok := v.(time.Duration); ok {
		return float64(d.Milliseconds()), true
	}
	return number(v)
}
