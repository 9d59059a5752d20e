// Package fakemetrics is an o11y.MetricsProvider that remembers what it was
// sent, for tests asserting on the metrics a worker emits.
package fakemetrics

import (
	"fmt"
	"slices"
	"sync"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type MetricCall struct {
	Metric   string
	Name     string
	Value    float64
	ValueInt int64
	Tags     []string
	Rate     float64
}

func (c MetricCall) String() string {
	return fmt.Sprintf("%s|%s|%v", c.Metric, c.Name, c.Tags)
}

// CMPMetrics compares calls in any order, with timings compared loosely.
var CMPMetrics = gocmp.Options{
	cmpopts.EquateApprox(0, 10),
	cmpopts.EquateEmpty(),
	cmpopts.SortSlices(func(x, y MetricCall) bool {
		return x.String() < y.String()
	}),
}

type Provider struct {
	mu     sync.RWMutex
	calls  []MetricCall
	closed bool
}

func (p *Provider) Calls() []MetricCall {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.calls)
}

// Of returns the calls of one metric type, such as "gauge".
func (p *Provider) Of(metric string) []MetricCall {
	return p.filter(func(c MetricCall) bool { return c.Metric == metric })
}

// Named returns the calls for any of names, in the order they were made.
func (p *Provider) Named(names ...string) []MetricCall {
	return p.filter(func(c MetricCall) bool { return slices.Contains(names, c.Name) })
}

// ForOperation returns the calls tagged with the bus operation op.
func (p *Provider) ForOperation(op string) []MetricCall {
	return p.filter(func(c MetricCall) bool { return slices.Contains(c.Tags, "operation:"+op) })
}

func (p *Provider) filter(keep func(MetricCall) bool) []MetricCall {
	var calls []MetricCall
	for _, c := range p.Calls() {
		if keep(c) {
			calls = append(calls, c)
		}
	}
	return calls
}

func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

func (p *Provider) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *Provider) record(c MetricCall) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
	return nil
}

func (p *Provider) TimeInMilliseconds(name string, value float64, tags []string, rate float64) error {
	return p.record(MetricCall{Metric: "timer", Name: name, Value: value, Tags: tags, Rate: rate})
}

func (p *Provider) Gauge(name string, value float64, tags []string, rate float64) error {
	return p.record(MetricCall{Metric: "gauge", Name: name, Value: value, Tags: tags, Rate: rate})
}

func (p *Provider) Count(name string, value int64, tags []string, rate float64) error {
	return p.record(MetricCall{Metric: "count", Name: name, ValueInt: value, Tags: tags, Rate: rate})
}

func (p *Provider) Histogram(name string, value float64, tags []string, rate float64) error {
	return p.record(MetricCall{Metric: "histogram", Name: name, Value: value, Tags: tags, Rate: rate})
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
