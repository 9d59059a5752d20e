// Package fakestatsd is a UDP listener that records the statsd lines it receives.
package fakestatsd

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"
)

// Metric is one received statsd line, such as
// worker.bus.handle:1.5|ms|#operation:Plus,result:success.
type Metric struct {
	Name string
	// Value is the number as sent.
	Value string
	// Type is the statsd type: c, g, ms, h and so on.
	Type string
	Tags []string
}

type FakeStatsd struct {
	conn *net.UDPConn

	mu      sync.RWMutex
	metrics []Metric
}

// New listens on a free local port until the test ends.
func New(t testing.TB) *FakeStatsd {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	assert.Assert(t, err)

	s := &FakeStatsd{conn: conn}
	go s.listen()
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return s
}

func (s *FakeStatsd) Addr() string {
	return s.conn.LocalAddr().String()
}

func (s *FakeStatsd) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.metrics)
}

// Named returns the received metrics called name.
func (s *FakeStatsd) Named(name string) []Metric {
	return s.matching(name, nil)
}

// WaitFor polls until a metric called name carrying all of tags arrives, and
// returns the first such metric.
func (s *FakeStatsd) WaitFor(t poll.TestingT, name string, tags ...string) Metric {
	var found Metric
	poll.WaitOn(t, func(t poll.LogT) poll.Result {
		if m := s.matching(name, tags); len(m) > 0 {
			found = m[0]
			return poll.Success()
		}
		return poll.Continue("no %s metric tagged %v received yet", name, tags)
	}, poll.WithTimeout(5*time.Second))
	return found
}

func (s *FakeStatsd) matching(name string, tags []string) []Metric {
	var found []Metric
	for _, m := range s.Metrics() {
		if m.Name == name && hasTags(m, tags) {
			found = append(found, m)
		}
	}
	return found
}

func hasTags(m Metric, tags []string) bool {
	for _, t := range tags {
		if !slices.Contains(m.Tags, t) {
			return false
		}
	}
	return true
}

func (s *FakeStatsd) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = nil
}

func (s *FakeStatsd) listen() {
	buf := make([]byte, 64*1024)
	for {
		n, err := s.conn.Read(buf)
		if errors.Is(err, net.ErrClosed) {
			return
		}
		lines := bufio.NewScanner(bytes.NewReader(buf[:n]))
		for lines.Scan() {
			if line := strings.TrimSpace(lines.Text()); line != "" {
				s.record(parse(line))
			}
		}
	}
}

func (s *FakeStatsd) record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

// parse reads name:value|type[|@rate][|#tag,...].
func parse(line string) Metric {
	name, rest, _ := strings.Cut(line, ":")
	m := Metric{Name: name}
	for i, part := range strings.Split(rest, "|") {
		switch {
		case i == 0:
			m.Value = part
		case i == 1:
			m.Type = part
		case strings.HasPrefix(part, "#"):
			m.Tags = strings.Split(part[1:], ",")
		}
	}
	return m
}
