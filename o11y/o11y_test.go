package o11y

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestFromContext(t *testing.T) {
	t.Run("Without a provider", func(t *testing.T) {
		assert.Check(t, cmp.Equal(FromContext(context.Background()), defaultProvider))
	})

	t.Run("With a provider", func(t *testing.T) {
		p := newRecordingProvider()
		ctx := WithProvider(context.Background(), p)
		assert.Check(t, FromContext(ctx) == Provider(p))
	})
}

func TestHelpers_WithoutProvider(t *testing.T) {
	ctx := context.Background()

	Log(ctx, "calcworker: registered", Field("operation", "Plus"))
	LogError(ctx, "calcworker: failed", errors.New("oops"), Field("operation", "Plus"))
	AddField(ctx, "left", 2)
	AddFieldToTrace(ctx, "worker", "calcworker")

	nCtx, span := StartSpan(ctx, "bus: handle Plus")
	assert.Check(t, span != nil)
	assert.Check(t, cmp.Equal(ctx, nCtx), "the context should be returned unchanged")
	span.End()
}

func TestLogError(t *testing.T) {
	p := newRecordingProvider()
	ctx := WithProvider(context.Background(), p)

	LogError(ctx, "rabbit: ack failed", errors.New("channel closed"), Field("operation", "Plus"))

	assert.Assert(t, cmp.Len(p.spans, 1))
	s := p.spans[0]
	assert.Check(t, cmp.Equal("rabbit: ack failed", s.name))
	assert.Check(t, cmp.Equal("Plus", s.fields["app.operation"]))
	assert.Check(t, cmp.Equal(ResultError, s.fields["result"]))
	assert.Check(t, cmp.Equal("channel closed", s.fields["error"]))
	assert.Check(t, s.ended)
}

func TestHandlePanic(t *testing.T) {
	span := newRecordingSpan("bus: handle Plus")
	var err error
	func() {
		defer func() {
			err = HandlePanic(context.Background(), span, recover())
		}()
		panic("oh no")
	}()

	assert.Check(t, cmp.Error(err, "panic handled: oh no"))
	assert.Check(t, cmp.Equal("oh no", span.fields["panic"]))
	assert.Check(t, cmp.Equal("true", span.fields["has_panicked"]))
	assert.Check(t, cmp.DeepEqual([]Metric{Incr("panics", "name", "operation")}, span.metrics))
}

func TestAddResultToSpan(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		result  string
		error   string
		warning string
	}{
		{
			name:   "success",
			result: "success",
		},
		{
			name:   "error",
			err:    errors.New("division by zero"),
			result: "error",
			error:  "division by zero",
		},
		{
			name:    "warning",
			err:     NewWarning("no reply queue"),
			result:  "success",
			warning: "no reply queue",
		},
		{
			name:    "wrapped warning",
			err:     fmt.Errorf("reply: %w", NewWarning("no reply queue")),
			result:  "success",
			warning: "reply: no reply queue",
		},
		{
			name:    "canceled",
			err:     context.Canceled,
			result:  "canceled",
			warning: "context canceled",
		},
		{
			name:    "wrapped deadline",
			err:     fmt.Errorf("call: %w", context.DeadlineExceeded),
			result:  "canceled",
			warning: "call: context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := newRecordingSpan("span")
			AddResultToSpan(span, tt.err)
			for key, want := range map[string]string{"result": tt.result, "error": tt.error, "warning": tt.warning} {
				got, ok := span.fields[key]
				if want == "" {
					assert.Check(t, !ok, "%s should not be set", key)
					continue
				}
				assert.Check(t, cmp.Equal(want, got), key)
			}
		})
	}
}

func TestEnd(t *testing.T) {
	t.Run("Records the final error", func(t *testing.T) {
		span := newRecordingSpan("span")
		err := errors.New("first")
		func() {
			defer End(span, &err)
			err = errors.New("last")
		}()
		assert.Check(t, cmp.Equal("last", span.fields["error"]))
		assert.Check(t, span.ended)
	})

	t.Run("Nil pointer is a success", func(t *testing.T) {
		span := newRecordingSpan("span")
		End(span, nil)
		assert.Check(t, cmp.Equal("success", span.fields["result"]))
	})
}

type recordingProvider struct {
	Provider
	spans []*recordingSpan
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{Provider: defaultProvider}
}

func (p *recordingProvider) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	s := newRecordingSpan(name)
	p.spans = append(p.spans, s)
	return ctx, s
}

type recordingSpan struct {
	name    string
	fields  map[string]any
	metrics []Metric
	ended   bool
}

func newRecordingSpan(name string) *recordingSpan {
	return &recordingSpan{name: name, fields: map[string]any{}}
}

func (s *recordingSpan) AddField(key string, val any)    { s.fields["app."+key] = val }
func (s *recordingSpan) AddRawField(key string, val any) { s.fields[key] = val }
func (s *recordingSpan) RecordMetric(m Metric)           { s.metrics = append(s.metrics, m) }
func (s *recordingSpan) End()                            { s.ended = true }
