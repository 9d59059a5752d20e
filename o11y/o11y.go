// Package o11y traces the work a worker host does. Spans carry structured
// fields, may record metrics when they end, and are logged by whichever
// Provider the context holds. Without a provider everything is a no-op.
package o11y

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// Provider is a tracing backend.
type Provider interface {
	// AddGlobalField sets a field on every span the provider sends, for
	// example the service name or its version.
	AddGlobalField(key string, val any)

	// StartSpan opens a span as a child of the span in ctx, or as the root of
	// a new trace. Callers must End it:
	//
	//	ctx, span := o11y.StartSpan(ctx, "host: start")
	//	defer o11y.End(span, &err)
	StartSpan(ctx context.Context, name string) (context.Context, Span)

	// AddField sets an application field, prefixed "app.", on the span in ctx.
	AddField(ctx context.Context, key string, val any)

	// AddFieldToTrace sets an application field on the root span, from where
	// it is copied to every span of the trace.
	AddFieldToTrace(ctx context.Context, key string, val any)

	// Log sends a span with no duration.
	Log(ctx context.Context, name string, fields ...Pair)

	// MetricsProvider exposes the metrics client directly, for values that do
	// not belong to a span such as periodic gauges.
	MetricsProvider() MetricsProvider

	Close(ctx context.Context)
}

// Span is one unit of traced work.
type Span interface {
	// AddField sets an application field, prefixed "app.".
	AddField(key string, val any)

	// AddRawField sets a field without the prefix. It is meant for the
	// plumbing fields such as result, error and warning.
	AddRawField(key string, val any)

	// RecordMetric asks the provider to emit metric once the span ends.
	RecordMetric(metric Metric)

	// End completes the span. It must not be used afterwards.
	End()
}

type providerKey struct{}

// WithProvider returns a context whose spans are sent to p.
func WithProvider(ctx context.Context, p Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

// FromContext returns the provider held by ctx, or a no-op provider.
func FromContext(ctx context.Context) Provider {
	if p, ok := ctx.Value(providerKey{}).(Provider); ok {
		return p
	}
	return defaultProvider
}

func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return FromContext(ctx).StartSpan(ctx, name)
}

func AddField(ctx context.Context, key string, val any) {
	FromContext(ctx).AddField(ctx, key, val)
}

func AddFieldToTrace(ctx context.Context, key string, val any) {
	FromContext(ctx).AddFieldToTrace(ctx, key, val)
}

func Log(ctx context.Context, name string, fields ...Pair) {
	FromContext(ctx).Log(ctx, name, fields...)
}

// LogError is Log for a failure: the span carries err the same way End would
// record it.
func LogError(ctx context.Context, name string, err error, fields ...Pair) {
	_, span := StartSpan(ctx, name)
	for _, f := range fields {
		span.AddField(f.Key, f.Value)
	}
	AddResultToSpan(span, err)
	span.End()
}

// End records the outcome held by *err on span and ends it. Taking a pointer
// lets it be deferred straight after StartSpan against a named error result:
//
//	func (b *Bus) Close(ctx context.Context) (err error) {
//		ctx, span := o11y.StartSpan(ctx, "rabbit: close bus")
//		defer o11y.End(span, &err)
func End(span Span, err *error) {
	var outcome error
	if err != nil {
		outcome = *err
	}
	AddResultToSpan(span, outcome)
	span.End()
}

// Result values.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultCanceled = "canceled"
)

// AddResultToSpan sets the result field from err. Warnings and cancellation
// are reported in the warning field so they are not counted as errors.
func AddResultToSpan(span Span, err error) {
	switch {
	case err == nil:
		span.AddRawField(FieldResult, ResultSuccess)
	case IsWarning(err):
		span.AddRawField(FieldResult, ResultSuccess)
		span.AddRawField("warning", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		span.AddRawField(FieldResult, ResultCanceled)
		span.AddRawField("warning", err.Error())
	default:
		span.AddRawField(FieldResult, ResultError)
		span.AddRawField("error", err.Error())
	}
}

// Pair is one field passed to Log.
type Pair struct {
	Key   string
	Value any
}

func Field(key string, value any) Pair {
	return Pair{Key: key, Value: value}
}

// HandlePanic turns a value recovered from a panic into an error, recording
// it and the stack on span. The panics counter is tagged with the span's
// name and operation.
func HandlePanic(_ context.Context, span Span, recovered any) error {
	span.AddRawField("panic", recovered)
	span.AddRawField("has_panicked", "true")
	span.AddRawField("stack", string(debug.Stack()))
	span.RecordMetric(Incr("panics", "name", FieldOperation))
	return fmt.Errorf("panic handled: %+v", recovered)
}
