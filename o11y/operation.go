package o11y

import "context"

// Fields shared by every bus implementation, so traces and metrics from
// different backends line up.
const (
	FieldOperation     = "operation"
	FieldCorrelationID = "correlation_id"
	FieldResult        = "result"
)

// Step is a stage in the life of a bus operation.
type Step string

const (
	StepRegister Step = "register"
	StepHandle   Step = "handle"
	StepCall     Step = "call"
	StepReply    Step = "reply"
)

// MetricName is the timer the step records, such as bus.handle.
func (s Step) MetricName() string {
	return "bus." + string(s)
}

// StartOperation starts the span for one step of operation, named like
// "bus: handle Plus". The span carries the operation field and times itself
// as the step's metric, tagged with the operation and the result.
func StartOperation(ctx context.Context, step Step, operation string) (context.Context, Span) {
	ctx, span := StartSpan(ctx, "bus: "+string(step)+" "+operation)
	span.AddField(FieldOperation, operation)
	span.RecordMetric(Timing(step.MetricName(), FieldOperation, FieldResult))
	return ctx, span
}
