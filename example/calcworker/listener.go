package calcworker

import (
	"context"

	"github.com/circleci/workerhost/bus"
	"github.com/circleci/workerhost/host"
	"github.com/circleci/workerhost/o11y"
)

const (
	PlusOperation  = "Plus"
	MinusOperation = "Minus"
)

type RequestMessage struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

type ResponseMessage struct {
	Result int `json:"result"`
}

// QueueListener registers the calculator operations once the host has
// started, and cancels them when it stops.
type QueueListener struct {
	bus           bus.Bus
	registrations bus.Registrations
}

func NewQueueListener(b bus.Bus, lifetime *host.Lifetime) *QueueListener {
	l := &QueueListener{bus: b}
	lifetime.OnStarted(l.register)
	return l
}

func (l *QueueListener) register(ctx context.Context) {
	l.registrations.Add(bus.Register(l.bus, PlusOperation, bus.Handler[RequestMessage, ResponseMessage](plus)))
	l.registrations.Add(bus.Register(l.bus, MinusOperation, bus.Handler[RequestMessage, ResponseMessage](minus)))
	o11y.Log(ctx, "calcworker: operations registered",
		o11y.Field("registrations", l.registrations.Len()),
	)
}

func (l *QueueListener) Start(context.Context) error {
	return nil
}

func (l *QueueListener) Stop(ctx context.Context) error {
	o11y.Log(ctx, "calcworker: cancelling operations",
		o11y.Field("registrations", l.registrations.Len()),
	)
	l.registrations.CancelAll()
	return nil
}

func plus(ctx context.Context, req RequestMessage) (ResponseMessage, error) {
	o11y.AddField(ctx, "left", req.Left)
	o11y.AddField(ctx, "right", req.Right)
	return ResponseMessage{Result: req.Left + req.Right}, nil
}

func minus(ctx context.Context, req RequestMessage) (ResponseMessage, error) {
	o11y.AddField(ctx, "left", req.Left)
	o11y.AddField(ctx, "right", req.Right)
	return ResponseMessage{Result: req.Left - req.Right}, nil
}
