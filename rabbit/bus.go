package rabbit

import (
	"context"
	"sort"
	"sync"

	"github.com/makasim/amqpextra"
	"github.com/makasim/amqpextra/consumer"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/circleci/workerhost/bus"
	"github.com/circleci/workerhost/o11y"
	"github.com/circleci/workerhost/system"
)

// Bus is a bus.Bus backed by RabbitMQ.
type Bus struct {
	ctx      context.Context
	dialer   *amqpextra.Dialer
	replies  *Replies
	exchange string
	prefetch int

	mu        sync.Mutex
	consumers map[*bus.Registration]*operationConsumer
	closed    bool
}

type operationConsumer struct {
	operation string
	consumer  *consumer.Consumer
	once      sync.Once
}

func (c *operationConsumer) close() {
	c.once.Do(c.consumer.Close)
}

var _ bus.Bus = (*Bus)(nil)

// ErrBusClosed is the warning recorded for registrations made after Close.
var ErrBusClosed = o11y.NewWarning("rabbit: bus is closed")

func NewBus(ctx context.Context, dialer *amqpextra.Dialer, replies *Replies, cfg Config) *Bus {
	return &Bus{
		ctx:       ctx,
		dialer:    dialer,
		replies:   replies,
		exchange:  cfg.Exchange,
		prefetch:  cfg.Prefetch,
		consumers: map[*bus.Registration]*operationConsumer{},
	}
}

// RegisterOperation starts consuming requests for name. If the consumer
// cannot be created the failure is logged and the returned Registration is
// already cancelled.
func (b *Bus) RegisterOperation(name string, endpoint bus.Endpoint) *bus.Registration {
	ctx, span := o11y.StartOperation(b.ctx, o11y.StepRegister, name)
	var err error
	defer o11y.End(span, &err)
	span.AddField("request_type", endpoint.RequestType())
	span.AddField("response_type", endpoint.ResponseType())

	reg := bus.NewRegistration(name)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		err = ErrBusClosed
		reg.Cancel()
		return reg
	}
	b.mu.Unlock()

	c, err := b.dialer.Consumer(
		consumer.WithContext(b.ctx),
		consumer.WithQueue(name),
		consumer.WithInitFunc(b.declare(name)),
		consumer.WithHandler(b.handler(name, endpoint)),
	)
	if err != nil {
		reg.Cancel()
		return reg
	}

	oc := &operationConsumer{operation: name, consumer: c}
	b.mu.Lock()
	b.consumers[reg] = oc
	b.mu.Unlock()

	reg.OnCancel(func() {
		b.mu.Lock()
		delete(b.consumers, reg)
		b.mu.Unlock()
		oc.close()
		o11y.Log(ctx, "rabbit: operation cancelled", o11y.Field(o11y.FieldOperation, name))
	})
	return reg
}

// declare makes sure the operation's queue exists each time the consumer connects.
func (b *Bus) declare(queue string) func(consumer.AMQPConnection) (consumer.AMQPChannel, error) {
	return func(conn consumer.AMQPConnection) (consumer.AMQPChannel, error) {
		ch, err := conn.(*amqp.Connection).Channel()
		if err != nil {
			return nil, err
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return nil, err
		}
		if b.exchange != "" {
			if err := ch.QueueBind(queue, queue, b.exchange, false, nil); err != nil {
				return nil, err
			}
		}
		if b.prefetch > 0 {
			if err := ch.Qos(b.prefetch, 0, false); err != nil {
				return nil, err
			}
		}
		return ch, nil
	}
}

func (b *Bus) handler(name string, endpoint bus.Endpoint) consumer.Handler {
	return consumer.HandlerFunc(func(ctx context.Context, msg amqp.Delivery) interface{} {
		ctx = o11y.WithProvider(ctx, o11y.FromContext(b.ctx))
		ctx, span := o11y.StartOperation(ctx, o11y.StepHandle, name)
		var err error
		defer o11y.End(span, &err)
		span.AddField(o11y.FieldCorrelationID, msg.CorrelationId)

		body, err := serve(ctx, span, endpoint, msg.Body)
		// The reply span records its own failure; the request is acked regardless
		// so a caller that went away cannot block the queue.
		_ = b.replies.Reply(ctx, name, msg, body, err)

		if ackErr := msg.Ack(false); ackErr != nil {
			o11y.LogError(ctx, "rabbit: ack failed", ackErr, o11y.Field(o11y.FieldOperation, name))
		}
		return nil
	})
}

func serve(ctx context.Context, span o11y.Span, endpoint bus.Endpoint, body []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = o11y.HandlePanic(ctx, span, r)
		}
	}()
	return endpoint.ServeJSON(ctx, body)
}

// Close stops every consumer. Registrations made afterwards are cancelled straight away.
func (b *Bus) Close(ctx context.Context) (err error) {
	_, span := o11y.StartSpan(ctx, "rabbit: close bus")
	defer o11y.End(span, &err)

	b.mu.Lock()
	b.closed = true
	consumers := b.consumers
	b.consumers = map[*bus.Registration]*operationConsumer{}
	b.mu.Unlock()

	span.AddField("consumers", len(consumers))
	for reg, c := range consumers {
		c.close()
		reg.Cancel()
	}
	return nil
}

// Operations lists the names with at least one active registration.
func (b *Bus) Operations() []string {
	counts := b.counts()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bus) counts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := map[string]int{}
	for _, c := range b.consumers {
		counts[c.operation]++
	}
	return counts
}

func (b *Bus) GaugeName() string {
	return "rabbit-bus"
}

func (b *Bus) Gauges(context.Context) map[string][]system.TaggedValue {
	var values []system.TaggedValue
	for name, n := range b.counts() {
		values = append(values, system.TaggedValue{Val: float64(n), Tags: []string{"operation:" + name}})
	}
	return map[string][]system.TaggedValue{"registrations": values}
}
