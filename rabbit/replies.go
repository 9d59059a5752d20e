package rabbit

import (
	"context"
	"encoding/json"
	"errors"

	pool "github.com/jolestar/go-commons-pool/v2"
	"github.com/makasim/amqpextra"
	"github.com/makasim/amqpextra/publisher"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/circleci/workerhost/o11y"
)

const (
	JSON = "application/json; charset=utf-8"

	// errorHeader carries a handler's error message back to the caller.
	errorHeader = "x-error"

	maxRepliers = 16
)

// errNoReplyQueue is returned for requests sent without a reply queue; the
// caller does not want an answer.
var errNoReplyQueue = o11y.NewWarning("rabbit: request has no reply queue")

// Replies answers operation requests. Replies are published to the caller's
// reply queue through a pool of confirming publishers, shared by every
// operation the bus consumes. A reply the broker cannot route, because the
// caller has gone away, is logged with its correlation ID.
type Replies struct {
	publishers *pool.ObjectPool
	name       string
}

func NewReplies(ctx context.Context, name string, dialer *amqpextra.Dialer) *Replies {
	opts := []publisher.Option{
		publisher.WithConfirmation(10),
		publisher.WithInitFunc(func(conn publisher.AMQPConnection) (publisher.AMQPChannel, error) {
			ch, err := conn.(*amqp.Connection).Channel()
			if err != nil {
				return nil, err
			}
			ch.NotifyReturn(logUnroutable(ctx))
			return ch, nil
		}),
	}

	factory := pool.NewPooledObjectFactory(
		func(context.Context) (interface{}, error) {
			return dialer.Publisher(opts...)
		},
		func(_ context.Context, o *pool.PooledObject) error {
			o.Object.(*publisher.Publisher).Close()
			return nil
		},
		nil, nil, nil,
	)
	conf := pool.NewDefaultPoolConfig()
	conf.MaxTotal = maxRepliers
	conf.MaxIdle = maxRepliers

	return &Replies{
		name:       name,
		publishers: pool.NewObjectPool(context.Background(), factory, conf),
	}
}

// Reply sends the outcome of handling req for operation. A handler error
// travels in the error header, with a JSON body describing it.
func (r *Replies) Reply(ctx context.Context, operation string, req amqp.Delivery, body []byte,
	handlerErr error) (err error) {

	ctx, span := o11y.StartOperation(ctx, o11y.StepReply, operation)
	defer o11y.End(span, &err)
	span.AddField(o11y.FieldCorrelationID, req.CorrelationId)
	span.AddField("handler_failed", handlerErr != nil)

	if req.ReplyTo == "" {
		return errNoReplyQueue
	}
	return r.publish(ctx, replyMessage(req, body, handlerErr))
}

type errorBody struct {
	Error string `json:"error"`
}

func replyMessage(req amqp.Delivery, body []byte, handlerErr error) publisher.Message {
	p := amqp.Publishing{
		ContentType:   JSON,
		CorrelationId: req.CorrelationId,
		Body:          body,
	}
	if handlerErr != nil {
		p.Headers = amqp.Table{errorHeader: handlerErr.Error()}
		p.Body, _ = json.Marshal(errorBody{Error: handlerErr.Error()})
	}
	// Reply queues are bound to the default exchange by name.
	return publisher.Message{Key: req.ReplyTo, Publishing: p}
}

func (r *Replies) publish(ctx context.Context, msg publisher.Message) error {
	msg.Mandatory = true
	msg.Context = ctx

	obj, err := r.publishers.BorrowObject(ctx)
	if err != nil {
		return err
	}
	pub := obj.(*publisher.Publisher)
	defer func() {
		if err := r.publishers.ReturnObject(ctx, obj); err != nil {
			o11y.LogError(ctx, "rabbit: return replier to pool", err)
			pub.Close()
		}
	}()
	return pub.Publish(msg)
}

func (r *Replies) Close(ctx context.Context) (err error) {
	ctx, span := o11y.StartSpan(ctx, "rabbit: close replies")
	defer o11y.End(span, &err)
	r.publishers.Close(ctx)
	return nil
}

func (r *Replies) MetricName() string {
	return r.name
}

func (r *Replies) Gauges(context.Context) map[string]float64 {
	return map[string]float64{
		"active":    float64(r.publishers.GetNumActive()),
		"idle":      float64(r.publishers.GetNumIdle()),
		"destroyed": float64(r.publishers.GetDestroyedCount()),
		"max_total": float64(r.publishers.Config.MaxTotal),
	}
}

// logUnroutable logs the replies the broker hands back. The channel is closed
// by the AMQP channel when it shuts down.
func logUnroutable(ctx context.Context) chan amqp.Return {
	returns := make(chan amqp.Return)
	go func() {
		for ret := range returns {
			o11y.LogError(ctx, "rabbit: reply returned", errors.New(ret.ReplyText),
				o11y.Field("reply_code", ret.ReplyCode),
				o11y.Field("routing_key", ret.RoutingKey),
				o11y.Field(o11y.FieldCorrelationID, ret.CorrelationId),
			)
		}
	}()
	return returns
}
