package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/makasim/amqpextra"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/circleci/workerhost/closer"
	"github.com/circleci/workerhost/o11y"
)

const directReplyTo = "amq.rabbitmq.reply-to"

// RemoteError is an error reported by the worker that served a call.
type RemoteError struct {
	Operation string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rabbit: operation %s failed: %s", e.Operation, e.Message)
}

// Client calls operations served by a Bus.
type Client struct {
	dialer   *amqpextra.Dialer
	exchange string
}

func NewClient(dialer *amqpextra.Dialer, exchange string) *Client {
	return &Client{dialer: dialer, exchange: exchange}
}

// Call sends req to operation and decodes the reply into resp. It waits until
// the reply arrives or ctx is done.
func (c *Client) Call(ctx context.Context, operation string, req, resp interface{}) (err error) {
	ctx, span := o11y.StartOperation(ctx, o11y.StepCall, operation)
	defer o11y.End(span, &err)

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	conn, err := c.dialer.Connection(ctx)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer closer.ErrorHandler(ch, &err)

	replies, err := ch.Consume(directReplyTo, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	span.AddField(o11y.FieldCorrelationID, id)
	err = ch.PublishWithContext(ctx, c.exchange, operation, true, false, amqp.Publishing{
		ContentType:   JSON,
		CorrelationId: id,
		ReplyTo:       directReplyTo,
		Body:          body,
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-replies:
			if !ok {
				return errors.New("rabbit: reply channel closed")
			}
			if d.CorrelationId != id {
				continue
			}
			return decodeReply(operation, d, resp)
		}
	}
}

func decodeReply(operation string, d amqp.Delivery, resp interface{}) error {
	if msg, ok := d.Headers[errorHeader].(string); ok {
		return &RemoteError{Operation: operation, Message: msg}
	}
	if resp == nil {
		return nil
	}
	return json.Unmarshal(d.Body, resp)
}
