package rabbit

import (
	"context"

	"github.com/makasim/amqpextra"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/circleci/workerhost/system"
)

// Load connects a Bus to the broker. The connection, reply publishers and consumers
// are closed by the system's cleanups, and their gauges reported with its metrics.
func Load(ctx context.Context, cfg Config, sys *system.System) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialer, err := NewDialer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	replies := NewReplies(ctx, cfg.ConnectionName+"-replies", dialer)
	b := NewBus(ctx, dialer, replies, cfg)

	sys.AddCleanup(b.Close)
	sys.AddCleanup(replies.Close)
	sys.AddCleanup(func(ctx context.Context) error {
		dialer.Close()
		return nil
	})
	sys.AddMetrics(replies)
	sys.AddGauges(b)

	return b, nil
}

// NewDialer returns a dialer that connects, and reconnects, in the background.
func NewDialer(ctx context.Context, cfg Config) (*amqpextra.Dialer, error) {
	return amqpextra.NewDialer(
		amqpextra.WithContext(ctx),
		amqpextra.WithURL(cfg.URL.Raw()),
		amqpextra.WithConnectionProperties(amqp.Table{
			"connection_name": cfg.ConnectionName,
		}),
	)
}
