package rabbit

import (
	"errors"

	"github.com/circleci/workerhost/config/secret"
)

type Config struct {
	URL            secret.String `mapstructure:"url"`
	ConnectionName string        `mapstructure:"connection_name"`
	// Exchange the operation queues are bound to. Empty uses the default exchange.
	Exchange string `mapstructure:"exchange"`
	// Prefetch limits unacknowledged requests per operation. Zero means no limit.
	Prefetch int `mapstructure:"prefetch"`
}

func (c Config) Validate() error {
	if !c.URL.IsSet() {
		return errors.New("rabbit: url is required")
	}
	if c.Prefetch < 0 {
		return errors.New("rabbit: prefetch cannot be negative")
	}
	return nil
}
