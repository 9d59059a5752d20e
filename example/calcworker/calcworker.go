// Package calcworker is a worker that serves arithmetic operations over the bus.
package calcworker

import (
	"context"
	"fmt"

	"github.com/circleci/workerhost/bus"
	"github.com/circleci/workerhost/host"
	"github.com/circleci/workerhost/rabbit"
	"github.com/circleci/workerhost/system"
)

// CreateBuilder is the worker's builder factory.
func CreateBuilder(args []string) *host.Builder {
	return host.NewBuilder(args).
		ConfigureServices(func(hctx host.Context, s *host.Services) {
			s.Provide(func(ctx context.Context, sys *system.System) (bus.Bus, error) {
				return loadBus(ctx, hctx, sys)
			})
			host.AddHostedService[*QueueListener](s, NewQueueListener)
		})
}

func loadBus(ctx context.Context, hctx host.Context, sys *system.System) (bus.Bus, error) {
	var cfg rabbit.Config
	if err := hctx.Config.UnmarshalKey("bus", &cfg); err != nil {
		return nil, fmt.Errorf("calcworker: bus config: %w", err)
	}
	b, err := rabbit.Load(ctx, cfg, sys)
	if err != nil {
		return nil, err
	}
	return b, nil
}
