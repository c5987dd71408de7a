package events

import (
	"context"
	"errors"
	"fmt"

	"demand/internal/config"
	"demand/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Publisher delivers progress events to subscribers. Publish is
// synchronous and best effort from the caller's point of view.
type Publisher interface {
	Publish(ctx context.Context, event model.ProgressEvent) error
}

// MultiPublisher fans one event out to several transports
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event model.ProgressEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.ProgressEvent) error { return nil }

type exchangePublisher interface {
	amqpPublisher
	DeclareExchange(name, kind string) error
}

// FromConfig builds the enabled transports. rabbit may be nil when the
// RabbitMQ transport is disabled.
func FromConfig(cfg config.Config, redisClient *redis.Client, rabbit exchangePublisher) (Publisher, error) {
	var transports MultiPublisher

	if cfg.Events.Redis && redisClient != nil {
		transports = append(transports, NewRedisPublisher(redisClient, ChannelName(cfg.Redis.Prefix, cfg.Events.Channel)))
	}

	if cfg.Events.RabbitMQ && rabbit != nil {
		if err := rabbit.DeclareExchange(cfg.RabbitMQ.ExchangeName, ExchangeKind); err != nil {
			return nil, fmt.Errorf("declaring progress exchange: %w", err)
		}
		transports = append(transports, NewRabbitPublisher(rabbit, cfg.RabbitMQ.ExchangeName))
	}

	switch len(transports) {
	case 0:
		log.Warn().Msg("No progress event transport enabled")
		return NopPublisher{}, nil
	case 1:
		return transports[0], nil
	default:
		return transports, nil
	}
}
