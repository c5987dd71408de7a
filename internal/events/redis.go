package events

import (
	"context"
	"encoding/json"
	"fmt"

	"demand/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChannelName returns the pub/sub channel of the progress bus
func ChannelName(prefix, channel string) string {
	if prefix == "" {
		return channel
	}
	return prefix + ":" + channel
}

// RedisPublisher publishes progress events on a Redis pub/sub channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event model.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding progress event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}
	return nil
}

// RedisSubscriber reads progress events from the pub/sub channel
type RedisSubscriber struct {
	client  *redis.Client
	channel string
}

func NewRedisSubscriber(client *redis.Client, channel string) *RedisSubscriber {
	return &RedisSubscriber{client: client, channel: channel}
}

// Subscribe streams events until ctx is done. The subscription is
// confirmed before Subscribe returns, so nothing published afterwards is
// missed.
func (s *RedisSubscriber) Subscribe(ctx context.Context) (<-chan model.ProgressEvent, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", s.channel, err)
	}

	out := make(chan model.ProgressEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				event, err := DecodeEvent([]byte(msg.Payload))
				if err != nil {
					log.Warn().Err(err).Str("channel", s.channel).Msg("Dropping malformed progress event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
