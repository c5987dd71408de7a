package events

import (
	"context"
	"encoding/json"
	"fmt"

	"demand/internal/model"
)

// ExchangeKind is the exchange type of the progress fan-out
const ExchangeKind = "fanout"

type amqpPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// RabbitPublisher publishes progress events to a fanout exchange, keyed by
// report id for consumers that bind with a direct exchange instead.
type RabbitPublisher struct {
	client   amqpPublisher
	exchange string
}

func NewRabbitPublisher(client amqpPublisher, exchange string) *RabbitPublisher {
	return &RabbitPublisher{client: client, exchange: exchange}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event model.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding progress event: %w", err)
	}

	if err := p.client.Publish(ctx, p.exchange, event.ReportID, payload); err != nil {
		return fmt.Errorf("publishing to exchange %s: %w", p.exchange, err)
	}
	return nil
}

// DecodeEvent parses a progress event body from either transport
func DecodeEvent(body []byte) (model.ProgressEvent, error) {
	var event model.ProgressEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("decoding progress event: %w", err)
	}
	return event, nil
}
