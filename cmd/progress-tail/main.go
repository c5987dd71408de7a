package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"demand/internal/config"
	"demand/internal/events"
	"demand/internal/rabbitmq"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to the configuration file")
	reportID := flag.String("report", "", "only show events of this report")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.Logging)

	client, err := rabbitmq.NewClientFromConfig(cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RabbitMQ client")
	}
	defer client.Close()

	if err := client.Health(); err != nil {
		log.Fatal().Err(err).Msg("RabbitMQ health check failed")
	}

	exchange := cfg.RabbitMQ.ExchangeName
	if err := client.DeclareExchange(exchange, events.ExchangeKind); err != nil {
		log.Fatal().Err(err).Str("exchange", exchange).Msg("Failed to declare exchange")
	}

	// a private queue that disappears with this process
	q, err := client.DeclareQueue("", false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to declare queue")
	}
	if err := client.BindQueue(q.Name, exchange, ""); err != nil {
		log.Fatal().Err(err).Str("queue", q.Name).Msg("Failed to bind queue")
	}

	deliveries, err := client.Consume(q.Name, "progress-tail-"+uuid.NewString()[:8])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start consuming")
	}

	go func() {
		for delivery := range deliveries {
			event, err := events.DecodeEvent(delivery.Body)
			if err != nil {
				log.Warn().Err(err).Msg("Dropping malformed progress event")
				_ = delivery.Nack(false, false)
				continue
			}

			if *reportID == "" || event.ReportID == *reportID {
				log.Info().
					Str("reportID", event.ReportID).
					Str("status", string(event.Status)).
					Int("progress", event.Progress).
					Time("timestamp", delivery.Timestamp).
					Msg("Progress")
			}
			_ = delivery.Ack(false)
		}
	}()

	log.Info().Str("exchange", exchange).Str("queue", q.Name).Msg("Waiting for progress events. Press CTRL+C to exit.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
}
