package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"demand/internal/cache"
	"demand/internal/config"
	"demand/internal/controller"
	"demand/internal/database"
	"demand/internal/events"
	"demand/internal/queue"
	"demand/internal/rabbitmq"
	"demand/internal/server"
	"demand/pkg/oxylabs"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.Logging)

	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize redis connection")
	}
	redisCache := cache.NewRedisCache(redisClient, cfg.Redis.Prefix)
	defer redisCache.Close()

	var rabbit rabbitmq.Client
	if cfg.Events.RabbitMQ {
		rabbit, err = rabbitmq.NewClientFromConfig(cfg.RabbitMQ)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create RabbitMQ client")
		}
		defer rabbit.Close()
	}

	publisher, err := events.FromConfig(*cfg, redisClient, rabbit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up progress events")
	}

	queueClient := queue.NewClient(queue.RedisOpt(cfg.Redis), cfg.Queue)
	defer queueClient.Close()

	categories := oxylabs.New(cfg.Oxylabs.Username, cfg.Oxylabs.Password, cfg.Oxylabs.BaseURL, cfg.Oxylabs.Domain, cfg.Oxylabs.RequestsPerMinute)
	subscriber := events.NewRedisSubscriber(redisClient, events.ChannelName(cfg.Redis.Prefix, cfg.Events.Channel))

	sc := controller.NewServer(db, redisCache, rabbit, queueClient)
	rc := controller.NewReportController(db, queueClient, publisher, categories, subscriber)
	httpServer := server.New(*cfg, sc, rc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return db.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("API stopped with error")
		os.Exit(1)
	}
}
