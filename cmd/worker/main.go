package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"demand/internal/aws"
	"demand/internal/cache"
	"demand/internal/config"
	"demand/internal/database"
	"demand/internal/events"
	"demand/internal/orchestrator"
	"demand/internal/orchestrator/worker"
	"demand/internal/queue"
	"demand/internal/rabbitmq"
	"demand/pkg/junglescout"
	"demand/pkg/oxylabs"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.Logging)
	log.Info().Str("env", cfg.Env).Msg("Starting demand worker")

	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(ctx)
	}()

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

	opts := []worker.Option{
		worker.WithCache(cache.NewBestSellerCache(redisCache, cfg.Pipeline.CacheTTL())),
	}
	if cfg.AWS.ArchiveEnabled() {
		fileService, err := aws.NewFileService(cfg.AWS.AccessKey, cfg.AWS.SecretKey, cfg.AWS.Bucket, cfg.AWS.Region)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 file service")
		}
		opts = append(opts, worker.WithArchiver(fileService))
	}

	bestSellers := oxylabs.New(cfg.Oxylabs.Username, cfg.Oxylabs.Password, cfg.Oxylabs.BaseURL, cfg.Oxylabs.Domain, cfg.Oxylabs.RequestsPerMinute)
	estimates := junglescout.New(cfg.JungleScout.APIKey, cfg.JungleScout.BaseURL, cfg.JungleScout.Marketplace, cfg.JungleScout.RequestsPerMinute)

	demandWorker := worker.NewDemandWorker(db, bestSellers, estimates, publisher, worker.Config{
		MaxPages:   cfg.Pipeline.MaxBestSellerPages,
		BatchSize:  cfg.Pipeline.EnrichBatchSize,
		BatchDelay: cfg.Pipeline.EnrichBatchDelay(),
	}, opts...)

	registry := orchestrator.NewWorkerRegistry(demandWorker)
	srv := queue.NewServer(queue.RedisOpt(cfg.Redis), cfg.Queue, registry)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start queue server")
	}
	log.Info().
		Strs("taskTypes", registry.TaskTypes()).
		Int("concurrency", cfg.Queue.Concurrency).
		Str("queue", cfg.Queue.Name).
		Msg("Worker ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
	srv.Shutdown()
}
