package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"demand/internal/config"
	"demand/internal/model"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyQueued is returned when the report already has a live task
var ErrAlreadyQueued = errors.New("report is already queued")

// RedisOpt maps the shared redis config onto asynq's connection options
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Client enqueues demand analysis jobs
type Client struct {
	client *asynq.Client
	config config.QueueConfig
}

func NewClient(redisOpt asynq.RedisConnOpt, cfg config.QueueConfig) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		config: cfg,
	}
}

// EnqueueDemand stores the job durably. The task id is the report id, so a
// report cannot have two live tasks.
func (c *Client) EnqueueDemand(ctx context.Context, job model.DemandJob) (*asynq.TaskInfo, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encoding job: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(job.ReportID),
		asynq.Queue(c.config.Name),
		asynq.MaxRetry(c.config.Retries()),
	}
	if retention := c.config.Retention(); retention > 0 {
		opts = append(opts, asynq.Retention(retention))
	}

	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(model.TaskAnalyzeDemand, payload), opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil, ErrAlreadyQueued
		}
		log.Error().Err(err).Str("reportID", job.ReportID).Msg("Failed to enqueue demand job")
		return nil, err
	}

	log.Info().
		Str("reportID", job.ReportID).
		Str("categoryID", job.CategoryID).
		Str("queue", info.Queue).
		Int("maxRetry", info.MaxRetry).
		Msg("Enqueued demand job")

	return info, nil
}

// Ping checks the queue's redis connection
func (c *Client) Ping() error {
	return c.client.Ping()
}

func (c *Client) Close() error {
	return c.client.Close()
}
