package queue

import (
	"context"
	"fmt"
	"time"

	"demand/internal/config"
	"demand/internal/orchestrator"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// Server runs the registered task workers on an asynq server
type Server struct {
	server   *asynq.Server
	registry orchestrator.WorkerRegistry
}

// ServerOption tweaks the asynq config before the server is built
type ServerOption func(*asynq.Config)

// WithDelayedTaskCheckInterval controls how quickly retries become due
func WithDelayedTaskCheckInterval(d time.Duration) ServerOption {
	return func(c *asynq.Config) { c.DelayedTaskCheckInterval = d }
}

func NewServer(redisOpt asynq.RedisConnOpt, cfg config.QueueConfig, registry orchestrator.WorkerRegistry, opts ...ServerOption) *Server {
	asynqCfg := asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         map[string]int{cfg.Name: 1},
		RetryDelayFunc: RetryDelay(cfg.RetryBaseDelay()),
		ErrorHandler:   asynq.ErrorHandlerFunc(logTaskError),
		Logger:         zerologAdapter{},
		LogLevel:       asynq.InfoLevel,
	}
	for _, opt := range opts {
		opt(&asynqCfg)
	}

	return &Server{
		server:   asynq.NewServer(redisOpt, asynqCfg),
		registry: registry,
	}
}

// RetryDelay doubles base for every redelivery: base, 2*base, 4*base...
func RetryDelay(base time.Duration) asynq.RetryDelayFunc {
	return func(retried int, _ error, _ *asynq.Task) time.Duration {
		if retried < 0 {
			retried = 0
		}
		return base << uint(retried)
	}
}

// Handler builds the task mux from the registry
func (s *Server) Handler() asynq.Handler {
	mux := asynq.NewServeMux()
	for _, taskType := range s.registry.TaskTypes() {
		worker, _ := s.registry.Get(taskType)
		mux.Handle(taskType, TaskHandler(worker))
	}
	return mux
}

// Run blocks until the server receives a termination signal
func (s *Server) Run() error {
	return s.server.Run(s.Handler())
}

// Start processes tasks in the background
func (s *Server) Start() error {
	return s.server.Start(s.Handler())
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

// TaskHandler adapts a worker to asynq: it fills the attempt counters and
// turns fatal errors into SkipRetry.
func TaskHandler(worker orchestrator.TaskWorker) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		err := worker.Handle(ctx, orchestrator.Task{
			ID:          id,
			Type:        t.Type(),
			Payload:     t.Payload(),
			Attempt:     retried + 1,
			MaxAttempts: maxRetry + 1,
		})
		if err != nil && IsFatal(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	})
}

func logTaskError(ctx context.Context, task *asynq.Task, err error) {
	id, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	log.Error().
		Err(err).
		Str("taskID", id).
		Str("type", task.Type()).
		Int("retried", retried).
		Int("maxRetry", maxRetry).
		Bool("fatal", IsFatal(err)).
		Msg("Task attempt failed")
}
