package orchestrator

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

type WorkerRegistry interface {
	Register(TaskWorker)
	Get(string) (TaskWorker, bool)
	TaskTypes() []string
}

// Registry maps task types to the worker that consumes them
type Registry struct {
	workers map[string]TaskWorker
	mu      sync.RWMutex
}

// NewWorkerRegistry creates a registry holding the given workers
func NewWorkerRegistry(workers ...TaskWorker) WorkerRegistry {
	registry := &Registry{
		workers: make(map[string]TaskWorker),
	}

	for _, w := range workers {
		registry.Register(w)
	}

	return registry
}

// Register adds a worker, replacing any previous one for the same type
func (r *Registry) Register(worker TaskWorker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workers[worker.Type()] = worker

	log.Info().
		Str("taskType", worker.Type()).
		Str("worker", worker.Name()).
		Msg("Registered task worker")
}

// Get retrieves a worker by task type
func (r *Registry) Get(taskType string) (TaskWorker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	worker, exists := r.workers[taskType]
	return worker, exists
}

// TaskTypes returns every registered task type in sorted order
func (r *Registry) TaskTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.workers))
	for taskType := range r.workers {
		types = append(types, taskType)
	}
	sort.Strings(types)

	return types
}
