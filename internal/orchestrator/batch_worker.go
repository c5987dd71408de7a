package orchestrator

import "context"

// Task is one delivery of a queued job. Attempt is 1-based and
// MaxAttempts counts the first try plus every retry.
type Task struct {
	ID          string
	Type        string
	Payload     []byte
	Attempt     int
	MaxAttempts int
}

// TaskWorker handles every delivery of one task type
type TaskWorker interface {
	// Handle processes a delivery; a non-nil error hands it back to the queue
	Handle(ctx context.Context, task Task) error

	// Name returns the worker name
	Name() string

	// Type returns the task type the worker consumes
	Type() string
}

// SplitIntoBatches is a generic function that divides a slice of items
// into batches of the specified size
func SplitIntoBatches[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		return nil
	}

	if len(items) == 0 {
		return [][]T{}
	}

	numBatches := (len(items) + batchSize - 1) / batchSize
	batches := make([][]T, 0, numBatches)

	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize

		// last batch may be short
		if end > len(items) {
			end = len(items)
		}

		batches = append(batches, items[i:end])
	}

	return batches
}
