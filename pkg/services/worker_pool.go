package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPoolConfig configures the verification worker pool.
type WorkerPoolConfig struct {
	MaxConcurrent int // Maximum concurrent calls (default: 8)
}

// DefaultWorkerPoolConfig returns sensible defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		MaxConcurrent: 8,
	}
}

// WorkerPool runs independent calls with bounded parallelism. A semaphore
// limits outstanding calls; a new call starts as soon as one finishes.
type WorkerPool struct {
	config WorkerPoolConfig
	logger *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultWorkerPoolConfig().MaxConcurrent
	}
	return &WorkerPool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	Index   int                                  // Position of the item in the caller's input
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	Index  int
	Result T
	Err    error
}

// Process executes all work items with bounded parallelism and returns one
// result per item, in submission order. Items that never acquired a slot
// because ctx was cancelled carry ctx.Err(). Processing continues past
// individual failures. onProgress is called in completion order.
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	done := make(chan int, len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup

	for pos, item := range items {
		wg.Add(1)
		go func(pos int, item WorkItem[T]) {
			defer wg.Done()
			defer func() { done <- pos }()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[pos] = WorkResult[T]{Index: item.Index, Err: ctx.Err()}
				return
			}

			// select picks randomly when both are ready; no new work starts once ctx is done.
			if err := ctx.Err(); err != nil {
				results[pos] = WorkResult[T]{Index: item.Index, Err: err}
				return
			}

			result, err := item.Execute(ctx)
			results[pos] = WorkResult[T]{Index: item.Index, Result: result, Err: err}
		}(pos, item)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for range done {
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	pool.logger.Debug("Processed work items",
		zap.Int("total", len(items)),
		zap.Int("max_concurrent", pool.config.MaxConcurrent))

	return results
}
