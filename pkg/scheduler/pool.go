// Package scheduler drives the periodic sweeps of the execution engine: due
// delay records are claimed and resumed, and trigger entities past the
// watermark are handed off as new executions.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultPoolSize bounds concurrent executions per engine instance.
const DefaultPoolSize = 8

// Task is one unit of work submitted to the pool.
type Task func(ctx context.Context)

// Pool is a bounded worker pool. Submit blocks when every worker is busy and
// the queue is full, which backpressures the sweepers instead of letting an
// unbounded number of executions pile up.
type Pool struct {
	size   int
	tasks  chan Task
	wg     sync.WaitGroup
	logger *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}

	return &Pool{
		size:   size,
		tasks:  make(chan Task, size),
		logger: logger.With("module", "scheduler"),
	}
}

// Start launches the workers. Workers drain remaining queued tasks after
// Stop, then exit; ctx cancellation aborts the task channel loop.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)

			go func(worker int) {
				defer p.wg.Done()

				for task := range p.tasks {
					select {
					case <-ctx.Done():
						return
					default:
					}

					task(ctx)
				}
			}(i)
		}

		p.logger.Info("Worker pool started", "size", p.size)
	})
}

// Submit enqueues a task, blocking until a worker slot frees up or the
// context is cancelled.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
		p.logger.Info("Worker pool stopped")
	})
}
