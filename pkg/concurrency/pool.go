// Package concurrency provides the bounded worker pool the rebalance
// scheduler runs its tasks on. Rebalance ticks, premium intake, and hedge
// mark refreshes share a fixed set of workers, so a burst of premium
// inflow can never pile up unbounded goroutines against the venue.
package concurrency

import (
	"fmt"
	"time"

	"github.com/alitto/pond"

	"github.com/tonsurance/btcfloat/internal/core"
)

// PoolConfig sizes a worker pool. Zero values fall back to the scale a
// single-reserve deployment needs.
type PoolConfig struct {
	Name        string
	Workers     int  // concurrent task executors
	QueueDepth  int  // tasks buffered beyond the running set
	NonBlocking bool // refuse instead of block when the queue is full
}

// WorkerPool is a bounded task pool. Panics in tasks are recovered and
// logged rather than taking down the scheduler.
type WorkerPool struct {
	pool   *pond.WorkerPool
	cfg    PoolConfig
	logger core.ILogger
}

// NewWorkerPool builds a pool from the config.
func NewWorkerPool(cfg PoolConfig, logger core.ILogger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	logger = logger.WithField("component", "worker_pool").WithField("pool", cfg.Name)

	pool := pond.New(
		cfg.Workers,
		cfg.QueueDepth,
		pond.MinWorkers(1),
		pond.IdleTimeout(time.Minute),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			logger.Error("task panicked", "panic", p)
		}),
	)

	return &WorkerPool{
		pool:   pool,
		cfg:    cfg,
		logger: logger,
	}
}

// Submit enqueues a task. In non-blocking mode a full queue is an error the
// caller decides how to degrade on; otherwise Submit blocks until a worker
// frees up.
func (wp *WorkerPool) Submit(task func()) error {
	if wp.cfg.NonBlocking {
		if !wp.pool.TrySubmit(task) {
			return fmt.Errorf("pool %q saturated: %d tasks queued", wp.cfg.Name, wp.pool.WaitingTasks())
		}
		return nil
	}
	wp.pool.Submit(task)
	return nil
}

// Stop drains queued tasks and waits for running ones to finish.
func (wp *WorkerPool) Stop() {
	wp.pool.StopAndWait()
}
