// Package parallel runs independent composition solves concurrently.
// Solves share nothing but read-only catalog data, so the package only has
// to bound the number of goroutines and, optionally, the solve rate.
package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// ErrPoolShutdown is returned when trying to submit tasks to a shutdown pool.
var ErrPoolShutdown = errors.New("worker pool has been shutdown")

// ErrLimiterShutdown is returned when trying to wait on a closed limiter.
var ErrLimiterShutdown = errors.New("rate limiter has been shutdown")

// WorkerPool manages a fixed set of goroutines executing submitted tasks.
// Submit blocks once every worker is busy and the queue is full.
type WorkerPool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If maxWorkers is 0 or negative, it defaults to the number of CPU cores.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers*2),
		shutdownChan: make(chan struct{}),
	}
	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}
	return pool
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.maxWorkers }

func (wp *WorkerPool) worker() {
	defer wp.workerWg.Done()

	for {
		select {
		case task := <-wp.taskChan:
			if task != nil {
				task()
			}
		case <-wp.shutdownChan:
			// drain what was queued before shutdown
			for {
				select {
				case task := <-wp.taskChan:
					if task != nil {
						task()
					}
				default:
					return
				}
			}
		}
	}
}

// Submit queues a task. It blocks while the queue is full and fails with
// ctx.Err() or ErrPoolShutdown if the context ends or the pool shuts down
// first.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	default:
	}
	select {
	case wp.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	}
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// complete. It is safe to call more than once.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.shutdownChan)
		wp.workerWg.Wait()
	})
}

// RateLimiter hands out at most tokensPerSecond tokens per second, with a
// burst of one second's worth.
type RateLimiter struct {
	ticker   *time.Ticker
	tokens   chan struct{}
	shutdown chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a limiter allowing tokensPerSecond operations per
// second. Non-positive rates default to 1000.
func NewRateLimiter(tokensPerSecond int) *RateLimiter {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 1000
	}

	rl := &RateLimiter{
		ticker:   time.NewTicker(time.Second / time.Duration(tokensPerSecond)),
		tokens:   make(chan struct{}, tokensPerSecond),
		shutdown: make(chan struct{}),
	}
	for i := 0; i < tokensPerSecond; i++ {
		rl.tokens <- struct{}{}
	}
	go rl.refill()
	return rl
}

func (rl *RateLimiter) refill() {
	for {
		select {
		case <-rl.ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default:
				// bucket full
			}
		case <-rl.shutdown:
			rl.ticker.Stop()
			return
		}
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.shutdown:
		return ErrLimiterShutdown
	default:
	}
	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.shutdown:
		return ErrLimiterShutdown
	}
}

// Close stops the refill goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.shutdown)
	})
}
