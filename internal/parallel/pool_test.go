package parallel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsEveryTask(t *testing.T) {
	pool := NewWorkerPool(3)
	assert.Equal(t, 3, pool.Workers())

	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(context.Background(), func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	pool.Shutdown()
	assert.EqualValues(t, 50, n.Load())
}

func TestWorkerPoolDefaultsToCPUCount(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Shutdown()
	assert.Positive(t, pool.Workers())
}

func TestWorkerPoolSubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()
	pool.Shutdown()
	assert.ErrorIs(t, pool.Submit(context.Background(), func() {}), ErrPoolShutdown)
}

func TestWorkerPoolSubmitHonoursContext(t *testing.T) {
	pool := NewWorkerPool(1)
	block := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() { <-block }))
	// fill the queue behind the blocked worker
	for i := 0; i < 2; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() {}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	pool.Shutdown()
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	rl.Close()
	assert.ErrorIs(t, rl.Wait(context.Background()), ErrLimiterShutdown)
}

func TestRateLimiterContext(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Close()
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}
