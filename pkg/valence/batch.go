package valence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/gitrdm/valencesolver/internal/cache"
	"github.com/gitrdm/valencesolver/internal/logging"
	"github.com/gitrdm/valencesolver/internal/parallel"
)

// BatchItem is one composition of a batch.
type BatchItem struct {
	ID          string      `json:"id" yaml:"id"`
	Composition Composition `json:"composition" yaml:"composition"`
}

// BatchResult is the outcome of one BatchItem. Err holds per-item input
// errors; TimedOut items carry an empty result.
type BatchResult struct {
	ID       string  `json:"id" yaml:"id"`
	Counts   Counts  `json:"counts,omitempty" yaml:"counts,omitempty"`
	Result   *Result `json:"result,omitempty" yaml:"result,omitempty"`
	Err      error   `json:"-" yaml:"-"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`
	TimedOut bool    `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	Cached   bool    `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithWorkers sets the number of concurrent solves. Non-positive values
// use the number of CPUs.
func WithWorkers(n int) BatchOption {
	return func(b *Batch) { b.workers = n }
}

// WithItemTimeout bounds each solve. A solve exceeding it is reported as
// an empty result with TimedOut set.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(b *Batch) { b.timeout = d }
}

// WithMaxDenominator sets the denominator limit used to normalize
// fractional amounts.
func WithMaxDenominator(n int) BatchOption {
	return func(b *Batch) { b.maxDenominator = n }
}

// WithRateLimit caps the number of solves started per second.
func WithRateLimit(perSecond int) BatchOption {
	return func(b *Batch) { b.rate = perSecond }
}

// WithMemo shares a memo table between batches. Results are keyed by the
// normalized composition and the solve options.
func WithMemo(m *cache.Memo[*Result]) BatchOption {
	return func(b *Batch) { b.memo = m }
}

// Batch solves many compositions concurrently in best mode.
type Batch struct {
	solver         *Solver
	workers        int
	timeout        time.Duration
	maxDenominator int
	rate           int
	memo           *cache.Memo[*Result]
}

// NewBatch creates a batch driver around solver.
func NewBatch(solver *Solver, opts ...BatchOption) *Batch {
	b := &Batch{solver: solver, maxDenominator: 1000}
	for _, o := range opts {
		if o != nil {
			o(b)
		}
	}
	if b.memo == nil {
		b.memo = cache.NewMemo[*Result](0)
	}
	return b
}

// errTimedOut marks a solve stopped by the per-item timeout.
var errTimedOut = errors.New("valence: solve timed out")

// Run solves every item and returns results in input order. Results are
// shared with the memo table and must not be modified. Run fails only when
// ctx ends.
func (b *Batch) Run(ctx context.Context, items []BatchItem, opts Options) ([]BatchResult, error) {
	logger := logr.FromContextOrDiscard(ctx)
	pool := parallel.NewWorkerPool(b.workers)
	defer pool.Shutdown()
	var limiter *parallel.RateLimiter
	if b.rate > 0 {
		limiter = parallel.NewRateLimiter(b.rate)
		defer limiter.Close()
	}

	out := make([]BatchResult, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				wg.Wait()
				return out, err
			}
		}
		wg.Add(1)
		err := pool.Submit(ctx, func() {
			defer wg.Done()
			out[i] = b.solveOne(ctx, item, opts)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return out, err
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return out, err
	}

	hits, misses := b.memo.Stats()
	logger.V(logging.DEBUG).Info("batch finished", "items", len(items), "memoHits", hits, "memoMisses", misses)
	return out, nil
}

func (b *Batch) solveOne(ctx context.Context, item BatchItem, opts Options) BatchResult {
	br := BatchResult{ID: item.ID}
	counts, _, err := item.Composition.Normalize(b.maxDenominator)
	if err != nil {
		br.Err, br.Error = err, err.Error()
		return br
	}
	br.Counts = counts

	res, shared, err := b.memo.Do(counts.Key()+"|"+opts.Key(), func() (*Result, error) {
		solveCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			solveCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		res, err := b.solver.MostProbable(solveCtx, counts, opts)
		if err != nil && ctx.Err() == nil && solveCtx.Err() != nil {
			return nil, errTimedOut
		}
		return res, err
	})
	switch {
	case errors.Is(err, errTimedOut):
		logr.FromContextOrDiscard(ctx).V(logging.DEBUG).Info("solve timed out, treating as infeasible",
			"id", item.ID, "composition", counts.Key(), "timeout", b.timeout)
		br.TimedOut = true
		br.Result = &Result{Stage: StageDone}
	case err != nil:
		br.Err, br.Error = err, err.Error()
	default:
		br.Result, br.Cached = res, shared
	}
	return br
}
