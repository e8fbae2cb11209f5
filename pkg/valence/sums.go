package valence

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gitrdm/valencesolver/internal/logging"
	"github.com/gitrdm/valencesolver/pkg/ilp"
)

// ElementSums lists every reachable state sum of one entry with the best
// score of a site distribution reaching it. Sums ascend.
type ElementSums struct {
	Entry  Entry
	Sums   []int
	Scores []float64
}

// Score returns the best score recorded for sum.
func (es ElementSums) Score(sum int) (float64, bool) {
	for i, s := range es.Sums {
		if s == sum {
			return es.Scores[i], true
		}
	}
	return 0, false
}

// SumSolver enumerates the reachable sums of a single element.
type SumSolver struct {
	ilpOpts  []ilp.Option
	maxRange int
	recorder Recorder
}

// NewSumSolver creates a sum solver. maxRange caps the number of sums
// swept per element; larger ranges fail with ErrInvalidInput.
func NewSumSolver(maxRange int, recorder Recorder, opts ...ilp.Option) *SumSolver {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &SumSolver{ilpOpts: opts, maxRange: maxRange, recorder: recorder}
}

// Sums sweeps every total t in [n·min, n·max] and solves
//
//	maximize Σ score_i·x_i  s.t.  Σ x_i = n,  Σ s_i·x_i = t,  x_i ≥ 0
//
// keeping the feasible t with their optimal scores. An element with a
// single state has exactly one sum; an element without states has none.
func (ss *SumSolver) Sums(ctx context.Context, entry Entry) (ElementSums, error) {
	out := ElementSums{Entry: entry}
	lo, hi, ok := entry.Range()
	if !ok {
		return out, nil
	}
	if len(entry.States) == 1 {
		out.Sums = []int{lo}
		out.Scores = []float64{entry.Scores[0] * float64(entry.Amount)}
		return out, nil
	}
	if ss.maxRange > 0 && hi-lo+1 > ss.maxRange {
		return out, fmt.Errorf("%w: %s with %d atoms spans %d sums (limit %d)",
			ErrInvalidInput, entry.Element, entry.Amount, hi-lo+1, ss.maxRange)
	}

	logger := logr.FromContextOrDiscard(ctx)
	for t := lo; t <= hi; t++ {
		m := ilp.NewModel()
		xs := make([]*ilp.Variable, len(entry.States))
		count := make([]ilp.Term, len(xs))
		charge := make([]ilp.Term, len(xs))
		objective := make([]ilp.Term, len(xs))
		for i, s := range entry.States {
			xs[i] = m.NewVariable(fmt.Sprintf("%s%+d", entry.Element.Symbol(), s), 0, entry.Amount)
			count[i] = ilp.T(1, xs[i])
			charge[i] = ilp.T(float64(s), xs[i])
			objective[i] = ilp.T(entry.Scores[i], xs[i])
		}
		m.AddConstraint("amount", count, ilp.Equal, float64(entry.Amount))
		m.AddConstraint("sum", charge, ilp.Equal, float64(t))
		m.SetObjective(ilp.Maximize, objective)

		res, err := ilp.NewSolver(m, ss.ilpOpts...).Solve(ctx)
		if res != nil {
			ss.recorder.ObserveILP(res.Status.String(), res.Nodes)
		}
		if err := contextError(ctx, err); err != nil {
			return out, err
		}
		if err != nil || res.Status != ilp.StatusOptimal {
			if err != nil {
				logger.V(logging.DEBUG).Info("sum solve failed, treating as unreachable",
					"element", entry.Element.String(), "sum", t, "error", err.Error())
			}
			continue
		}
		out.Sums = append(out.Sums, t)
		out.Scores = append(out.Scores, res.Objective)
	}
	logger.V(logging.TRACE).Info("element sums", "element", entry.Element.String(), "amount", entry.Amount, "sums", out.Sums)
	return out, nil
}

// contextError returns the caller's context error when a solve stopped
// because ctx ended. Solver-internal time limits are not context errors.
func contextError(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
