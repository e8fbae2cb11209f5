// Package valence assigns oxidation states to the elements of a
// composition.
//
// Best mode (Solver.MostProbable) solves one integer program over all
// elements and, when the composition cannot be balanced with the usual
// catalogs, relaxes the formulation stage by stage: alloys, broadened metal
// catalogs, a charge compensator on oxygen sites, peroxides and doubled
// amounts. Exhaustive mode (Solver.Guesses) ranks every balanced
// combination of per-element state sums.
//
// Catalog data comes from an ElementProvider and a PriorTable, which are
// read-only and shared by every solve; package periodic provides the
// bundled tables.
package valence

import (
	"context"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/gitrdm/valencesolver/internal/logging"
	"github.com/gitrdm/valencesolver/pkg/ilp"
)

// Solution maps element symbols to average oxidation states.
type Solution struct {
	Valences map[string]Rational `json:"valences" yaml:"valences"`
	// Score is the summed prior score of the chosen per-site states.
	Score float64 `json:"score" yaml:"score"`
}

// Symbols returns the solution's symbols in sorted order.
func (s *Solution) Symbols() []string {
	syms := make([]string, 0, len(s.Valences))
	for sym := range s.Valences {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Charge returns Σ counts[e]·valence[e].
func (s *Solution) Charge(counts Counts) Rational {
	total := Int(0)
	for sym, v := range s.Valences {
		total = total.Add(v.MulInt(counts[sym]))
	}
	return total
}

// Result is the outcome of a best-mode solve.
type Result struct {
	// Solution is nil when no stage could balance the composition.
	Solution *Solution `json:"solution" yaml:"solution"`
	// Usual is false whenever a fallback stage other than the elementary
	// or peroxide interpretation was needed.
	Usual    bool     `json:"usual" yaml:"usual"`
	Comments []string `json:"comments,omitempty" yaml:"comments,omitempty"`
	// Stage is the stage that produced the solution.
	Stage Stage `json:"stage" yaml:"stage"`
	// Compensation is the average per oxygen site absorbed by the
	// compensator and removed from Solution.
	Compensation Rational `json:"compensation" yaml:"compensation"`
	Compensated  bool     `json:"compensated" yaml:"compensated"`
}

// Feasible reports whether r carries a solution.
func (r *Result) Feasible() bool { return r != nil && r.Solution != nil }

// Charge returns the total charge of the solution including the removed
// compensation, which equals the target charge of the solve.
func (r *Result) Charge(counts Counts) Rational {
	if !r.Feasible() {
		return Int(0)
	}
	return r.Solution.Charge(counts).Add(r.Compensation.MulInt(counts[Oxygen]))
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// WithParams replaces the scoring constants.
func WithParams(p Params) SolverOption {
	return func(s *Solver) { s.params = p }
}

// WithILPOptions passes options to every integer program solve, e.g. a
// node limit.
func WithILPOptions(opts ...ilp.Option) SolverOption {
	return func(s *Solver) { s.ilpOpts = append(s.ilpOpts, opts...) }
}

// WithRecorder installs a telemetry recorder.
func WithRecorder(r Recorder) SolverOption {
	return func(s *Solver) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Solver is the entry point for both solving modes. It is safe for
// concurrent use; every call builds its own models.
type Solver struct {
	params   Params
	ilpOpts  []ilp.Option
	recorder Recorder

	catalog    *Catalog
	joint      JointStrategy
	exhaustive ExhaustiveStrategy
	relaxer    *Relaxer
}

// NewSolver creates a solver over the given data sources.
func NewSolver(elements ElementProvider, priors PriorTable, opts ...SolverOption) *Solver {
	s := &Solver{params: DefaultParams(), recorder: NopRecorder{}}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	s.catalog = NewCatalog(elements, priors, s.params)
	s.joint = JointStrategy{Joint: NewJointSolver(s.recorder, s.ilpOpts...)}
	s.exhaustive = ExhaustiveStrategy{Sums: NewSumSolver(s.params.MaxSumRange, s.recorder, s.ilpOpts...)}
	s.relaxer = NewRelaxer(s.catalog, s.joint)
	return s
}

// Catalog returns the solver's catalog.
func (s *Solver) Catalog() *Catalog { return s.catalog }

// MostProbable returns the best assignment of counts, relaxing the
// formulation when the strict catalogs cannot balance it.
func (s *Solver) MostProbable(ctx context.Context, counts Counts, opts Options) (*Result, error) {
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := s.relaxer.Run(ctx, counts, opts)
	if err != nil {
		return nil, err
	}
	s.recorder.ObserveSolve(s.joint.Name(), res.Stage, res.Feasible(), time.Since(start))
	logr.FromContextOrDiscard(ctx).V(logging.DEBUG).Info("solved",
		"composition", counts.Key(), "stage", res.Stage.String(), "feasible", res.Feasible(),
		"usual", res.Usual, "elapsed", time.Since(start))
	return res, nil
}

// MostProbableComposition normalizes a fractional composition to integer
// counts before solving. See Composition.Normalize.
func (s *Solver) MostProbableComposition(ctx context.Context, comp Composition, maxDenominator int, opts Options) (*Result, Counts, error) {
	counts, _, err := comp.Normalize(maxDenominator)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.MostProbable(ctx, counts, opts)
	return res, counts, err
}

// Guesses returns every charge-balanced assignment of counts under the
// caller's catalogs, best first. Only opts.Policy and opts.TargetCharge
// apply; no relaxation is attempted. A single element without a balanced
// assignment yields the zero solution.
func (s *Solver) Guesses(ctx context.Context, counts Counts, opts Options) ([]Solution, error) {
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if err := s.catalog.Check(counts); err != nil {
		return nil, err
	}
	start := time.Now()
	entries, err := s.catalog.Entries(counts, opts.Policy, false)
	if err != nil {
		return nil, err
	}
	as, err := s.exhaustive.Assign(ctx, entries, opts.TargetCharge)
	if err != nil {
		return nil, err
	}
	out := make([]Solution, len(as))
	for i, a := range as {
		out[i] = *solutionOf(a, 1)
	}
	s.recorder.ObserveSolve(s.exhaustive.Name(), StageStrict, len(out) > 0, time.Since(start))
	logr.FromContextOrDiscard(ctx).V(logging.DEBUG).Info("ranked guesses",
		"composition", counts.Key(), "count", len(out), "elapsed", time.Since(start))
	return out, nil
}
