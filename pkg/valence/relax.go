package valence

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gitrdm/valencesolver/internal/logging"
)

// Stage is a step of the relaxation state machine. A best-mode solve walks
// the stages in order and stops at the first one that settles the result.
type Stage int

const (
	// StageStrict solves with the caller's catalogs and no compensator.
	StageStrict Stage = iota
	// StageElementary assigns 0 to a bare element.
	StageElementary
	// StageAlloy assigns 0 to every element of an all-metal composition.
	StageAlloy
	// StageBroadened widens metal catalogs and adds the compensator.
	StageBroadened
	// StagePeroxide reinterprets a +1 compensation in XO2 as a peroxide.
	StagePeroxide
	// StageDoubled retries the broadened catalogs with doubled amounts.
	StageDoubled
	// StageDiagnostics reports and strips the compensator.
	StageDiagnostics
	// StageDone is terminal.
	StageDone
)

var stageNames = [...]string{
	StageStrict:      "strict",
	StageElementary:  "elementary",
	StageAlloy:       "alloy",
	StageBroadened:   "broadened",
	StagePeroxide:    "peroxide",
	StageDoubled:     "doubled",
	StageDiagnostics: "diagnostics",
	StageDone:        "done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Comments attached to relaxed results.
const (
	CommentAlloy     = "is alloy"
	CommentBroadened = "used all positive oxidation states of metals"
	CommentPeroxide  = "is peroxide"
	CommentDoubled   = "amounts doubled"
)

// Relaxer runs the staged fallback of best mode.
type Relaxer struct {
	catalog  *Catalog
	strategy Strategy
}

// NewRelaxer creates a relaxer solving each stage with strategy.
func NewRelaxer(catalog *Catalog, strategy Strategy) *Relaxer {
	return &Relaxer{catalog: catalog, strategy: strategy}
}

// relaxRun is the state of one Run call.
type relaxRun struct {
	counts Counts
	opts   Options

	// fallback catalog shared by the broadened and doubled stages
	policy     Policy
	compensate bool
	broadened  bool

	cand      *Assignment
	candStage Stage
	scale     int

	result *Result
}

// Run solves counts, relaxing the formulation stage by stage until one
// yields a result. A composition no stage can balance returns a Result
// with a nil Solution and Stage == StageDone.
//
// Only ErrInvalidInput and context errors are returned.
func (r *Relaxer) Run(ctx context.Context, counts Counts, opts Options) (*Result, error) {
	if err := r.catalog.Check(counts); err != nil {
		return nil, err
	}
	logger := logr.FromContextOrDiscard(ctx)

	run := &relaxRun{counts: counts, opts: opts, scale: 1}
	for stage := StageStrict; stage != StageDone; {
		next, err := r.step(ctx, run, stage)
		if err != nil {
			return nil, err
		}
		logger.V(logging.TRACE).Info("relaxation step", "composition", counts.Key(), "from", stage.String(), "to", next.String())
		stage = next
	}
	if run.result == nil {
		return &Result{Stage: StageDone}, nil
	}
	return run.result, nil
}

func (r *Relaxer) step(ctx context.Context, run *relaxRun, stage Stage) (Stage, error) {
	switch stage {
	case StageStrict:
		return r.strict(ctx, run)
	case StageElementary:
		return r.elementary(run), nil
	case StageAlloy:
		return r.alloy(run)
	case StageBroadened:
		return r.broaden(ctx, run)
	case StagePeroxide:
		return r.peroxide(run), nil
	case StageDoubled:
		return r.double(ctx, run)
	case StageDiagnostics:
		return r.diagnose(run), nil
	}
	return StageDone, fmt.Errorf("valence: unknown stage %s", stage)
}

func (r *Relaxer) best(ctx context.Context, entries []Entry, target int) (*Assignment, error) {
	as, err := r.strategy.Assign(ctx, entries, target)
	if err != nil || len(as) == 0 {
		return nil, err
	}
	return as[0], nil
}

// strict never widens metal catalogs; that is left to the broadened stage.
func (r *Relaxer) strict(ctx context.Context, run *relaxRun) (Stage, error) {
	policy := run.opts.Policy
	policy.AllMetalPositiveStates = false
	entries, err := r.catalog.Entries(run.counts, policy, false)
	if err != nil {
		return StageDone, err
	}
	a, err := r.best(ctx, entries, run.opts.TargetCharge)
	if err != nil {
		return StageDone, err
	}
	if a == nil {
		return StageElementary, nil
	}
	run.result = &Result{Solution: solutionOf(a, 1), Usual: true, Stage: StageStrict}
	return StageDone, nil
}

// A bare element without a strict solution is neutral.
func (r *Relaxer) elementary(run *relaxRun) Stage {
	if len(run.counts) != 1 || run.opts.TargetCharge != 0 {
		return StageAlloy
	}
	run.result = zeroResult(run.counts, StageElementary, true)
	return StageDone
}

func (r *Relaxer) alloy(run *relaxRun) (Stage, error) {
	if !run.opts.DetectAlloys || run.opts.TargetCharge != 0 {
		return StageBroadened, nil
	}
	metals, err := r.catalog.AllMetals(run.counts)
	if err != nil {
		return StageDone, err
	}
	if !metals {
		return StageBroadened, nil
	}
	run.result = zeroResult(run.counts, StageAlloy, false, CommentAlloy)
	return StageDone, nil
}

func (r *Relaxer) broaden(ctx context.Context, run *relaxRun) (Stage, error) {
	run.policy = run.opts.Policy
	if run.opts.BroadenMetals {
		run.policy.AllMetalPositiveStates = true
		anyMetal, err := r.catalog.AnyMetal(run.counts)
		if err != nil {
			return StageDone, err
		}
		run.broadened = anyMetal
	}
	run.compensate = run.opts.AddCompensator

	entries, err := r.catalog.Entries(run.counts, run.policy, run.compensate)
	if err != nil {
		return StageDone, err
	}
	a, err := r.best(ctx, entries, run.opts.TargetCharge)
	if err != nil {
		return StageDone, err
	}
	if a == nil {
		return StageDoubled, nil
	}
	run.cand, run.candStage = a, StageBroadened
	return StagePeroxide, nil
}

// peroxide decides what a large compensation means. An XO2 composition
// compensated by exactly +1 per oxygen is a peroxide; any other large
// compensation is retried with doubled amounts.
func (r *Relaxer) peroxide(run *relaxRun) Stage {
	x, ok := run.cand.Compensation()
	if !ok || !r.large(x) {
		return StageDiagnostics
	}
	if x != Int(1) || len(run.counts) != 2 || run.counts[Oxygen] != 2 {
		return StageDoubled
	}

	sol := solutionOf(run.cand, 1)
	sol.Valences[Oxygen] = sol.Valences[Oxygen].Add(x)
	run.result = &Result{
		Solution: sol,
		Usual:    true,
		Comments: []string{CommentPeroxide},
		Stage:    StagePeroxide,
	}
	return StageDone
}

// double retries the fallback catalogs with every amount doubled, which
// balances valence-skipping compositions. The doubled assignment replaces
// the broadened one when it needs less compensation.
func (r *Relaxer) double(ctx context.Context, run *relaxRun) (Stage, error) {
	if !run.opts.TryDoubling {
		return StageDiagnostics, nil
	}
	entries, err := r.catalog.Entries(run.counts.Scale(2), run.policy, run.compensate)
	if err != nil {
		return StageDone, err
	}
	a, err := r.best(ctx, entries, 2*run.opts.TargetCharge)
	if err != nil {
		return StageDone, err
	}
	if a != nil && (run.cand == nil || compensationOf(a).Cmp(compensationOf(run.cand)) < 0) {
		run.cand, run.candStage, run.scale = a, StageDoubled, 2
	}
	return StageDiagnostics, nil
}

func (r *Relaxer) diagnose(run *relaxRun) Stage {
	if run.cand == nil {
		return StageDone
	}
	var comments []string
	if run.broadened {
		comments = append(comments, CommentBroadened)
	}
	if run.candStage == StageDoubled {
		comments = append(comments, CommentDoubled)
	}
	x, _ := run.cand.Compensation()
	switch {
	case x.Num < 0:
		comments = append(comments, fmt.Sprintf("oxygen deficiency (%s=%s)", CompensatorSymbol, x))
	case x.Num > 0:
		comments = append(comments, fmt.Sprintf("oxygen excess or anomalous oxidation (%s=%s)", CompensatorSymbol, x))
	}
	if r.large(x) {
		comments = append(comments, fmt.Sprintf("warning: large charge compensation (%s=%s)", CompensatorSymbol, x))
	}
	run.result = &Result{
		Solution:     solutionOf(run.cand, run.scale),
		Comments:     comments,
		Stage:        run.candStage,
		Compensation: x,
		Compensated:  !x.IsZero(),
	}
	return StageDone
}

func (r *Relaxer) large(x Rational) bool {
	return x.Abs().Float64() > r.catalog.Params().WarningThreshold
}

// compensationOf returns |compensation| of a, zero when a has none.
func compensationOf(a *Assignment) Rational {
	x, _ := a.Compensation()
	return x.Abs()
}

// solutionOf converts a into a public solution, dropping the compensator.
// scale is the factor the amounts were multiplied by.
func solutionOf(a *Assignment, scale int) *Solution {
	sol := &Solution{Valences: make(map[string]Rational, len(a.Entries)), Score: a.RealScore() / float64(scale)}
	for i, en := range a.Entries {
		if en.Element.IsCompensator() {
			continue
		}
		sol.Valences[en.Element.Symbol()] = a.Average(i)
	}
	return sol
}

func zeroResult(counts Counts, stage Stage, usual bool, comments ...string) *Result {
	sol := &Solution{Valences: make(map[string]Rational, len(counts))}
	for sym := range counts {
		sol.Valences[sym] = Int(0)
	}
	return &Result{Solution: sol, Usual: usual, Comments: comments, Stage: stage}
}
