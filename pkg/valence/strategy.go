package valence

import (
	"context"
	"time"
)

// Strategy turns a list of entries into charge-balanced assignments, best
// first.
type Strategy interface {
	Name() string
	Assign(ctx context.Context, entries []Entry, target int) ([]*Assignment, error)
}

// JointStrategy solves all elements in one integer program. It is fast and
// returns at most the single best assignment.
type JointStrategy struct {
	Joint *JointSolver
}

// Name implements Strategy.
func (JointStrategy) Name() string { return "joint" }

// Assign implements Strategy.
func (s JointStrategy) Assign(ctx context.Context, entries []Entry, target int) ([]*Assignment, error) {
	a, err := s.Joint.Solve(ctx, entries, target)
	if err != nil || a == nil {
		return nil, err
	}
	return []*Assignment{a}, nil
}

// ExhaustiveStrategy enumerates the reachable sums of each element and
// ranks every balanced combination. It is slower but returns the complete
// ranked list.
type ExhaustiveStrategy struct {
	Sums *SumSolver
}

// Name implements Strategy.
func (ExhaustiveStrategy) Name() string { return "exhaustive" }

// Assign implements Strategy.
func (s ExhaustiveStrategy) Assign(ctx context.Context, entries []Entry, target int) ([]*Assignment, error) {
	tables := make([]ElementSums, len(entries))
	for i, en := range entries {
		t, err := s.Sums.Sums(ctx, en)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	return Rank(tables, target), nil
}

// Recorder receives solve telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ObserveSolve records one best-mode or exhaustive-mode call.
	ObserveSolve(mode string, stage Stage, feasible bool, elapsed time.Duration)
	// ObserveILP records one integer program solve.
	ObserveILP(status string, nodes int)
}

// NopRecorder discards all telemetry.
type NopRecorder struct{}

// ObserveSolve implements Recorder.
func (NopRecorder) ObserveSolve(string, Stage, bool, time.Duration) {}

// ObserveILP implements Recorder.
func (NopRecorder) ObserveILP(string, int) {}
