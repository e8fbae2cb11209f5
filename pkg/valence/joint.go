package valence

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gitrdm/valencesolver/internal/logging"
	"github.com/gitrdm/valencesolver/pkg/ilp"
)

// Assignment is a charge-balanced choice of states for a list of entries.
type Assignment struct {
	Entries []Entry
	// Sums holds Σ state over the sites of each entry.
	Sums []int
	// Sites holds the number of sites per candidate state of each entry.
	// It is nil for assignments produced from per-element sums.
	Sites [][]int
	// Contributions holds the score contributed by each entry.
	Contributions []float64
	// Score is the total score, compensator included.
	Score float64
}

// Average returns the average state of entry i.
func (a *Assignment) Average(i int) Rational {
	return NewRational(a.Sums[i], a.Entries[i].Amount)
}

// Index returns the position of e in the assignment, or -1.
func (a *Assignment) Index(e Element) int {
	for i, en := range a.Entries {
		if en.Element == e {
			return i
		}
	}
	return -1
}

// Compensation returns the compensator's average shift per oxygen site and
// whether a compensator entry is present.
func (a *Assignment) Compensation() (Rational, bool) {
	i := a.Index(Compensator)
	if i < 0 {
		return Int(0), false
	}
	return a.Average(i), true
}

// RealScore returns the score without the compensator's contribution.
func (a *Assignment) RealScore() float64 {
	total := 0.0
	for i, en := range a.Entries {
		if !en.Element.IsCompensator() {
			total += a.Contributions[i]
		}
	}
	return total
}

// Charge returns Σ sums, the total charge of the assignment.
func (a *Assignment) Charge() int {
	total := 0
	for _, s := range a.Sums {
		total += s
	}
	return total
}

// JointSolver finds the best assignment of all entries at once.
type JointSolver struct {
	ilpOpts  []ilp.Option
	recorder Recorder
}

// NewJointSolver creates a joint solver; opts are passed to every ILP solve.
func NewJointSolver(recorder Recorder, opts ...ilp.Option) *JointSolver {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &JointSolver{ilpOpts: opts, recorder: recorder}
}

// Solve builds one integer program with a variable x_{e,s} per entry and
// candidate state, one amount row per entry and one charge row:
//
//	maximize Σ score_{e,s}·x_{e,s}
//	s.t.     Σ_s x_{e,s} = amount_e       for every e
//	         Σ_{e,s} s·x_{e,s} = target
//
// It returns nil without error when no assignment exists, when an entry has
// no candidate states, and when the ILP engine fails or stops at a node
// limit; such failures are logged at debug level. Only context errors are
// returned.
func (js *JointSolver) Solve(ctx context.Context, entries []Entry, target int) (*Assignment, error) {
	logger := logr.FromContextOrDiscard(ctx)
	if len(entries) == 0 {
		return nil, nil
	}
	for _, en := range entries {
		if len(en.States) == 0 {
			logger.V(logging.DEBUG).Info("empty catalog", "element", en.Element.String())
			return nil, nil
		}
	}

	m := ilp.NewModel()
	vars := make([][]*ilp.Variable, len(entries))
	var charge, objective []ilp.Term
	for i, en := range entries {
		vars[i] = make([]*ilp.Variable, len(en.States))
		amount := make([]ilp.Term, len(en.States))
		for k, s := range en.States {
			v := m.NewVariable(fmt.Sprintf("%s%+d", en.Element.Symbol(), s), 0, en.Amount)
			vars[i][k] = v
			amount[k] = ilp.T(1, v)
			if s != 0 {
				charge = append(charge, ilp.T(float64(s), v))
			}
			objective = append(objective, ilp.T(en.Scores[k], v))
		}
		m.AddConstraint("amount_"+en.Element.Symbol(), amount, ilp.Equal, float64(en.Amount))
	}
	m.AddConstraint("charge", charge, ilp.Equal, float64(target))
	m.SetObjective(ilp.Maximize, objective)

	res, err := ilp.NewSolver(m, js.ilpOpts...).Solve(ctx)
	if res != nil {
		js.recorder.ObserveILP(res.Status.String(), res.Nodes)
	}
	if cerr := contextError(ctx, err); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		logger.V(logging.DEBUG).Info("joint solve failed, treating as infeasible", "error", err.Error())
		return nil, nil
	}
	if res.Status != ilp.StatusOptimal {
		logger.V(logging.DEBUG).Info("no joint assignment", "status", res.Status.String(), "nodes", res.Nodes)
		return nil, nil
	}

	a := &Assignment{
		Entries:       entries,
		Sums:          make([]int, len(entries)),
		Sites:         make([][]int, len(entries)),
		Contributions: make([]float64, len(entries)),
	}
	for i, en := range entries {
		a.Sites[i] = make([]int, len(en.States))
		for k, s := range en.States {
			x := res.Value(vars[i][k])
			a.Sites[i][k] = x
			a.Sums[i] += s * x
			a.Contributions[i] += en.Scores[k] * float64(x)
		}
		a.Score += a.Contributions[i]
	}
	logger.V(logging.TRACE).Info("joint assignment", "sums", a.Sums, "score", a.Score, "nodes", res.Nodes)
	return a, nil
}
