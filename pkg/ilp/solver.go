package ilp

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-logr/logr"

	"github.com/gitrdm/valencesolver/internal/logging"
)

// Status reports how a solve ended.
type Status int

const (
	// StatusOptimal means the returned values are proven optimal.
	StatusOptimal Status = iota
	// StatusInfeasible means no integer point satisfies the model.
	StatusInfeasible
	// StatusUnbounded means the objective can be improved without limit.
	StatusUnbounded
	// StatusLimitReached means a node limit, time limit or cancellation
	// stopped the search; Values holds the incumbent if one was found.
	StatusLimitReached
	// StatusError means an LP relaxation failed numerically.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusLimitReached:
		return "limit-reached"
	default:
		return "error"
	}
}

// ErrSearchLimitReached indicates the search stopped at the configured node
// limit. The returned incumbent is valid but optimality is not proven.
var ErrSearchLimitReached = errors.New("ilp: search limit reached")

// ErrRelaxationFailed wraps numerical failures of the LP relaxation.
var ErrRelaxationFailed = errors.New("ilp: relaxation failed")

// Result is the outcome of Solver.Solve.
type Result struct {
	Status    Status
	Objective float64
	// Values holds one value per model variable in creation order, or nil
	// when no integer point was found.
	Values []int
	// Nodes counts the relaxations solved.
	Nodes int
}

// Value returns the value of v in the result.
func (r *Result) Value(v *Variable) int {
	if r == nil || r.Values == nil {
		return 0
	}
	return r.Values[v.id]
}

// Feasible reports whether the result carries an integer point.
func (r *Result) Feasible() bool {
	return r != nil && r.Values != nil
}

// Option configures a Solver.
type Option func(*solverConfig)

type solverConfig struct {
	nodeLimit int
	timeLimit time.Duration
	tolerance float64
	logger    *logr.Logger
}

// WithNodeLimit limits the number of relaxations solved. When reached, the
// incumbent is returned together with ErrSearchLimitReached.
func WithNodeLimit(n int) Option {
	return func(c *solverConfig) { c.nodeLimit = n }
}

// WithTimeLimit sets a hard time limit. When reached, the incumbent is
// returned together with context.DeadlineExceeded.
func WithTimeLimit(d time.Duration) Option {
	return func(c *solverConfig) { c.timeLimit = d }
}

// WithTolerance sets the simplex optimality tolerance.
func WithTolerance(tol float64) Option {
	return func(c *solverConfig) { c.tolerance = tol }
}

// WithLogger overrides the logger taken from the solve context.
func WithLogger(l logr.Logger) Option {
	return func(c *solverConfig) { c.logger = &l }
}

// integrality tolerance for LP values and constraint checks
const intTol = 1e-6

// Solver runs branch and bound on a Model.
//
// Thread safety: a Solver holds no state between Solve calls, but it is
// not meant to be shared; create one per goroutine. Several solvers may
// share one Model.
type Solver struct {
	model *Model
	cfg   solverConfig
}

// NewSolver creates a solver for the given model.
// The model should be fully constructed before creating the solver.
func NewSolver(model *Model, opts ...Option) *Solver {
	cfg := solverConfig{tolerance: 1e-10}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return &Solver{model: model, cfg: cfg}
}

// Model returns the model being solved.
func (s *Solver) Model() *Model {
	return s.model
}

// node is one subproblem of the search tree: the model with tightened bounds.
// bound is the parent's relaxation objective in minimisation form.
type node struct {
	lo, hi []int
	depth  int
	bound  float64
	seq    int
}

// Solve finds an optimal integer point of the model.
//
// Contract:
//   - infeasible models return StatusInfeasible and a nil error;
//   - unbounded relaxations return StatusUnbounded and a nil error;
//   - cancellation or a time limit returns the incumbent (if any) with
//     StatusLimitReached and ctx.Err();
//   - the node limit returns the incumbent with ErrSearchLimitReached;
//   - a numerically failing relaxation is bisected on its widest bounded
//     variable; when no such variable exists the solve returns StatusError
//     wrapping ErrRelaxationFailed.
//
// The search is depth-first when every variable has a finite upper bound and
// best-bound-first otherwise, so that unbounded columns cannot be split
// forever before an incumbent exists. Each node's relaxation bound is
// compared with the incumbent and pruned when it cannot improve it;
// otherwise the most fractional variable is split into x ≤ ⌊v⌋ and
// x ≥ ⌈v⌉, exploring the side nearer to v first. A relaxation that rounds to
// an integer point violating a constraint is split three ways around the
// rounded value instead. Among equally good integer points the first one
// found is kept, so results are deterministic.
func (s *Solver) Solve(ctx context.Context) (*Result, error) {
	if err := s.model.Validate(); err != nil {
		return nil, err
	}
	if s.cfg.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.timeLimit)
		defer cancel()
	}
	logger := logr.FromContextOrDiscard(ctx)
	if s.cfg.logger != nil {
		logger = *s.cfg.logger
	}

	s.model.mu.RLock()
	defer s.model.mu.RUnlock()

	n := len(s.model.variables)
	// minimisation form of the objective
	cost := make([]float64, n)
	sign := 1.0
	if s.model.sense == Maximize {
		sign = -1
	}
	for _, t := range s.model.objective {
		cost[t.Var.id] += sign * t.Coeff
	}

	root := &node{lo: make([]int, n), hi: make([]int, n), bound: math.Inf(-1)}
	unbounded := false
	for i, v := range s.model.variables {
		root.lo[i], root.hi[i] = v.lower, v.upper
		unbounded = unbounded || v.upper == Inf
	}

	var (
		best     []int
		bestCost = math.Inf(1)
		nodes    int
	)
	result := func(status Status) *Result {
		r := &Result{Status: status, Nodes: nodes}
		if best != nil {
			r.Values = best
			r.Objective = sign * bestCost
		}
		return r
	}

	var open frontier = &depthFirst{}
	if unbounded {
		open = &bestBound{}
	}
	open.add(root)
	for open.Len() > 0 {
		select {
		case <-ctx.Done():
			return result(StatusLimitReached), ctx.Err()
		default:
		}
		if s.cfg.nodeLimit > 0 && nodes >= s.cfg.nodeLimit {
			return result(StatusLimitReached), ErrSearchLimitReached
		}

		nd := open.next()
		if best != nil && nd.bound >= bestCost-zeroTol*math.Max(1, math.Abs(bestCost)) {
			continue
		}
		nodes++

		rel := s.relax(cost, nd.lo, nd.hi)
		switch rel.status {
		case lpInfeasible:
			continue
		case lpUnbounded:
			return result(StatusUnbounded), nil
		case lpFailed:
			// Without a bound the node can still be split exactly as long
			// as some free variable has a finite range.
			j := widestBounded(nd)
			if j < 0 {
				logger.V(logging.DEBUG).Info("relaxation failed", "depth", nd.depth, "nodes", nodes, "error", rel.err.Error())
				return result(StatusError), fmt.Errorf("%w: %v", ErrRelaxationFailed, rel.err)
			}
			logger.V(logging.TRACE).Info("relaxation failed, bisecting", "variable", s.model.variables[j].name, "depth", nd.depth, "error", rel.err.Error())
			mid := nd.lo[j] + (nd.hi[j]-nd.lo[j])/2
			down := nd.child(nd.bound)
			down.hi[j] = mid
			up := nd.child(nd.bound)
			up.lo[j] = mid + 1
			open.add(up)
			open.add(down)
			continue
		}

		if best != nil && rel.objective >= bestCost-zeroTol*math.Max(1, math.Abs(bestCost)) {
			continue
		}

		j := mostFractional(rel.x)
		if j < 0 {
			vals := make([]int, n)
			for i, x := range rel.x {
				vals[i] = int(math.Round(x))
			}
			if !s.satisfied(vals) {
				// Rounding noise: split around the rounded value of the
				// least integral free variable.
				k := roundingBranch(nd, rel.x)
				if k < 0 {
					continue
				}
				r := vals[k]
				if r > nd.lo[k] {
					below := nd.child(rel.objective)
					below.hi[k] = r - 1
					open.add(below)
				}
				if nd.hi[k] == Inf || r < nd.hi[k] {
					above := nd.child(rel.objective)
					above.lo[k] = r + 1
					open.add(above)
				}
				at := nd.child(rel.objective)
				at.lo[k], at.hi[k] = r, r
				open.add(at)
				continue
			}
			c := 0.0
			for i, v := range vals {
				c += cost[i] * float64(v)
			}
			if best == nil || c < bestCost {
				best, bestCost = vals, c
				logger.V(logging.TRACE).Info("new incumbent", "objective", sign*c, "nodes", nodes, "depth", nd.depth)
			}
			continue
		}

		v := rel.x[j]
		fl := math.Floor(v)
		down := nd.child(rel.objective)
		down.hi[j] = int(fl)
		up := nd.child(rel.objective)
		up.lo[j] = int(fl) + 1
		// the side added last is explored first
		if v-fl > 0.5 {
			open.add(down)
			open.add(up)
		} else {
			open.add(up)
			open.add(down)
		}
	}

	if best == nil {
		return result(StatusInfeasible), nil
	}
	return result(StatusOptimal), nil
}

func (nd *node) child(bound float64) *node {
	c := &node{lo: make([]int, len(nd.lo)), hi: make([]int, len(nd.hi)), depth: nd.depth + 1, bound: bound}
	copy(c.lo, nd.lo)
	copy(c.hi, nd.hi)
	return c
}

// frontier holds the open nodes of the search.
type frontier interface {
	add(*node)
	next() *node
	Len() int
}

// depthFirst is a LIFO stack.
type depthFirst struct {
	nodes []*node
}

func (f *depthFirst) add(nd *node) { f.nodes = append(f.nodes, nd) }

func (f *depthFirst) next() *node {
	nd := f.nodes[len(f.nodes)-1]
	f.nodes = f.nodes[:len(f.nodes)-1]
	return nd
}

func (f *depthFirst) Len() int { return len(f.nodes) }

// bestBound pops the node with the lowest bound; among equal bounds the
// most recently added one, as in depthFirst.
type bestBound struct {
	nodes []*node
	seq   int
}

func (f *bestBound) add(nd *node) {
	f.seq++
	nd.seq = f.seq
	heap.Push(f, nd)
}

func (f *bestBound) next() *node { return heap.Pop(f).(*node) }

func (f *bestBound) Len() int { return len(f.nodes) }

func (f *bestBound) Less(i, j int) bool {
	a, b := f.nodes[i], f.nodes[j]
	if a.bound != b.bound {
		return a.bound < b.bound
	}
	return a.seq > b.seq
}

func (f *bestBound) Swap(i, j int) { f.nodes[i], f.nodes[j] = f.nodes[j], f.nodes[i] }

func (f *bestBound) Push(x any) { f.nodes = append(f.nodes, x.(*node)) }

func (f *bestBound) Pop() any {
	old := f.nodes
	nd := old[len(old)-1]
	old[len(old)-1] = nil
	f.nodes = old[:len(old)-1]
	return nd
}

// roundingBranch returns the free variable of nd whose relaxation value is
// farthest from an integer, or -1 if every variable is fixed.
func roundingBranch(nd *node, x []float64) int {
	idx, worst := -1, -1.0
	for j, v := range x {
		if nd.hi[j] != Inf && nd.lo[j] == nd.hi[j] {
			continue
		}
		if f := math.Abs(v - math.Round(v)); f > worst {
			idx, worst = j, f
		}
	}
	return idx
}

// widestBounded returns the free variable with the widest finite range, or
// -1 if every free variable is unbounded above.
func widestBounded(nd *node) int {
	idx, width := -1, 0
	for j := range nd.lo {
		if nd.hi[j] == Inf {
			continue
		}
		if w := nd.hi[j] - nd.lo[j]; w > width {
			idx, width = j, w
		}
	}
	return idx
}

// mostFractional returns the index of the value farthest from an integer,
// or -1 if every value is integral within intTol.
func mostFractional(x []float64) int {
	idx, best := -1, intTol
	for i, v := range x {
		f := math.Abs(v - math.Round(v))
		if f > best {
			idx, best = i, f
		}
	}
	return idx
}

// satisfied is Model.Satisfied without re-taking the read lock.
func (s *Solver) satisfied(values []int) bool {
	for i, v := range s.model.variables {
		if values[i] < v.lower || (v.upper != Inf && values[i] > v.upper) {
			return false
		}
	}
	for _, c := range s.model.constraints {
		lhs := 0.0
		for _, t := range c.terms {
			lhs += t.Coeff * float64(values[t.Var.id])
		}
		switch c.rel {
		case Equal:
			if math.Abs(lhs-c.rhs) > intTol {
				return false
			}
		case LessEqual:
			if lhs > c.rhs+intTol {
				return false
			}
		case GreaterEqual:
			if lhs < c.rhs-intTol {
				return false
			}
		}
	}
	return true
}
