package ilp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SolverSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *SolverSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestSolverSuite(t *testing.T) {
	suite.Run(t, new(SolverSuite))
}

// Classic three-item knapsack whose LP optimum is already integral.
func (s *SolverSuite) TestKnapsackIntegralRelaxation() {
	m := NewModel()
	a := m.NewVariable("a", 0, Inf)
	b := m.NewVariable("b", 0, Inf)
	c := m.NewVariable("c", 0, Inf)
	m.AddConstraint("r1", []Term{T(2, a), T(3, b), T(1, c)}, LessEqual, 5)
	m.AddConstraint("r2", []Term{T(4, a), T(1, b), T(2, c)}, LessEqual, 11)
	m.AddConstraint("r3", []Term{T(3, a), T(4, b), T(2, c)}, LessEqual, 8)
	m.SetObjective(Maximize, []Term{T(5, a), T(4, b), T(3, c)})

	res, err := NewSolver(m).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusOptimal, res.Status)
	s.InDelta(13, res.Objective, 1e-9)
	s.Equal(2, res.Value(a))
	s.Equal(0, res.Value(b))
	s.Equal(1, res.Value(c))
	s.True(m.Satisfied(res.Values, 1e-9))
}

// 2x + 2y ≤ 3 has LP optimum 1.5 but integer optimum 1.
func (s *SolverSuite) TestBranchingClosesGap() {
	m := NewModel()
	x := m.NewVariable("x", 0, 10)
	y := m.NewVariable("y", 0, 10)
	m.AddConstraint("cap", []Term{T(2, x), T(2, y)}, LessEqual, 3)
	m.SetObjective(Maximize, []Term{T(1, x), T(1, y)})

	res, err := NewSolver(m).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusOptimal, res.Status)
	s.InDelta(1, res.Objective, 1e-9)
	s.Equal(1, res.Value(x)+res.Value(y))
	s.Greater(res.Nodes, 1)
}

func (s *SolverSuite) TestMinimize() {
	m := NewModel()
	x := m.NewVariable("x", 0, 10)
	y := m.NewVariable("y", 0, 10)
	m.AddConstraint("floor", []Term{T(1, x), T(1, y)}, GreaterEqual, 2.5)
	m.SetObjective(Minimize, []Term{T(1, x), T(1, y)})

	res, err := NewSolver(m).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusOptimal, res.Status)
	s.InDelta(3, res.Objective, 1e-9)
}

// Fe3O4 style balance: a+b = 3, 2a + 3b = 8.
func (s *SolverSuite) TestEqualityBalance() {
	m := NewModel()
	fe2 := m.NewVariable("Fe2", 0, Inf)
	fe3 := m.NewVariable("Fe3", 0, Inf)
	o := m.NewVariable("O-2", 0, Inf)
	m.AddConstraint("Fe", []Term{T(1, fe2), T(1, fe3)}, Equal, 3)
	m.AddConstraint("O", []Term{T(1, o)}, Equal, 4)
	m.AddConstraint("charge", []Term{T(2, fe2), T(3, fe3), T(-2, o)}, Equal, 0)
	m.SetObjective(Maximize, []Term{T(0.35, fe2), T(0.6, fe3), T(1, o)})

	res, err := NewSolver(m).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusOptimal, res.Status)
	s.Equal([]int{1, 2, 4}, res.Values)
}

// 3x + 2y = 2z with every column unbounded above: the relaxation stays
// feasible on every up branch, so the search must not dive forever.
func (s *SolverSuite) TestMinimizeUnboundedColumns() {
	m := NewModel()
	x := m.NewVariable("Fe+3", 1, Inf)
	y := m.NewVariable("Mg+2", 1, Inf)
	z := m.NewVariable("O-2", 1, Inf)
	m.AddConstraint("charge", []Term{T(3, x), T(2, y), T(-2, z)}, Equal, 0)
	m.SetObjective(Minimize, []Term{T(1, x), T(1, y), T(1, z)})

	res, err := NewSolver(m, WithNodeLimit(1000)).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusOptimal, res.Status)
	s.InDelta(7, res.Objective, 1e-9)
	s.Equal([]int{2, 1, 4}, res.Values)
}

// The relaxation 2.0000005 is integral within tolerance but x = 2 breaks
// the row, so the node must be split rather than dropped.
func (s *SolverSuite) TestRoundedPointViolatingRowIsSplit() {
	m := NewModel()
	x := m.NewVariable("x", 0, 3)
	m.AddConstraint("floor", []Term{T(1e5, x)}, GreaterEqual, 200000.05)
	m.SetObjective(Minimize, []Term{T(1, x)})

	res, err := NewSolver(m).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusOptimal, res.Status)
	s.Equal([]int{3}, res.Values)
}

func (s *SolverSuite) TestInfeasibleParity() {
	m := NewModel()
	x := m.NewVariable("x", 0, 5)
	m.AddConstraint("odd", []Term{T(2, x)}, Equal, 1)
	m.SetObjective(Maximize, []Term{T(1, x)})

	res, err := NewSolver(m).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusInfeasible, res.Status)
	s.False(res.Feasible())
	s.Nil(res.Values)
}

func (s *SolverSuite) TestDependentEqualities() {
	build := func(rhs float64) *Model {
		m := NewModel()
		x := m.NewVariable("x", 0, 5)
		y := m.NewVariable("y", 0, 5)
		m.AddConstraint("a", []Term{T(1, x), T(1, y)}, Equal, 2)
		m.AddConstraint("b", []Term{T(2, x), T(2, y)}, Equal, rhs)
		m.SetObjective(Maximize, []Term{T(1, x)})
		return m
	}

	res, err := NewSolver(build(4)).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusOptimal, res.Status)
	s.Equal([]int{2, 0}, res.Values)

	res, err = NewSolver(build(5)).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusInfeasible, res.Status)
}

func (s *SolverSuite) TestFixedVariables() {
	m := NewModel()
	x := m.NewVariable("x", 3, 3)
	y := m.NewVariable("y", 0, 10)
	m.AddConstraint("sum", []Term{T(1, x), T(1, y)}, Equal, 7)
	m.SetObjective(Maximize, []Term{T(1, y)})

	res, err := NewSolver(m).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int{3, 4}, res.Values)
}

func (s *SolverSuite) TestUnbounded() {
	m := NewModel()
	x := m.NewVariable("x", 0, Inf)
	m.SetObjective(Maximize, []Term{T(1, x)})

	res, err := NewSolver(m).Solve(s.ctx)
	s.Require().NoError(err)
	s.Equal(StatusUnbounded, res.Status)
}

func (s *SolverSuite) TestNodeLimit() {
	m := NewModel()
	x := m.NewVariable("x", 0, 10)
	y := m.NewVariable("y", 0, 10)
	m.AddConstraint("cap", []Term{T(2, x), T(2, y)}, LessEqual, 3)
	m.SetObjective(Maximize, []Term{T(1, x), T(1, y)})

	res, err := NewSolver(m, WithNodeLimit(1)).Solve(s.ctx)
	s.True(errors.Is(err, ErrSearchLimitReached))
	s.Equal(StatusLimitReached, res.Status)
	s.Equal(1, res.Nodes)
}

func (s *SolverSuite) TestCancelledContext() {
	m := NewModel()
	x := m.NewVariable("x", 0, 10)
	m.SetObjective(Maximize, []Term{T(1, x)})

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	res, err := NewSolver(m).Solve(ctx)
	s.ErrorIs(err, context.Canceled)
	s.Equal(StatusLimitReached, res.Status)
	s.False(res.Feasible())
}

func TestRoundingBranch(t *testing.T) {
	nd := &node{lo: []int{2, 0, 0}, hi: []int{2, 5, Inf}}
	assert.Equal(t, 2, roundingBranch(nd, []float64{2, 1.0000001, 3.0000004}))
	assert.Equal(t, 1, roundingBranch(nd, []float64{2, 1, 3}))

	fixed := &node{lo: []int{1, 4}, hi: []int{1, 4}}
	assert.Equal(t, -1, roundingBranch(fixed, []float64{1, 4}))
}

func TestBestBoundOrder(t *testing.T) {
	f := &bestBound{}
	f.add(&node{bound: 3})
	f.add(&node{bound: 1, depth: 1})
	f.add(&node{bound: 1, depth: 2})
	f.add(&node{bound: 2})

	var got []float64
	first := f.next()
	assert.Equal(t, 2, first.depth, "equal bounds pop last-added first")
	got = append(got, first.bound)
	for f.Len() > 0 {
		got = append(got, f.next().bound)
	}
	assert.Equal(t, []float64{1, 1, 2, 3}, got)
}

func TestValidate(t *testing.T) {
	m := NewModel()
	m.NewVariable("bad", 3, 1)
	require.ErrorIs(t, m.Validate(), ErrInvalidModel)

	other := NewModel()
	foreign := other.NewVariable("z", 0, 1)
	m2 := NewModel()
	m2.NewVariable("x", 0, 1)
	m2.AddConstraint("c", []Term{T(1, foreign), T(1, foreign)}, Equal, 1)
	_, err := NewSolver(m2).Solve(context.Background())
	require.ErrorIs(t, err, ErrInvalidModel)

	m3 := NewModel()
	m3.AddConstraint("nil", []Term{{Coeff: 1}}, Equal, 0)
	assert.ErrorIs(t, m3.Validate(), ErrInvalidModel)
}

func TestStrings(t *testing.T) {
	m := NewModel()
	x := m.NewVariable("", 0, Inf)
	c := m.AddConstraint("", []Term{T(2, x)}, LessEqual, 4)
	assert.Equal(t, "x0∈[0..∞)", x.String())
	assert.Equal(t, "c0: 2·x0 <= 4", c.String())
	assert.Equal(t, "Model{variables: 1, constraints: 1, sense: maximize}", m.String())
	assert.Equal(t, "limit-reached", StatusLimitReached.String())
}
