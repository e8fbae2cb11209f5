// Package ilp provides a small integer linear programming engine.
// This file defines the Model abstraction for declaratively building
// integer programs: bounded integer variables, linear constraints and a
// single linear objective.
package ilp

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
)

// Inf is the upper-bound sentinel for variables without an upper bound.
const Inf = math.MaxInt32

// Sense selects the optimisation direction of the objective.
type Sense int

const (
	// Maximize selects the largest objective value.
	Maximize Sense = iota
	// Minimize selects the smallest objective value.
	Minimize
)

func (s Sense) String() string {
	if s == Minimize {
		return "minimize"
	}
	return "maximize"
}

// Relation is the comparison used by a linear constraint.
type Relation int

const (
	// Equal requires Σ a·x = rhs.
	Equal Relation = iota
	// LessEqual requires Σ a·x ≤ rhs.
	LessEqual
	// GreaterEqual requires Σ a·x ≥ rhs.
	GreaterEqual
)

func (r Relation) String() string {
	switch r {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "="
	}
}

// ErrInvalidModel is returned by Validate for structurally broken models.
var ErrInvalidModel = errors.New("ilp: invalid model")

// Variable is an integer decision variable with inclusive bounds.
// Upper equal to Inf means the variable is unbounded above.
type Variable struct {
	id    int
	name  string
	lower int
	upper int
}

// ID returns the position of the variable in its model.
func (v *Variable) ID() int { return v.id }

// Name returns the debugging name of the variable.
func (v *Variable) Name() string { return v.name }

// Lower returns the inclusive lower bound.
func (v *Variable) Lower() int { return v.lower }

// Upper returns the inclusive upper bound, or Inf.
func (v *Variable) Upper() int { return v.upper }

func (v *Variable) String() string {
	if v.upper == Inf {
		return fmt.Sprintf("%s∈[%d..∞)", v.name, v.lower)
	}
	return fmt.Sprintf("%s∈[%d..%d]", v.name, v.lower, v.upper)
}

// Term is one coefficient·variable product of a linear expression.
type Term struct {
	Var   *Variable
	Coeff float64
}

// T is shorthand for constructing a Term.
func T(coeff float64, v *Variable) Term { return Term{Var: v, Coeff: coeff} }

// Constraint is a linear relation Σ terms (rel) rhs.
// Constraints are immutable after creation.
type Constraint struct {
	name  string
	terms []Term
	rel   Relation
	rhs   float64
}

// Name returns the constraint's debugging name.
func (c *Constraint) Name() string { return c.name }

// Relation returns the comparison of the constraint.
func (c *Constraint) Relation() Relation { return c.rel }

// RHS returns the right-hand side.
func (c *Constraint) RHS() float64 { return c.rhs }

func (c *Constraint) String() string {
	return fmt.Sprintf("%s: %s %s %g", c.name, formatTerms(c.terms), c.rel, c.rhs)
}

// Model is an integer linear program under construction.
//
// Models are built sequentially and are read-only while a Solver works on
// them, so one model may be solved by several solvers concurrently.
type Model struct {
	variables   []*Variable
	constraints []*Constraint
	objective   []Term
	sense       Sense

	mu sync.RWMutex
}

// NewModel creates an empty maximisation model.
func NewModel() *Model {
	return &Model{
		variables:   make([]*Variable, 0),
		constraints: make([]*Constraint, 0),
	}
}

// NewVariable adds an integer variable with bounds [lower, upper].
// Pass Inf as upper for a variable that is unbounded above.
func (m *Model) NewVariable(name string, lower, upper int) *Variable {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := len(m.variables)
	if name == "" {
		name = fmt.Sprintf("x%d", id)
	}
	v := &Variable{id: id, name: name, lower: lower, upper: upper}
	m.variables = append(m.variables, v)
	return v
}

// Variables returns all variables in creation order.
// The returned slice should not be modified.
func (m *Model) Variables() []*Variable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.variables
}

// VariableCount returns the number of variables in the model.
func (m *Model) VariableCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.variables)
}

// AddConstraint posts Σ terms (rel) rhs. Terms referring to the same
// variable are summed.
func (m *Model) AddConstraint(name string, terms []Term, rel Relation, rhs float64) *Constraint {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("c%d", len(m.constraints))
	}
	tcopy := make([]Term, len(terms))
	copy(tcopy, terms)
	c := &Constraint{name: name, terms: tcopy, rel: rel, rhs: rhs}
	m.constraints = append(m.constraints, c)
	return c
}

// Constraints returns all constraints in posting order.
// The returned slice should not be modified.
func (m *Model) Constraints() []*Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.constraints
}

// SetObjective replaces the objective.
func (m *Model) SetObjective(sense Sense, terms []Term) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sense = sense
	m.objective = make([]Term, len(terms))
	copy(m.objective, terms)
}

// Sense returns the optimisation direction.
func (m *Model) Sense() Sense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sense
}

// Validate checks that the model is well-formed and ready for solving.
// Returns an error wrapping ErrInvalidModel if:
//   - any variable has lower > upper
//   - any term references a nil variable or one from another model
//   - any coefficient or right-hand side is NaN or infinite
func (m *Model) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.variables {
		if v.lower > v.upper {
			return fmt.Errorf("%w: variable %s has empty bounds [%d..%d]", ErrInvalidModel, v.name, v.lower, v.upper)
		}
	}
	check := func(where string, terms []Term) error {
		for i, t := range terms {
			if t.Var == nil {
				return fmt.Errorf("%w: %s term %d has nil variable", ErrInvalidModel, where, i)
			}
			if t.Var.id >= len(m.variables) || m.variables[t.Var.id] != t.Var {
				return fmt.Errorf("%w: %s references unknown variable %s", ErrInvalidModel, where, t.Var.name)
			}
			if !finite(t.Coeff) {
				return fmt.Errorf("%w: %s has non-finite coefficient on %s", ErrInvalidModel, where, t.Var.name)
			}
		}
		return nil
	}
	for _, c := range m.constraints {
		if err := check("constraint "+c.name, c.terms); err != nil {
			return err
		}
		if !finite(c.rhs) {
			return fmt.Errorf("%w: constraint %s has non-finite rhs", ErrInvalidModel, c.name)
		}
	}
	return check("objective", m.objective)
}

// Evaluate returns the objective value of an assignment in model order.
func (m *Model) Evaluate(values []int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, t := range m.objective {
		total += t.Coeff * float64(values[t.Var.id])
	}
	return total
}

// Satisfied reports whether an assignment respects every bound and
// constraint, within tol for the linear rows.
func (m *Model) Satisfied(values []int, tol float64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(values) != len(m.variables) {
		return false
	}
	for i, v := range m.variables {
		if values[i] < v.lower || (v.upper != Inf && values[i] > v.upper) {
			return false
		}
	}
	for _, c := range m.constraints {
		lhs := 0.0
		for _, t := range c.terms {
			lhs += t.Coeff * float64(values[t.Var.id])
		}
		switch c.rel {
		case Equal:
			if math.Abs(lhs-c.rhs) > tol {
				return false
			}
		case LessEqual:
			if lhs > c.rhs+tol {
				return false
			}
		case GreaterEqual:
			if lhs < c.rhs-tol {
				return false
			}
		}
	}
	return true
}

// String returns a human-readable representation of the model.
func (m *Model) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("Model{variables: %d, constraints: %d, sense: %s}",
		len(m.variables), len(m.constraints), m.sense)
}

func formatTerms(terms []Term) string {
	if len(terms) == 0 {
		return "0"
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		name := "?"
		if t.Var != nil {
			name = t.Var.name
		}
		parts[i] = fmt.Sprintf("%g·%s", t.Coeff, name)
	}
	return strings.Join(parts, " + ")
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
