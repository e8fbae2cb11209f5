// Package ilp: LP relaxation of a branch-and-bound node.
//
// A node is the model plus tightened variable bounds. Its relaxation drops
// integrality and is handed to gonum's simplex, which only accepts the
// standard form
//
//	minimize cᵀy  s.t.  A·y = b,  y ≥ 0
//
// with A of full row rank and without all-zero rows or columns. The
// conversion below therefore:
//   - shifts every variable by its lower bound (y = x - lower),
//   - removes fixed variables (lower == upper) into the right-hand side,
//   - adds one slack column per inequality row and per finite upper bound,
//   - drops equality rows that are linear combinations of earlier ones,
//     reporting infeasibility when such a row is inconsistent,
//   - fixes columns that appear in no row at zero (or reports the LP
//     unbounded when their cost is negative),
//   - flips rows so that b ≥ 0.
package ilp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	lpFailed
)

// relaxation is the outcome of one LP solve, in minimisation form.
type relaxation struct {
	status    lpStatus
	objective float64
	x         []float64
	err       error
}

// row is one standard-form row before assembly; coeffs are indexed by
// structural column.
type row struct {
	coeffs []float64
	slack  float64
	rhs    float64
}

const zeroTol = 1e-9

// relax solves the LP relaxation of the model restricted to [lo, hi].
// cost is the objective in minimisation form, indexed by variable ID.
func (s *Solver) relax(cost []float64, lo, hi []int) relaxation {
	n := len(lo)

	offset := 0.0
	col := make([]int, n)
	var free []int
	for j := 0; j < n; j++ {
		if hi[j] != Inf && lo[j] > hi[j] {
			return relaxation{status: lpInfeasible}
		}
		offset += cost[j] * float64(lo[j])
		if hi[j] != Inf && hi[j] == lo[j] {
			col[j] = -1
			continue
		}
		col[j] = len(free)
		free = append(free, j)
	}

	var equalities, inequalities []row
	for _, c := range s.model.constraints {
		r := row{coeffs: make([]float64, len(free)), rhs: c.rhs}
		nonzero := false
		for _, t := range c.terms {
			r.rhs -= t.Coeff * float64(lo[t.Var.id])
			if k := col[t.Var.id]; k >= 0 {
				r.coeffs[k] += t.Coeff
			}
		}
		for _, a := range r.coeffs {
			if math.Abs(a) > zeroTol {
				nonzero = true
				break
			}
		}
		switch c.rel {
		case LessEqual:
			r.slack = 1
		case GreaterEqual:
			r.slack = -1
		}
		if !nonzero {
			// Only the slack (if any) remains: the row is a constant check.
			switch {
			case c.rel == Equal && math.Abs(r.rhs) > rhsTol(c.rhs):
				return relaxation{status: lpInfeasible}
			case c.rel == LessEqual && r.rhs < -rhsTol(c.rhs):
				return relaxation{status: lpInfeasible}
			case c.rel == GreaterEqual && r.rhs > rhsTol(c.rhs):
				return relaxation{status: lpInfeasible}
			}
			continue
		}
		if c.rel == Equal {
			equalities = append(equalities, r)
		} else {
			inequalities = append(inequalities, r)
		}
	}

	equalities, ok := independentRows(equalities)
	if !ok {
		return relaxation{status: lpInfeasible}
	}

	rows := make([]row, 0, len(equalities)+len(inequalities)+len(free))
	rows = append(rows, equalities...)
	rows = append(rows, inequalities...)
	for k, j := range free {
		if hi[j] == Inf {
			continue
		}
		r := row{coeffs: make([]float64, len(free)), slack: 1, rhs: float64(hi[j] - lo[j])}
		r.coeffs[k] = 1
		rows = append(rows, r)
	}

	// Structural columns that no row mentions are set to zero, unless
	// lowering the objective along them is free.
	used := make([]bool, len(free))
	for _, r := range rows {
		for k, a := range r.coeffs {
			if math.Abs(a) > zeroTol {
				used[k] = true
			}
		}
	}
	var cols []int
	for k, j := range free {
		if used[k] {
			cols = append(cols, k)
			continue
		}
		if cost[j] < -zeroTol {
			return relaxation{status: lpUnbounded}
		}
	}

	x := make([]float64, n)
	for j := 0; j < n; j++ {
		x[j] = float64(lo[j])
	}
	if len(rows) == 0 {
		return relaxation{status: lpOptimal, objective: offset, x: x}
	}

	slacks := 0
	for _, r := range rows {
		if r.slack != 0 {
			slacks++
		}
	}
	m, width := len(rows), len(cols)+slacks
	A := mat.NewDense(m, width, nil)
	b := make([]float64, m)
	c := make([]float64, width)
	for p, k := range cols {
		c[p] = cost[free[k]]
	}
	next := len(cols)
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for p, k := range cols {
			A.Set(i, p, sign*r.coeffs[k])
		}
		if r.slack != 0 {
			A.Set(i, next, sign*r.slack)
			next++
		}
		b[i] = sign * r.rhs
	}

	opt, y, err := lp.Simplex(c, A, b, s.cfg.tolerance, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return relaxation{status: lpInfeasible}
	case errors.Is(err, lp.ErrUnbounded):
		return relaxation{status: lpUnbounded}
	case err != nil:
		return relaxation{status: lpFailed, err: err}
	}
	for p, k := range cols {
		x[free[k]] += y[p]
	}
	return relaxation{status: lpOptimal, objective: opt + offset, x: x}
}

// independentRows keeps the equality rows that are linearly independent of
// the rows kept before them. A dependent row whose right-hand side does not
// follow from the kept rows makes the system inconsistent.
func independentRows(rows []row) ([]row, bool) {
	type basisRow struct {
		coeffs []float64
		rhs    float64
		pivot  int
	}
	var basis []basisRow
	kept := rows[:0:0]
	for _, r := range rows {
		v := make([]float64, len(r.coeffs))
		copy(v, r.coeffs)
		rhs := r.rhs
		for _, br := range basis {
			f := v[br.pivot]
			if f == 0 {
				continue
			}
			for k := range v {
				v[k] -= f * br.coeffs[k]
			}
			rhs -= f * br.rhs
		}
		pivot, best := -1, 0.0
		for k, a := range v {
			if math.Abs(a) > best {
				pivot, best = k, math.Abs(a)
			}
		}
		if best <= 1e-7 {
			if math.Abs(rhs) > rhsTol(r.rhs) {
				return nil, false
			}
			continue
		}
		scale := v[pivot]
		for k := range v {
			v[k] /= scale
		}
		basis = append(basis, basisRow{coeffs: v, rhs: rhs / scale, pivot: pivot})
		kept = append(kept, r)
	}
	return kept, true
}

func rhsTol(ref float64) float64 {
	return 1e-7 * math.Max(1, math.Abs(ref))
}
