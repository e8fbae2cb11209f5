package valence

import (
	"context"
	"fmt"
	"sort"

	"github.com/gitrdm/valencesolver/pkg/ilp"
)

// FormulaGuess is the smallest composition realising a set of valences.
type FormulaGuess struct {
	Counts Counts `json:"counts" yaml:"counts"`
	// Sites counts the atoms of each element in each state.
	Sites map[string]map[int]int `json:"sites" yaml:"sites"`
	Atoms int                    `json:"atoms" yaml:"atoms"`
}

// GuessFormula finds the composition with the fewest atoms in which every
// (element, state) pair of states occurs at least once and the total
// charge equals target. It returns nil without error when no such
// composition exists.
//
//	{Fe: [3], Mg: [2], O: [-2]} → MgFe2O4
func GuessFormula(ctx context.Context, states map[string][]int, target int, opts ...ilp.Option) (*FormulaGuess, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: no elements", ErrInvalidInput)
	}
	syms := make([]string, 0, len(states))
	for sym, ss := range states {
		if len(ss) == 0 {
			return nil, fmt.Errorf("%w: no states for %s", ErrInvalidInput, sym)
		}
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	upper := siteBound(states, target)

	type site struct {
		sym   string
		state int
		v     *ilp.Variable
	}
	m := ilp.NewModel()
	var sites []site
	var charge, atoms []ilp.Term
	for _, sym := range syms {
		for _, st := range normalizeStates(states[sym]) {
			v := m.NewVariable(fmt.Sprintf("%s%+d", sym, st), 1, upper)
			sites = append(sites, site{sym: sym, state: st, v: v})
			atoms = append(atoms, ilp.T(1, v))
			if st != 0 {
				charge = append(charge, ilp.T(float64(st), v))
			}
		}
	}
	m.AddConstraint("charge", charge, ilp.Equal, float64(target))
	m.SetObjective(ilp.Minimize, atoms)

	res, err := ilp.NewSolver(m, opts...).Solve(ctx)
	if cerr := contextError(ctx, err); cerr != nil {
		return nil, cerr
	}
	if err != nil || res.Status != ilp.StatusOptimal {
		return nil, nil
	}

	g := &FormulaGuess{Counts: make(Counts), Sites: make(map[string]map[int]int)}
	for _, s := range sites {
		n := res.Value(s.v)
		g.Counts[s.sym] += n
		if g.Sites[s.sym] == nil {
			g.Sites[s.sym] = make(map[int]int)
		}
		g.Sites[s.sym][s.state] = n
		g.Atoms += n
	}
	return g, nil
}

// siteBound caps the atoms of one site. In a smallest solution no site with
// charge p and site with charge q of opposite sign can hold |q| and p extra
// atoms at once, since removing both keeps the charge and loses atoms. So
// every site holds at most 1 + max|s| + |target| + Σ|s| + max|s|·Σ|s|.
func siteBound(states map[string][]int, target int) int {
	sum, largest := 0, 0
	for _, ss := range states {
		for _, st := range normalizeStates(ss) {
			a := abs(st)
			sum += a
			largest = max(largest, a)
		}
	}
	return 1 + largest + abs(target) + sum + largest*sum
}
