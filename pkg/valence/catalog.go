package valence

import (
	"fmt"
)

// Entry is one element of a solve: its amount, candidate states and the
// score of putting one site in each state.
type Entry struct {
	Element Element
	Amount  int
	States  []int
	Scores  []float64
}

// Range returns the smallest and largest state sum the entry can reach.
// An entry without states returns ok == false.
func (e Entry) Range() (lo, hi int, ok bool) {
	if len(e.States) == 0 {
		return 0, 0, false
	}
	return e.Amount * e.States[0], e.Amount * e.States[len(e.States)-1], true
}

// compensatorStates are the per-site shifts the compensator may apply.
var compensatorStates = []int{-1, 0, 1}

// Catalog turns periodic-table data and priors into per-solve entries.
// It is read-only after construction and safe for concurrent use.
type Catalog struct {
	elements ElementProvider
	priors   PriorTable
	params   Params
}

// NewCatalog creates a catalog over the given data sources.
func NewCatalog(elements ElementProvider, priors PriorTable, params Params) *Catalog {
	return &Catalog{elements: elements, priors: priors, params: params}
}

// Params returns the scoring constants.
func (c *Catalog) Params() Params { return c.params }

func (c *Catalog) lookup(symbol string) (ElementInfo, error) {
	info, ok := c.elements.Element(symbol)
	if !ok {
		return ElementInfo{}, fmt.Errorf("%w: unknown element %q", ErrInvalidInput, symbol)
	}
	return info, nil
}

// IsMetal reports whether symbol is a metal.
func (c *Catalog) IsMetal(symbol string) (bool, error) {
	info, err := c.lookup(symbol)
	return info.Metal, err
}

// Candidates returns the ordered candidate states of symbol under policy.
//
// Precedence: an override replaces the catalog states; AllStates selects
// every known state; AllMetalPositiveStates adds the known positive states
// of metals to the common ones; otherwise the common states are used,
// falling back to every known state when the element has no common states.
// AddZeroValence then adds state 0. The result is deduplicated and sorted
// and may be empty.
func (c *Catalog) Candidates(symbol string, policy Policy) ([]int, error) {
	info, err := c.lookup(symbol)
	if err != nil {
		return nil, err
	}

	var states []int
	switch override, ok := policy.Overrides[symbol]; {
	case ok && len(override) > 0:
		states = override
	case policy.AllStates:
		states = info.Known
	case policy.AllMetalPositiveStates && info.Metal:
		states = append(states, info.Common...)
		for _, s := range info.Known {
			if s > 0 {
				states = append(states, s)
			}
		}
	case len(info.Common) > 0:
		states = info.Common
	default:
		states = info.Known
	}
	if policy.AddZeroValence {
		states = append(append([]int(nil), states...), 0)
	}
	return normalizeStates(states), nil
}

// Score returns the score of one site of e in state, for an element with
// amount atoms.
func (c *Catalog) Score(e Element, state, amount int, policy Policy) float64 {
	if e.IsCompensator() {
		if state == 0 {
			return c.params.CompensatorZeroScore
		}
		return c.params.CompensatorShiftScore
	}
	if policy.AddZeroValence && state == 0 && amount > 0 {
		return c.params.ZeroValenceScore / float64(amount)
	}
	if p, ok := c.priors.Prior(e.Symbol(), state); ok {
		return p
	}
	return c.params.MissingPriorScore
}

// Entries builds the entries of a solve in sorted symbol order. When
// compensate is set and the composition contains oxygen, the compensator
// is appended last with one site per oxygen atom.
func (c *Catalog) Entries(counts Counts, policy Policy, compensate bool) ([]Entry, error) {
	if err := counts.Validate(); err != nil {
		return nil, err
	}
	syms := counts.Symbols()
	entries := make([]Entry, 0, len(syms)+1)
	for _, sym := range syms {
		states, err := c.Candidates(sym, policy)
		if err != nil {
			return nil, err
		}
		e := Real(sym)
		entries = append(entries, c.entry(e, counts[sym], states, policy))
	}
	if n, ok := counts[Oxygen]; compensate && ok {
		entries = append(entries, c.entry(Compensator, n, compensatorStates, policy))
	}
	return entries, nil
}

func (c *Catalog) entry(e Element, amount int, states []int, policy Policy) Entry {
	scores := make([]float64, len(states))
	for i, s := range states {
		scores[i] = c.Score(e, s, amount, policy)
	}
	return Entry{Element: e, Amount: amount, States: states, Scores: scores}
}

// AllMetals reports whether every element of counts is a metal.
func (c *Catalog) AllMetals(counts Counts) (bool, error) {
	for sym := range counts {
		metal, err := c.IsMetal(sym)
		if err != nil {
			return false, err
		}
		if !metal {
			return false, nil
		}
	}
	return len(counts) > 0, nil
}

// AnyMetal reports whether counts contains at least one metal.
func (c *Catalog) AnyMetal(counts Counts) (bool, error) {
	for sym := range counts {
		metal, err := c.IsMetal(sym)
		if err != nil {
			return false, err
		}
		if metal {
			return true, nil
		}
	}
	return false, nil
}

// Check fails with ErrInvalidInput if counts is malformed or names an
// element the provider does not know.
func (c *Catalog) Check(counts Counts) error {
	if err := counts.Validate(); err != nil {
		return err
	}
	for _, sym := range counts.Symbols() {
		if _, err := c.lookup(sym); err != nil {
			return err
		}
	}
	return nil
}
