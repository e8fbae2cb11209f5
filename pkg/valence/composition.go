package valence

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned for compositions the solvers cannot accept:
// non-integer or negative amounts, unknown symbols, empty compositions.
var ErrInvalidInput = errors.New("valence: invalid input")

// Oxygen is the symbol whose sites host the compensator.
const Oxygen = "O"

// Composition maps element symbols to raw, possibly fractional, amounts.
type Composition map[string]float64

// Counts maps element symbols to integer atom amounts. It is the only
// input the solvers accept.
type Counts map[string]int

// Counts converts c to integer counts. Zero amounts are dropped; negative,
// non-finite or non-integer amounts fail with ErrInvalidInput.
func (c Composition) Counts() (Counts, error) {
	out := make(Counts, len(c))
	for _, sym := range c.symbols() {
		amt := c[sym]
		if err := checkAmount(sym, amt); err != nil {
			return nil, err
		}
		if amt != math.Trunc(amt) {
			return nil, fmt.Errorf("%w: amount %g of %s is not an integer", ErrInvalidInput, amt, sym)
		}
		if amt > math.MaxInt32 {
			return nil, fmt.Errorf("%w: amount %g of %s is too large", ErrInvalidInput, amt, sym)
		}
		if amt == 0 {
			continue
		}
		out[sym] = int(amt)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty composition", ErrInvalidInput)
	}
	return out, nil
}

// Normalize scales a fractional composition to the smallest integer counts
// with the same ratios. Every amount is approximated by a fraction with a
// denominator of at most maxDenominator; amounts that cannot be represented
// that way fail with ErrInvalidInput. It returns the counts and the factor
// the amounts were multiplied by.
//
//	{Cr: 1.9, Mn: 0.1, Al: 1} → {Cr: 19, Mn: 1, Al: 10}, 10
//	{Fe: 2, O: 4} → {Fe: 1, O: 2}, 0.5
func (c Composition) Normalize(maxDenominator int) (Counts, float64, error) {
	if maxDenominator < 1 {
		maxDenominator = 1
	}
	fracs := make(map[string]Rational, len(c))
	den := 1
	for _, sym := range c.symbols() {
		amt := c[sym]
		if err := checkAmount(sym, amt); err != nil {
			return nil, 0, err
		}
		if amt == 0 {
			continue
		}
		tol := 1e-9 * math.Max(1, amt)
		r, ok := FromFloat(amt, maxDenominator, tol)
		if !ok || r.Num <= 0 {
			return nil, 0, fmt.Errorf("%w: amount %g of %s has no fraction with denominator <= %d",
				ErrInvalidInput, amt, sym, maxDenominator)
		}
		fracs[sym] = r
		den = lcm(den, r.Den)
	}
	if len(fracs) == 0 {
		return nil, 0, fmt.Errorf("%w: empty composition", ErrInvalidInput)
	}

	g := 0
	for _, r := range fracs {
		g = gcd(g, r.Num*(den/r.Den))
	}
	out := make(Counts, len(fracs))
	for sym, r := range fracs {
		out[sym] = r.Num * (den / r.Den) / g
	}
	return out, float64(den) / float64(g), nil
}

func (c Composition) symbols() []string {
	syms := make([]string, 0, len(c))
	for s := range c {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

func checkAmount(sym string, amt float64) error {
	switch {
	case strings.TrimSpace(sym) == "":
		return fmt.Errorf("%w: empty element symbol", ErrInvalidInput)
	case math.IsNaN(amt) || math.IsInf(amt, 0):
		return fmt.Errorf("%w: amount of %s is not finite", ErrInvalidInput, sym)
	case amt < 0:
		return fmt.Errorf("%w: amount %g of %s is negative", ErrInvalidInput, amt, sym)
	}
	return nil
}

// Validate checks that every amount is positive and every symbol non-empty.
func (c Counts) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: empty composition", ErrInvalidInput)
	}
	for sym, n := range c {
		if strings.TrimSpace(sym) == "" {
			return fmt.Errorf("%w: empty element symbol", ErrInvalidInput)
		}
		if n <= 0 {
			return fmt.Errorf("%w: amount %d of %s is not positive", ErrInvalidInput, n, sym)
		}
	}
	return nil
}

// Symbols returns the symbols in sorted order.
func (c Counts) Symbols() []string {
	syms := make([]string, 0, len(c))
	for s := range c {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// Scale returns a copy of c with every amount multiplied by k.
func (c Counts) Scale(k int) Counts {
	out := make(Counts, len(c))
	for s, n := range c {
		out[s] = n * k
	}
	return out
}

// Clone returns a copy of c.
func (c Counts) Clone() Counts { return c.Scale(1) }

// Reduced divides every amount by the greatest common divisor of all
// amounts and returns the reduced counts with that divisor.
func (c Counts) Reduced() (Counts, int) {
	g := 0
	for _, n := range c {
		g = gcd(g, abs(n))
	}
	if g <= 1 {
		return c.Clone(), 1
	}
	out := make(Counts, len(c))
	for s, n := range c {
		out[s] = n / g
	}
	return out, g
}

// Key returns the canonical key of c: symbols in sorted order followed by
// their amounts, e.g. "Fe1O3Sr1".
func (c Counts) Key() string {
	var b strings.Builder
	for _, s := range c.Symbols() {
		b.WriteString(s)
		b.WriteString(strconv.Itoa(c[s]))
	}
	return b.String()
}

func (c Counts) String() string {
	parts := make([]string, 0, len(c))
	for _, s := range c.Symbols() {
		parts = append(parts, fmt.Sprintf("%s:%d", s, c[s]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
