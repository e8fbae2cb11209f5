package valence

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ElementInfo is the periodic-table data a catalog needs for one element.
type ElementInfo struct {
	Symbol string
	// Metal marks elements whose catalogs are broadened and that make up
	// alloys.
	Metal bool
	// Common is the restricted, empirically observed set of states.
	Common []int
	// Known is every known oxidation state.
	Known []int
}

// ElementProvider looks up periodic-table data by symbol.
type ElementProvider interface {
	Element(symbol string) (ElementInfo, bool)
}

// PriorTable maps (element, state) pairs to empirical occurrence scores.
// Pairs absent from the table are reported with ok == false.
type PriorTable interface {
	Prior(symbol string, state int) (score float64, ok bool)
}

// Params holds the scoring constants of the engine. They are empirical;
// only their relative magnitudes matter: MissingPriorScore must be far
// below every prior, CompensatorZeroScore far above.
type Params struct {
	// MissingPriorScore scores (element, state) pairs without a prior.
	MissingPriorScore float64 `mapstructure:"missing-prior-score" yaml:"missing-prior-score"`
	// CompensatorZeroScore scores a compensator site left unadjusted.
	CompensatorZeroScore float64 `mapstructure:"compensator-zero-score" yaml:"compensator-zero-score"`
	// CompensatorShiftScore scores a compensator site shifted by ±1.
	CompensatorShiftScore float64 `mapstructure:"compensator-shift-score" yaml:"compensator-shift-score"`
	// ZeroValenceScore is divided by the element amount to score the
	// state 0 added by Policy.AddZeroValence.
	ZeroValenceScore float64 `mapstructure:"zero-valence-score" yaml:"zero-valence-score"`
	// WarningThreshold bounds the average compensation per oxygen site
	// that is accepted without doubling or a warning.
	WarningThreshold float64 `mapstructure:"warning-threshold" yaml:"warning-threshold"`
	// MaxSumRange caps the width of the per-element sum sweep.
	MaxSumRange int `mapstructure:"max-sum-range" yaml:"max-sum-range"`
}

// DefaultParams returns the engine's standard constants.
func DefaultParams() Params {
	return Params{
		MissingPriorScore:     -10000,
		CompensatorZeroScore:  100,
		CompensatorShiftScore: 0.1,
		ZeroValenceScore:      0.1,
		WarningThreshold:      0.3,
		MaxSumRange:           100000,
	}
}

// Validate checks the ordering the scoring model relies on.
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"missing-prior-score":     p.MissingPriorScore,
		"compensator-zero-score":  p.CompensatorZeroScore,
		"compensator-shift-score": p.CompensatorShiftScore,
		"zero-valence-score":      p.ZeroValenceScore,
		"warning-threshold":       p.WarningThreshold,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidInput, name)
		}
	}
	if p.CompensatorZeroScore <= p.CompensatorShiftScore {
		return fmt.Errorf("%w: compensator-zero-score must exceed compensator-shift-score", ErrInvalidInput)
	}
	if p.WarningThreshold < 0 {
		return fmt.Errorf("%w: warning-threshold is negative", ErrInvalidInput)
	}
	if p.MaxSumRange <= 0 {
		return fmt.Errorf("%w: max-sum-range must be positive", ErrInvalidInput)
	}
	return nil
}

// Policy selects which candidate states a catalog offers.
type Policy struct {
	// Overrides replaces the candidate list of an element verbatim.
	Overrides map[string][]int
	// AllStates uses every known state instead of the common ones.
	AllStates bool
	// AllMetalPositiveStates adds every known positive state to metals.
	AllMetalPositiveStates bool
	// AddZeroValence adds state 0 to every real element.
	AddZeroValence bool
}

// Key returns a canonical string for the policy, usable as a cache key.
func (p Policy) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all=%t,metal+=%t,zero=%t", p.AllStates, p.AllMetalPositiveStates, p.AddZeroValence)
	syms := make([]string, 0, len(p.Overrides))
	for s := range p.Overrides {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	for _, s := range syms {
		states := normalizeStates(p.Overrides[s])
		parts := make([]string, len(states))
		for i, st := range states {
			parts[i] = strconv.Itoa(st)
		}
		fmt.Fprintf(&b, ",%s=[%s]", s, strings.Join(parts, " "))
	}
	return b.String()
}

// Options configures one best-mode or exhaustive-mode solve.
type Options struct {
	Policy Policy
	// TargetCharge is the required total charge, usually 0.
	TargetCharge int
	// BroadenMetals lets the fallback stage use every positive state of
	// metals.
	BroadenMetals bool
	// AddCompensator lets the fallback stage absorb residual charge on
	// oxygen sites.
	AddCompensator bool
	// DetectAlloys returns the zero solution for all-metal compositions
	// without a strict solution.
	DetectAlloys bool
	// TryDoubling retries the fallback stage with doubled amounts.
	TryDoubling bool
}

// DefaultOptions enables every relaxation stage.
func DefaultOptions() Options {
	return Options{
		BroadenMetals:  true,
		AddCompensator: true,
		DetectAlloys:   true,
		TryDoubling:    true,
	}
}

// Key returns a canonical string for the options, usable as a cache key.
func (o Options) Key() string {
	return fmt.Sprintf("%s,target=%d,broaden=%t,comp=%t,alloy=%t,double=%t",
		o.Policy.Key(), o.TargetCharge, o.BroadenMetals, o.AddCompensator, o.DetectAlloys, o.TryDoubling)
}

// normalizeStates returns a sorted copy of states without duplicates.
func normalizeStates(states []int) []int {
	out := make([]int, 0, len(states))
	seen := make(map[int]bool, len(states))
	for _, s := range states {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}
