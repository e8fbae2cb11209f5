package valence

import (
	"sort"
)

// Rank combines per-element sum tables into every charge-balanced
// assignment, ordered by score descending. Ties keep enumeration order,
// which is the lexicographic order of the cartesian product with the first
// table outermost.
//
// A tuple's score is the sum of the per-element best scores of its sums.
// Each element's site distribution is chosen independently, so the best
// distributions of different elements are always simultaneously
// achievable; the score is exact for the tuple but need not agree with the
// joint solver's ranking.
//
// A single table without any balanced sum yields the zero assignment.
func Rank(tables []ElementSums, target int) []*Assignment {
	if len(tables) == 0 {
		return nil
	}

	// suffix bounds of the remaining tables
	n := len(tables)
	minRest := make([]int, n+1)
	maxRest := make([]int, n+1)
	for i := n - 1; i >= 0; i-- {
		sums := tables[i].Sums
		if len(sums) == 0 {
			return zeroIfSingle(tables)
		}
		minRest[i] = minRest[i+1] + sums[0]
		maxRest[i] = maxRest[i+1] + sums[len(sums)-1]
	}

	var out []*Assignment
	picks := make([]int, n)
	var walk func(i, partial int)
	walk = func(i, partial int) {
		if i == n {
			if partial == target {
				out = append(out, tupleAssignment(tables, picks))
			}
			return
		}
		for k, s := range tables[i].Sums {
			rest := partial + s
			if rest+minRest[i+1] > target || rest+maxRest[i+1] < target {
				continue
			}
			picks[i] = k
			walk(i+1, rest)
		}
	}
	walk(0, 0)

	if len(out) == 0 {
		return zeroIfSingle(tables)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

func tupleAssignment(tables []ElementSums, picks []int) *Assignment {
	a := &Assignment{
		Entries:       make([]Entry, len(tables)),
		Sums:          make([]int, len(tables)),
		Contributions: make([]float64, len(tables)),
	}
	for i, t := range tables {
		a.Entries[i] = t.Entry
		a.Sums[i] = t.Sums[picks[i]]
		a.Contributions[i] = t.Scores[picks[i]]
		a.Score += a.Contributions[i]
	}
	return a
}

// zeroIfSingle returns the zero assignment of a bare element, which is
// conventionally neutral, or nil for compositions of several elements.
func zeroIfSingle(tables []ElementSums) []*Assignment {
	if len(tables) != 1 {
		return nil
	}
	return []*Assignment{{
		Entries:       []Entry{tables[0].Entry},
		Sums:          []int{0},
		Contributions: []float64{0},
	}}
}
