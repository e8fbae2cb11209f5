package valence

import (
	"sort"
	"strings"
)

// Variant is the solved valence of one concrete substitution of a material
// whose formula contains amount or element variables, e.g. x = 0.1 in
// Li1+xFe1-xPO4.
type Variant struct {
	Valences map[string]Rational `json:"valences" yaml:"valences"`
	// Vars holds the variable values of the substitution.
	Vars map[string]float64 `json:"vars,omitempty" yaml:"vars,omitempty"`
	// Elements is the composition the valences were solved for.
	Elements Counts `json:"elements,omitempty" yaml:"elements,omitempty"`
}

// MergedValence is a valence map shared by one or more variants.
type MergedValence struct {
	Valences map[string]Rational `json:"valences" yaml:"valences"`
	Vars     []map[string]float64 `json:"vars" yaml:"vars"`
	Elements []Counts             `json:"elements" yaml:"elements"`
}

// MergeVariants collapses the valences of a material's variants. When every
// element has the same valence in all variants that contain it, the result
// is a single merged entry. Otherwise variants with identical valence maps
// are grouped, in order of first appearance.
func MergeVariants(variants []Variant) []MergedValence {
	if len(variants) == 0 {
		return nil
	}
	if merged, ok := mergeAsOne(variants); ok {
		out := MergedValence{Valences: merged}
		for _, v := range variants {
			out.Vars = append(out.Vars, v.Vars)
			out.Elements = append(out.Elements, v.Elements)
		}
		return []MergedValence{out}
	}

	var out []MergedValence
	index := make(map[string]int)
	for _, v := range variants {
		key := valenceKey(v.Valences)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, MergedValence{Valences: v.Valences})
		}
		out[i].Vars = append(out[i].Vars, v.Vars)
		out[i].Elements = append(out[i].Elements, v.Elements)
	}
	return out
}

func mergeAsOne(variants []Variant) (map[string]Rational, bool) {
	merged := make(map[string]Rational)
	for _, v := range variants {
		for sym, val := range v.Valences {
			if prev, ok := merged[sym]; ok && prev.Cmp(val) != 0 {
				return nil, false
			}
			merged[sym] = val
		}
	}
	return merged, len(merged) > 0
}

func valenceKey(vals map[string]Rational) string {
	syms := make([]string, 0, len(vals))
	for s := range vals {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	var b strings.Builder
	for _, s := range syms {
		b.WriteString(s)
		b.WriteByte(':')
		b.WriteString(vals[s].String())
		b.WriteByte(';')
	}
	return b.String()
}
