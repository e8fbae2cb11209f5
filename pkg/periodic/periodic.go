// Package periodic bundles the element catalog and the oxidation-state
// prior table used by package valence.
//
// The bundled data is embedded in the binary and parsed once per process by
// Default. Tables are read-only after loading and may be shared freely
// between goroutines.
package periodic

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gitrdm/valencesolver/pkg/valence"
)

//go:embed data/elements.yaml
var elementsYAML []byte

//go:embed data/priors.yaml
var priorsYAML []byte

// ErrInvalidData is returned for malformed catalog or prior files.
var ErrInvalidData = errors.New("periodic: invalid data")

type elementDoc struct {
	Elements []struct {
		Symbol string `yaml:"symbol"`
		Metal  bool   `yaml:"metal"`
		Common []int  `yaml:"common"`
		Known  []int  `yaml:"known"`
	} `yaml:"elements"`
}

type priorDoc struct {
	Priors map[string]map[int]float64 `yaml:"priors"`
}

// Table implements valence.ElementProvider and valence.PriorTable.
type Table struct {
	elements map[string]valence.ElementInfo
	priors   map[string]map[int]float64
	order    []string
}

var _ valence.ElementProvider = (*Table)(nil)
var _ valence.PriorTable = (*Table)(nil)

var loadDefault = sync.OnceValues(func() (*Table, error) {
	return Load(bytes.NewReader(elementsYAML), bytes.NewReader(priorsYAML))
})

// Default returns the bundled table, parsing it on first use.
func Default() (*Table, error) {
	return loadDefault()
}

// MustDefault is like Default but panics if the bundled data is broken.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load parses an element catalog and a prior table. Every prior must name
// an element of the catalog.
func Load(elements, priors io.Reader) (*Table, error) {
	var ed elementDoc
	if err := yaml.NewDecoder(elements).Decode(&ed); err != nil {
		return nil, fmt.Errorf("%w: elements: %v", ErrInvalidData, err)
	}
	t := &Table{
		elements: make(map[string]valence.ElementInfo, len(ed.Elements)),
		priors:   make(map[string]map[int]float64),
	}
	for _, e := range ed.Elements {
		if e.Symbol == "" {
			return nil, fmt.Errorf("%w: element without symbol", ErrInvalidData)
		}
		if _, dup := t.elements[e.Symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate element %s", ErrInvalidData, e.Symbol)
		}
		t.elements[e.Symbol] = valence.ElementInfo{
			Symbol: e.Symbol,
			Metal:  e.Metal,
			Common: sortedUnique(e.Common),
			Known:  sortedUnique(e.Known),
		}
		t.order = append(t.order, e.Symbol)
	}
	if err := t.mergePriors(priors); err != nil {
		return nil, err
	}
	return t, nil
}

// WithPriors returns a copy of t whose priors are overlaid with the
// entries read from r.
func (t *Table) WithPriors(r io.Reader) (*Table, error) {
	out := &Table{
		elements: t.elements,
		priors:   make(map[string]map[int]float64, len(t.priors)),
		order:    t.order,
	}
	for sym, m := range t.priors {
		cp := make(map[int]float64, len(m))
		for s, p := range m {
			cp[s] = p
		}
		out.priors[sym] = cp
	}
	if err := out.mergePriors(r); err != nil {
		return nil, err
	}
	return out, nil
}

// WithPriorsFile is WithPriors reading from a file.
func (t *Table) WithPriorsFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return t.WithPriors(f)
}

func (t *Table) mergePriors(r io.Reader) error {
	var pd priorDoc
	if err := yaml.NewDecoder(r).Decode(&pd); err != nil {
		return fmt.Errorf("%w: priors: %v", ErrInvalidData, err)
	}
	for sym, states := range pd.Priors {
		if _, ok := t.elements[sym]; !ok {
			return fmt.Errorf("%w: prior for unknown element %s", ErrInvalidData, sym)
		}
		if t.priors[sym] == nil {
			t.priors[sym] = make(map[int]float64, len(states))
		}
		for s, p := range states {
			t.priors[sym][s] = p
		}
	}
	return nil
}

// Element implements valence.ElementProvider. The returned slices are
// copies.
func (t *Table) Element(symbol string) (valence.ElementInfo, bool) {
	info, ok := t.elements[symbol]
	if !ok {
		return valence.ElementInfo{}, false
	}
	info.Common = append([]int(nil), info.Common...)
	info.Known = append([]int(nil), info.Known...)
	return info, true
}

// Prior implements valence.PriorTable.
func (t *Table) Prior(symbol string, state int) (float64, bool) {
	p, ok := t.priors[symbol][state]
	return p, ok
}

// Priors returns the prior entries of symbol ordered by state.
func (t *Table) Priors(symbol string) ([]int, []float64) {
	m := t.priors[symbol]
	states := make([]int, 0, len(m))
	for s := range m {
		states = append(states, s)
	}
	sort.Ints(states)
	scores := make([]float64, len(states))
	for i, s := range states {
		scores[i] = m[s]
	}
	return states, scores
}

// Symbols returns every element symbol in catalog order.
func (t *Table) Symbols() []string {
	return append([]string(nil), t.order...)
}

func sortedUnique(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	n := 0
	for i, x := range out {
		if i == 0 || x != out[n-1] {
			out[n] = x
			n++
		}
	}
	return out[:n]
}
