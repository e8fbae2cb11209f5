package valence

// stubTable is a tiny in-memory periodic table.
type stubTable struct {
	elements map[string]ElementInfo
	priors   map[string]map[int]float64
}

func (s stubTable) Element(symbol string) (ElementInfo, bool) {
	e, ok := s.elements[symbol]
	return e, ok
}

func (s stubTable) Prior(symbol string, state int) (float64, bool) {
	p, ok := s.priors[symbol][state]
	return p, ok
}

func newStubTable() stubTable {
	return stubTable{
		elements: map[string]ElementInfo{
			"Fe": {Symbol: "Fe", Metal: true, Common: []int{2, 3}, Known: []int{-2, 2, 3, 4, 6}},
			"Cu": {Symbol: "Cu", Metal: true, Common: []int{2}, Known: []int{1, 2, 3}},
			"O":  {Symbol: "O", Common: []int{-2}, Known: []int{-2, -1}},
			"Ba": {Symbol: "Ba", Metal: true, Common: []int{2}, Known: []int{2}},
			"Te": {Symbol: "Te", Known: []int{-2, 4, 6}},
			"He": {Symbol: "He"},
		},
		priors: map[string]map[int]float64{
			"Fe": {2: 0.4, 3: 0.6},
			"Cu": {1: 0.3, 2: 0.7},
			"O":  {-2: 1},
			"Ba": {2: 1},
			"Te": {4: 0.5, 6: 0.3, -2: 0.2},
		},
	}
}

func newStubCatalog() *Catalog {
	t := newStubTable()
	return NewCatalog(t, t, DefaultParams())
}
