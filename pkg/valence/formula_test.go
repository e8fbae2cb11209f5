package valence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/valencesolver/pkg/ilp"
)

func TestGuessFormula(t *testing.T) {
	tests := []struct {
		name   string
		states map[string][]int
		want   Counts
		atoms  int
	}{
		{"spinel", map[string][]int{"Fe": {3}, "Mg": {2}, "O": {-2}}, Counts{"Fe": 2, "Mg": 1, "O": 4}, 7},
		{"olivine", map[string][]int{"Li": {1}, "Fe": {2}, "P": {5}, "O": {-2}}, Counts{"Li": 1, "Fe": 1, "P": 1, "O": 4}, 7},
		{"mixed valence", map[string][]int{"Fe": {2, 3}, "O": {-2}}, Counts{"Fe": 3, "O": 4}, 7},
		{"salt", map[string][]int{"Na": {1}, "Cl": {-1}}, Counts{"Na": 1, "Cl": 1}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := GuessFormula(context.Background(), tc.states, 0)
			require.NoError(t, err)
			require.NotNil(t, g)
			assert.Equal(t, tc.want, g.Counts)
			assert.Equal(t, tc.atoms, g.Atoms)
		})
	}
}

func TestGuessFormulaSites(t *testing.T) {
	g, err := GuessFormula(context.Background(), map[string][]int{"Fe": {3, 2}, "O": {-2}}, 0)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, map[string]map[int]int{"Fe": {2: 1, 3: 2}, "O": {-2: 4}}, g.Sites)
}

func TestGuessFormulaCharged(t *testing.T) {
	// sulfate
	g, err := GuessFormula(context.Background(), map[string][]int{"S": {6}, "O": {-2}}, -2)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, Counts{"S": 1, "O": 4}, g.Counts)
}

func TestGuessFormulaInfeasible(t *testing.T) {
	g, err := GuessFormula(context.Background(), map[string][]int{"Na": {1}, "K": {1}}, 0)
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = GuessFormula(context.Background(), nil, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = GuessFormula(context.Background(), map[string][]int{"Fe": nil}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGuessFormulaSearchIsFinite(t *testing.T) {
	spinel := map[string][]int{"Fe": {3}, "Mg": {2}, "O": {-2}}
	assert.Equal(t, 1+3+0+7+3*7, siteBound(spinel, 0))
	assert.Equal(t, 1+6+2+8+6*8, siteBound(map[string][]int{"S": {6, 6}, "O": {-2}}, -2))

	g, err := GuessFormula(context.Background(), spinel, 0, ilp.WithNodeLimit(5000))
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, 7, g.Atoms)
	for sym, sites := range g.Sites {
		for st, n := range sites {
			assert.LessOrEqual(t, n, siteBound(spinel, 0), "%s%+d", sym, st)
		}
	}
}
