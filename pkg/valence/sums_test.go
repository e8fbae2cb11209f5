package valence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumSolverSweep(t *testing.T) {
	ss := NewSumSolver(100, nil)
	entry := Entry{Element: Real("Fe"), Amount: 2, States: []int{2, 3}, Scores: []float64{0.4, 0.6}}

	got, err := ss.Sums(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6}, got.Sums)
	require.Len(t, got.Scores, 3)
	assert.InDelta(t, 0.8, got.Scores[0], 1e-9)
	assert.InDelta(t, 1.0, got.Scores[1], 1e-9)
	assert.InDelta(t, 1.2, got.Scores[2], 1e-9)

	s, ok := got.Score(5)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, s, 1e-9)
	_, ok = got.Score(7)
	assert.False(t, ok)
}

func TestSumSolverSkipsUnreachableSums(t *testing.T) {
	ss := NewSumSolver(100, nil)
	entry := Entry{Element: Real("Te"), Amount: 1, States: []int{-2, 4, 6}, Scores: []float64{0.2, 0.5, 0.3}}

	got, err := ss.Sums(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, []int{-2, 4, 6}, got.Sums)
	assert.InDeltaSlice(t, []float64{0.2, 0.5, 0.3}, got.Scores, 1e-9)
}

func TestSumSolverEdgeCases(t *testing.T) {
	ss := NewSumSolver(2, nil)

	single, err := ss.Sums(context.Background(), Entry{Element: Real("O"), Amount: 3, States: []int{-2}, Scores: []float64{1}})
	require.NoError(t, err)
	assert.Equal(t, []int{-6}, single.Sums)
	assert.Equal(t, []float64{3}, single.Scores)

	gap, err := ss.Sums(context.Background(), Entry{Element: Real("He"), Amount: 1})
	require.NoError(t, err)
	assert.Empty(t, gap.Sums)

	_, err = ss.Sums(context.Background(), Entry{Element: Real("Fe"), Amount: 2, States: []int{2, 3}, Scores: []float64{1, 1}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSumSolverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSumSolver(100, nil).Sums(ctx, Entry{Element: Real("Fe"), Amount: 2, States: []int{2, 3}, Scores: []float64{1, 1}})
	assert.ErrorIs(t, err, context.Canceled)
}
