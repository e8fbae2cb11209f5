package valence_test

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/valencesolver/internal/logging"
	"github.com/gitrdm/valencesolver/pkg/periodic"
	"github.com/gitrdm/valencesolver/pkg/valence"
)

func newSolver(t *testing.T) *valence.Solver {
	t.Helper()
	tbl, err := periodic.Default()
	require.NoError(t, err)
	return valence.NewSolver(tbl, tbl)
}

type vals = map[string]valence.Rational

func r(num, den int) valence.Rational { return valence.NewRational(num, den) }
func n(v int) valence.Rational        { return valence.Int(v) }

func mostProbable(t *testing.T, s *valence.Solver, counts valence.Counts) *valence.Result {
	t.Helper()
	res, err := s.MostProbable(context.Background(), counts, valence.DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestMostProbableTextbook(t *testing.T) {
	s := newSolver(t)
	tests := []struct {
		name   string
		counts valence.Counts
		want   vals
	}{
		{"SrFeO3", valence.Counts{"Sr": 1, "Fe": 1, "O": 3}, vals{"Sr": n(2), "Fe": n(4), "O": n(-2)}},
		{"Fe2O3", valence.Counts{"Fe": 2, "O": 3}, vals{"Fe": n(3), "O": n(-2)}},
		{"Fe3O4", valence.Counts{"Fe": 3, "O": 4}, vals{"Fe": r(8, 3), "O": n(-2)}},
		{"Sr7La3Fe10O30", valence.Counts{"Sr": 7, "La": 3, "Fe": 10, "O": 30}, vals{"Sr": n(2), "La": n(3), "Fe": r(37, 10), "O": n(-2)}},
		{"LaMnO3", valence.Counts{"La": 1, "Mn": 1, "O": 3}, vals{"La": n(3), "Mn": n(3), "O": n(-2)}},
		{"Sr2Fe2O5", valence.Counts{"Sr": 2, "Fe": 2, "O": 5}, vals{"Sr": n(2), "Fe": n(3), "O": n(-2)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := mostProbable(t, s, tc.counts)
			require.True(t, res.Feasible())
			assert.True(t, res.Usual)
			assert.Equal(t, valence.StageStrict, res.Stage)
			assert.Empty(t, res.Comments)
			assert.False(t, res.Compensated)
			if diff := cmp.Diff(tc.want, res.Solution.Valences); diff != "" {
				t.Errorf("valences mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMostProbableRelaxed(t *testing.T) {
	s := newSolver(t)
	broadened := valence.CommentBroadened
	tests := []struct {
		name         string
		counts       valence.Counts
		want         vals
		usual        bool
		stage        valence.Stage
		comments     []string
		compensation valence.Rational
	}{
		{
			name:   "alloy",
			counts: valence.Counts{"Cr": 19, "Mn": 1, "Al": 10},
			want:   vals{"Cr": n(0), "Mn": n(0), "Al": n(0)},
			stage:  valence.StageAlloy, comments: []string{valence.CommentAlloy},
		},
		{
			name:   "gold",
			counts: valence.Counts{"Au": 5},
			want:   vals{"Au": n(0)},
			usual:  true, stage: valence.StageElementary,
		},
		{
			name:   "dioxygen",
			counts: valence.Counts{"O": 2},
			want:   vals{"O": n(0)},
			usual:  true, stage: valence.StageElementary,
		},
		{
			name:   "peroxide",
			counts: valence.Counts{"Ba": 1, "O": 2},
			want:   vals{"Ba": n(2), "O": n(-1)},
			usual:  true, stage: valence.StagePeroxide, comments: []string{valence.CommentPeroxide},
		},
		{
			name:   "oxygen excess",
			counts: valence.Counts{"La": 110, "W": 9, "Nb": 3, "Mo": 8, "O": 225},
			want:   vals{"La": n(3), "W": n(6), "Nb": n(5), "Mo": n(6), "O": n(-2)},
			stage:  valence.StageBroadened,
			comments: []string{
				broadened,
				"oxygen excess or anomalous oxidation (X=1/75)",
			},
			compensation: r(1, 75),
		},
		{
			name:     "doubled",
			counts:   valence.Counts{"Bi": 1, "O": 2},
			want:     vals{"Bi": n(4), "O": n(-2)},
			stage:    valence.StageDoubled,
			comments: []string{broadened, valence.CommentDoubled},
		},
		{
			name:   "large compensation",
			counts: valence.Counts{"Y": 1, "O": 3},
			want:   vals{"Y": n(3), "O": n(-2)},
			stage:  valence.StageBroadened,
			comments: []string{
				broadened,
				"oxygen excess or anomalous oxidation (X=1)",
				"warning: large charge compensation (X=1)",
			},
			compensation: n(1),
		},
		{
			name:         "oxygen deficiency",
			counts:       valence.Counts{"Si": 10, "O": 19},
			want:         vals{"Si": n(4), "O": n(-2)},
			stage:        valence.StageBroadened,
			comments:     []string{"oxygen deficiency (X=-2/19)"},
			compensation: r(-2, 19),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := mostProbable(t, s, tc.counts)
			require.True(t, res.Feasible())
			if diff := cmp.Diff(tc.want, res.Solution.Valences); diff != "" {
				t.Errorf("valences mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.usual, res.Usual)
			assert.Equal(t, tc.stage, res.Stage)
			assert.Equal(t, tc.comments, res.Comments)
			assert.Zero(t, tc.compensation.Cmp(res.Compensation), "compensation %s", res.Compensation)
			assert.Equal(t, !tc.compensation.IsZero(), res.Compensated)
		})
	}
}

func TestMostProbableStrictIgnoresMetalBroadening(t *testing.T) {
	s := newSolver(t)
	counts := valence.Counts{"Li": 1, "Ni": 1, "O": 2}
	opts := valence.DefaultOptions()
	opts.Policy.AllMetalPositiveStates = true

	res, err := s.MostProbable(context.Background(), counts, opts)
	require.NoError(t, err)
	require.True(t, res.Feasible())
	assert.Equal(t, valence.StageBroadened, res.Stage)
	assert.False(t, res.Usual)
	assert.Contains(t, res.Comments, valence.CommentBroadened)

	plain := mostProbable(t, s, counts)
	assert.Equal(t, plain.Stage, res.Stage)
	assert.Equal(t, plain.Solution.Valences, res.Solution.Valences)
}

func TestMostProbableInfeasible(t *testing.T) {
	res := mostProbable(t, newSolver(t), valence.Counts{"Y": 2, "Ba": 1, "Cu": 1, "O": 45})
	assert.False(t, res.Feasible())
	assert.Equal(t, valence.StageDone, res.Stage)
	assert.Nil(t, res.Solution)
}

func TestMostProbableOptions(t *testing.T) {
	s := newSolver(t)
	counts := valence.Counts{"Ti": 1, "Ni": 1}

	res, err := s.MostProbable(context.Background(), counts, valence.Options{})
	require.NoError(t, err)
	assert.False(t, res.Feasible())

	res = mostProbable(t, s, counts)
	assert.Equal(t, valence.StageAlloy, res.Stage)

	opts := valence.DefaultOptions()
	opts.Policy.Overrides = map[string][]int{"Fe": {2}}
	res, err = s.MostProbable(context.Background(), valence.Counts{"Fe": 1, "O": 1}, opts)
	require.NoError(t, err)
	assert.Equal(t, vals{"Fe": n(2), "O": n(-2)}, res.Solution.Valences)
}

func TestChargeBalance(t *testing.T) {
	s := newSolver(t)
	for _, counts := range []valence.Counts{
		{"Fe": 3, "O": 4},
		{"Sr": 7, "La": 3, "Fe": 10, "O": 30},
		{"Ba": 1, "O": 2},
		{"Bi": 1, "O": 2},
		{"Y": 1, "O": 3},
		{"Si": 10, "O": 19},
		{"La": 110, "W": 9, "Nb": 3, "Mo": 8, "O": 225},
		{"Cr": 19, "Mn": 1, "Al": 10},
	} {
		res := mostProbable(t, s, counts)
		require.True(t, res.Feasible(), counts.Key())
		assert.Equal(t, n(0), res.Charge(counts), counts.Key())
		assert.NotContains(t, res.Solution.Valences, valence.CompensatorSymbol)
	}
}

func TestMostProbableIdempotentAndScaleInvariant(t *testing.T) {
	s := newSolver(t)
	counts := valence.Counts{"Sr": 2, "Fe": 2, "O": 5}
	first := mostProbable(t, s, counts)
	second := mostProbable(t, s, counts)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated solve differs (-first +second):\n%s", diff)
	}

	scaled := mostProbable(t, s, counts.Scale(3))
	if diff := cmp.Diff(first.Solution.Valences, scaled.Solution.Valences); diff != "" {
		t.Errorf("scaled solve differs (-unscaled +scaled):\n%s", diff)
	}
}

func TestMostProbableComposition(t *testing.T) {
	s := newSolver(t)
	res, counts, err := s.MostProbableComposition(context.Background(),
		valence.Composition{"Cr": 1.9, "Mn": 0.1, "Al": 1}, 1000, valence.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, valence.Counts{"Cr": 19, "Mn": 1, "Al": 10}, counts)
	assert.Equal(t, valence.StageAlloy, res.Stage)

	_, _, err = s.MostProbableComposition(context.Background(), valence.Composition{"Fe": -1}, 1000, valence.DefaultOptions())
	assert.ErrorIs(t, err, valence.ErrInvalidInput)
}

func TestInvalidInput(t *testing.T) {
	s := newSolver(t)
	for _, counts := range []valence.Counts{
		{},
		{"Fe": 0},
		{"Fe": -2, "O": 3},
		{"Xx": 1, "O": 1},
	} {
		_, err := s.MostProbable(context.Background(), counts, valence.DefaultOptions())
		assert.ErrorIs(t, err, valence.ErrInvalidInput, counts.String())
		_, err = s.Guesses(context.Background(), counts, valence.DefaultOptions())
		assert.ErrorIs(t, err, valence.ErrInvalidInput, counts.String())
	}

	tbl := periodic.MustDefault()
	params := valence.DefaultParams()
	params.MaxSumRange = -1
	_, err := valence.NewSolver(tbl, tbl, valence.WithParams(params)).
		MostProbable(context.Background(), valence.Counts{"Fe": 2, "O": 3}, valence.DefaultOptions())
	assert.ErrorIs(t, err, valence.ErrInvalidInput)
}

func TestCancellation(t *testing.T) {
	s := newSolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.MostProbable(ctx, valence.Counts{"Fe": 2, "O": 3}, valence.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Guesses(ctx, valence.Counts{"Fe": 1, "Mn": 1, "O": 3}, valence.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGuessesOrdered(t *testing.T) {
	s := newSolver(t)
	ctx := logr.NewContext(context.Background(), logging.NewTestLogger())
	got, err := s.Guesses(ctx, valence.Counts{"Fe": 1, "Mn": 1, "O": 3}, valence.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 3)

	want := []vals{
		{"Fe": n(3), "Mn": n(3), "O": n(-2)},
		{"Fe": n(2), "Mn": n(4), "O": n(-2)},
		{"Fe": n(4), "Mn": n(2), "O": n(-2)},
	}
	wantScores := []float64{0.6 + 0.3 + 2.97, 0.35 + 0.25 + 2.97, 0.05 + 0.4 + 2.97}
	for i := range got {
		if diff := cmp.Diff(want[i], got[i].Valences); diff != "" {
			t.Errorf("guess %d mismatch (-want +got):\n%s", i, diff)
		}
		assert.InDelta(t, wantScores[i], got[i].Score, 1e-6)
	}

	seen := make(map[string]bool)
	for _, g := range got {
		key := ""
		for _, sym := range g.Symbols() {
			key += sym + g.Valences[sym].String()
		}
		assert.False(t, seen[key], "duplicate guess %s", key)
		seen[key] = true
	}
}

func TestGuessesEdgeCases(t *testing.T) {
	s := newSolver(t)

	got, err := s.Guesses(context.Background(), valence.Counts{"Au": 5}, valence.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, vals{"Au": n(0)}, got[0].Valences)

	got, err = s.Guesses(context.Background(), valence.Counts{"Y": 2, "Ba": 1, "Cu": 1, "O": 45}, valence.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Guesses(context.Background(), valence.Counts{"Fe": 3, "O": 4}, valence.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, r(8, 3), got[0].Valences["Fe"])
}
