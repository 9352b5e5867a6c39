package matcher

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/advisor-match/internal/index"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

func snapshotOf(t *testing.T, vecs map[string][]float32) *index.Snapshot {
	t.Helper()
	idx := index.New()
	for id, v := range vecs {
		require.NoError(t, idx.Upsert(model.Profile{
			ID: id, Name: id, Title: "Professor", Department: "CS",
			Description: "research", Capacity: 1, Embedding: v,
		}))
	}
	return idx.Snapshot()
}

func floatPtr(f float64) *float64 { return &f }

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{3, 4}, []float32{3, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-2, 0}), 1e-9)
	assert.InDelta(t, 0.9939, Cosine([]float32{1, 0}, []float32{0.9, 0.1}), 1e-4)

	assert.Equal(t, -1.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, -1.0, Cosine([]float32{1, 1}, []float32{0, 0}))
	assert.Equal(t, -1.0, Cosine([]float32{1, 1}, []float32{1, 1, 1}))
	assert.Equal(t, -1.0, Cosine(nil, nil))
}

func TestMatch_EmptyIndex(t *testing.T) {
	_, err := Match([]float32{1, 0}, index.New().Snapshot(), Options{TopK: 3})
	assert.ErrorIs(t, err, ErrEmptyIndex)

	_, err = Match([]float32{1, 0}, nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestMatch_OrderingAndTieBreak(t *testing.T) {
	snap := snapshotOf(t, map[string][]float32{
		"p3": {1, 0},
		"p1": {1, 0},
		"p2": {0, 1},
		"p4": {2, 0},
	})

	res, err := Match([]float32{1, 0}, snap, Options{QueryID: "q"})
	require.NoError(t, err)
	require.Len(t, res, 4)

	ids := []string{res[0].ProfileID, res[1].ProfileID, res[2].ProfileID, res[3].ProfileID}
	assert.Equal(t, []string{"p1", "p3", "p4", "p2"}, ids)
	for i, r := range res {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, "q", r.QueryID)
	}
}

func TestMatch_TopKAndMinScore(t *testing.T) {
	snap := snapshotOf(t, map[string][]float32{
		"a": {1, 0},
		"b": {0.9, 0.1},
		"c": {0.5, 0.5},
		"d": {0, 1},
	})
	q := []float32{1, 0}

	cases := []struct {
		name     string
		opts     Options
		expected []string
	}{
		{"no limit", Options{}, []string{"a", "b", "c", "d"}},
		{"top 2", Options{TopK: 2}, []string{"a", "b"}},
		{"top larger than index", Options{TopK: 10}, []string{"a", "b", "c", "d"}},
		{"floor before truncation", Options{TopK: 3, MinScore: floatPtr(0.8)}, []string{"a", "b"}},
		{"floor excludes all", Options{TopK: 3, MinScore: floatPtr(1.1)}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Match(q, snap, tc.opts)
			require.NoError(t, err)
			got := make([]string, 0, len(res))
			for _, r := range res {
				got = append(got, r.ProfileID)
			}
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestMatch_ZeroQueryScoresWorst(t *testing.T) {
	snap := snapshotOf(t, map[string][]float32{"a": {1, 0}, "b": {0, 1}})
	res, err := Match([]float32{0, 0}, snap, Options{})
	require.NoError(t, err)
	for _, r := range res {
		assert.Equal(t, -1.0, r.Score)
	}
	assert.Equal(t, "a", res[0].ProfileID)
}

func TestMatch_PropertiesOverRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vecs := make(map[string][]float32)
	for i := 0; i < 60; i++ {
		v := make([]float32, 8)
		for j := range v {
			// small integer range forces duplicate scores
			v[j] = float32(rng.Intn(3) - 1)
		}
		vecs[fmt.Sprintf("p%02d", i)] = v
	}
	snap := snapshotOf(t, vecs)

	for trial := 0; trial < 20; trial++ {
		q := make([]float32, 8)
		for j := range q {
			q[j] = float32(rng.Intn(3) - 1)
		}
		floor := rng.Float64()*2 - 1
		k := rng.Intn(15)

		all, err := Match(q, snap, Options{})
		require.NoError(t, err)
		passing := 0
		for _, r := range all {
			if r.Score >= floor {
				passing++
			}
		}

		res, err := Match(q, snap, Options{TopK: k, MinScore: &floor})
		require.NoError(t, err)

		want := passing
		if k > 0 && k < passing {
			want = k
		}
		assert.Len(t, res, want)

		for i := 1; i < len(res); i++ {
			prev, cur := res[i-1], res[i]
			assert.GreaterOrEqual(t, prev.Score, cur.Score)
			if prev.Score == cur.Score {
				assert.Less(t, prev.ProfileID, cur.ProfileID)
			}
		}

		again, err := Match(q, snap, Options{TopK: k, MinScore: &floor})
		require.NoError(t, err)
		assert.Equal(t, res, again)
	}
}

func TestMatch_Scenario(t *testing.T) {
	snap := snapshotOf(t, map[string][]float32{"P": {1, 0}})
	res, err := Match([]float32{0.9, 0.1}, snap, Options{TopK: 1})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "P", res[0].ProfileID)
	assert.InDelta(t, 0.994, res[0].Score, 1e-3)
	assert.Equal(t, 99.39, res[0].Percentage())
}
