package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

func testProfile(id string, vec ...float32) model.Profile {
	return model.Profile{
		ID:         id,
		Name:       "Prof " + id,
		Title:      "Professor",
		Department: "CS",
		Topics:     []string{"ml"},
		Capacity:   2,
		Embedding:  vec,
	}
}

func TestUpsert_OrdersByID(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(testProfile("c", 1, 0)))
	require.NoError(t, idx.Upsert(testProfile("a", 0, 1)))
	require.NoError(t, idx.Upsert(testProfile("b", 1, 1)))

	snap := idx.Snapshot()
	require.Equal(t, 3, snap.Len())
	assert.Equal(t, "a", snap.Profiles[0].ID)
	assert.Equal(t, "b", snap.Profiles[1].ID)
	assert.Equal(t, "c", snap.Profiles[2].ID)
	assert.Equal(t, 2, snap.Dimension)
	assert.EqualValues(t, 3, snap.Version)
}

func TestUpsert_ReplacesExisting(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(testProfile("a", 1, 0)))
	require.NoError(t, idx.Upsert(testProfile("a", 0, 1)))

	p, ok := idx.Snapshot().Lookup("a")
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1}, p.Embedding)
	assert.Equal(t, 1, idx.Len())
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(testProfile("a", 1, 0)))

	err := idx.Upsert(testProfile("b", 1, 0, 0))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, idx.Len())
}

func TestUpsert_SoleProfileMayChangeDimension(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(testProfile("a", 1, 0)))
	require.NoError(t, idx.Upsert(testProfile("a", 1, 0, 0)))
	assert.Equal(t, 3, idx.Snapshot().Dimension)
}

func TestUpsert_IncompleteProfileIsRemoved(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(testProfile("a", 1, 0)))

	p := testProfile("a", 1, 0)
	p.Department = ""
	require.NoError(t, idx.Upsert(p))
	assert.Equal(t, 0, idx.Len())

	require.NoError(t, idx.Upsert(testProfile("b")))
	assert.Equal(t, 0, idx.Len())
}

func TestRemove(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(testProfile("a", 1, 0)))
	require.NoError(t, idx.Upsert(testProfile("b", 0, 1)))

	idx.Remove("a")
	idx.Remove("missing")

	snap := idx.Snapshot()
	assert.Equal(t, 1, snap.Len())
	_, ok := snap.Lookup("a")
	assert.False(t, ok)

	idx.Remove("b")
	assert.Equal(t, 0, idx.Snapshot().Dimension)
}

func TestSnapshot_StableAcrossWrites(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(testProfile("a", 1, 0)))
	snap := idx.Snapshot()

	require.NoError(t, idx.Upsert(testProfile("a", 0, 1)))
	require.NoError(t, idx.Upsert(testProfile("b", 1, 1)))
	idx.Remove("a")

	require.Equal(t, 1, snap.Len())
	assert.Equal(t, []float32{1, 0}, snap.Profiles[0].Embedding)
	assert.Less(t, snap.Version, idx.Snapshot().Version)
}

func TestSnapshot_IsolatedFromCallerMutation(t *testing.T) {
	idx := New()
	p := testProfile("a", 1, 0)
	require.NoError(t, idx.Upsert(p))
	p.Embedding[0] = 42

	got, _ := idx.Snapshot().Lookup("a")
	assert.Equal(t, float32(1), got.Embedding[0])
}

func TestReplace(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(testProfile("old", 1, 0)))

	incomplete := testProfile("skip", 1, 0)
	incomplete.Name = ""
	require.NoError(t, idx.Replace([]model.Profile{testProfile("z", 1, 0), incomplete, testProfile("m", 0, 1)}))

	snap := idx.Snapshot()
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, "m", snap.Profiles[0].ID)
	assert.Equal(t, "z", snap.Profiles[1].ID)

	err := idx.Replace([]model.Profile{testProfile("a", 1, 0), testProfile("b", 1)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 2, idx.Len())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	idx := New()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, idx.Upsert(testProfile(fmt.Sprintf("%d-%02d", w, i), 1, float32(i))))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				snap := idx.Snapshot()
				n := snap.Len()
				for j := 1; j < n; j++ {
					assert.Less(t, snap.Profiles[j-1].ID, snap.Profiles[j].ID)
				}
				assert.Equal(t, n, len(snap.Profiles))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, idx.Len())
	assert.EqualValues(t, 200, idx.Snapshot().Version)
}
