// Package index keeps the in-memory catalog of profile vectors used for
// matching. Readers take immutable snapshots; writers publish new ones.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// ErrDimensionMismatch is returned when a profile vector does not match the
// dimension of the vectors already indexed.
var ErrDimensionMismatch = errors.New("profile vector dimension mismatch")

// Snapshot is a point-in-time view of the index. It must not be modified.
type Snapshot struct {
	Version   uint64
	Dimension int
	Profiles  []model.Profile
}

// Len returns the number of profiles in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Profiles)
}

// Lookup finds a profile by id with a binary search.
func (s *Snapshot) Lookup(id string) (model.Profile, bool) {
	if s == nil {
		return model.Profile{}, false
	}
	i := sort.Search(len(s.Profiles), func(i int) bool { return s.Profiles[i].ID >= id })
	if i < len(s.Profiles) && s.Profiles[i].ID == id {
		return s.Profiles[i], true
	}
	return model.Profile{}, false
}

// Searcher is the read side callers depend on, so that an approximate
// nearest-neighbour structure can replace the flat index later.
type Searcher interface {
	Snapshot() *Snapshot
}

// ProfileIndex is a copy-on-write profile catalog. Upsert and Remove are
// O(n) in the number of profiles, which is fine for a catalog of a few
// thousand entries; Snapshot is a single atomic load.
type ProfileIndex struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// New returns an empty index.
func New() *ProfileIndex {
	idx := &ProfileIndex{}
	idx.current.Store(&Snapshot{})
	return idx
}

// Snapshot returns the current immutable view.
func (x *ProfileIndex) Snapshot() *Snapshot {
	return x.current.Load()
}

// Len returns the number of indexed profiles.
func (x *ProfileIndex) Len() int {
	return x.Snapshot().Len()
}

// Upsert adds or replaces p. Profiles that are incomplete or have no vector
// are removed instead, since they cannot take part in matching.
func (x *ProfileIndex) Upsert(p model.Profile) error {
	if !p.IsComplete() || len(p.Embedding) == 0 {
		x.Remove(p.ID)
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.current.Load()
	dim := cur.Dimension
	if _, ok := cur.Lookup(p.ID); ok {
		if len(cur.Profiles) == 1 {
			// the only vector is being replaced, so its dimension no longer binds
			dim = 0
		}
	}
	if dim != 0 && len(p.Embedding) != dim {
		return fmt.Errorf("%w: profile %s has %d, index has %d", ErrDimensionMismatch, p.ID, len(p.Embedding), dim)
	}

	next := make([]model.Profile, 0, len(cur.Profiles)+1)
	for _, q := range cur.Profiles {
		if q.ID != p.ID {
			next = append(next, q)
		}
	}
	next = append(next, p.Clone())
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

	x.current.Store(&Snapshot{Version: cur.Version + 1, Dimension: len(p.Embedding), Profiles: next})
	return nil
}

// Remove drops the profile with id. Removing an unknown id is a no-op.
func (x *ProfileIndex) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.current.Load()
	if _, ok := cur.Lookup(id); !ok {
		return
	}
	next := make([]model.Profile, 0, len(cur.Profiles))
	for _, q := range cur.Profiles {
		if q.ID != id {
			next = append(next, q)
		}
	}
	dim := cur.Dimension
	if len(next) == 0 {
		dim = 0
	}
	x.current.Store(&Snapshot{Version: cur.Version + 1, Dimension: dim, Profiles: next})
}

// Replace swaps the whole catalog in one step. Profiles that cannot be
// matched are skipped; mixed dimensions are rejected.
func (x *ProfileIndex) Replace(profiles []model.Profile) error {
	next := make([]model.Profile, 0, len(profiles))
	dim := 0
	for _, p := range profiles {
		if !p.IsComplete() || len(p.Embedding) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(p.Embedding)
		} else if len(p.Embedding) != dim {
			return fmt.Errorf("%w: profile %s has %d, expected %d", ErrDimensionMismatch, p.ID, len(p.Embedding), dim)
		}
		next = append(next, p.Clone())
	}
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

	x.mu.Lock()
	defer x.mu.Unlock()
	cur := x.current.Load()
	x.current.Store(&Snapshot{Version: cur.Version + 1, Dimension: dim, Profiles: next})
	return nil
}
