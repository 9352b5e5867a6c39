// Package matcher ranks indexed profiles against a query vector.
package matcher

import (
	"errors"
	"math"
	"sort"

	"github.com/Shivanand-hulikatti/advisor-match/internal/index"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// ErrEmptyIndex is returned when there is nothing to match against. It
// usually means profiles were never loaded or none are complete.
var ErrEmptyIndex = errors.New("profile index is empty")

// Options controls ranking. TopK <= 0 disables truncation; a nil MinScore
// disables the similarity floor.
type Options struct {
	TopK     int
	MinScore *float64
	QueryID  string
}

// Match scores every profile in snap against query and returns the ranked
// results. The ordering is score descending, then profile id ascending.
func Match(query []float32, snap *index.Snapshot, opts Options) ([]model.MatchResult, error) {
	if snap.Len() == 0 {
		return nil, ErrEmptyIndex
	}

	results := make([]model.MatchResult, 0, snap.Len())
	for _, p := range snap.Profiles {
		score := Cosine(query, p.Embedding)
		if opts.MinScore != nil && score < *opts.MinScore {
			continue
		}
		results = append(results, model.MatchResult{
			QueryID:   opts.QueryID,
			ProfileID: p.ID,
			Score:     score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ProfileID < results[j].ProfileID
	})

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero magnitude score -1.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return -1
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// clamp rounding drift
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	if math.IsNaN(s) {
		return -1
	}
	return s
}
