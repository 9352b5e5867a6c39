package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/advisor-match/internal/embedding"
	"github.com/Shivanand-hulikatti/advisor-match/internal/extract"
	"github.com/Shivanand-hulikatti/advisor-match/internal/index"
	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/matcher"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// MinQueryLength is the shortest canonical text accepted as a match query.
const MinQueryLength = 10

func checkQueryLength(text string) error {
	if utf8.RuneCountInString(text) < MinQueryLength {
		return fmt.Errorf("%w: text must be at least %d characters", extract.ErrEmptyContent, MinQueryLength)
	}
	return nil
}

// MatchDefaults are applied when a request leaves a field unset.
type MatchDefaults struct {
	TopK     int
	MinScore *float64
}

// MatchService ranks profiles for a student's document or free text.
type MatchService struct {
	index    index.Searcher
	docs     DocumentStore
	embedder embedding.Provider
	defaults MatchDefaults
	log      *logger.Logger
}

// NewMatchService constructs a MatchService.
func NewMatchService(idx index.Searcher, docs DocumentStore, embedder embedding.Provider, defaults MatchDefaults, log *logger.Logger) *MatchService {
	return &MatchService{
		index:    idx,
		docs:     docs,
		embedder: embedder,
		defaults: defaults,
		log:      log.With("service", "MatchService"),
	}
}

func (s *MatchService) options(req model.MatchRequest, queryID string) (matcher.Options, error) {
	opts := matcher.Options{TopK: s.defaults.TopK, MinScore: s.defaults.MinScore, QueryID: queryID}
	if req.TopK < 0 {
		return opts, fmt.Errorf("%w: top_k must not be negative", ErrInvalidInput)
	}
	if req.TopK > 0 {
		opts.TopK = req.TopK
	}
	if req.MinScore != nil {
		if *req.MinScore < -1 || *req.MinScore > 1 {
			return opts, fmt.Errorf("%w: min_score must be within [-1, 1]", ErrInvalidInput)
		}
		opts.MinScore = req.MinScore
	}
	return opts, nil
}

// Match dispatches on the request: a document id takes precedence over text.
func (s *MatchService) Match(ctx context.Context, actorID string, req model.MatchRequest) ([]model.MatchView, error) {
	if req.DocumentID != "" {
		return s.MatchDocument(ctx, actorID, req.DocumentID, req)
	}
	if req.Text == "" {
		return nil, fmt.Errorf("%w: document_id or text is required", ErrInvalidInput)
	}
	return s.MatchText(ctx, req.Text, req)
}

// MatchDocument ranks profiles against a stored document's vector. Only the
// document's owner may match it.
func (s *MatchService) MatchDocument(ctx context.Context, actorID, docID string, req model.MatchRequest) ([]model.MatchView, error) {
	opts, err := s.options(req, docID)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != actorID {
		return nil, ErrForbidden
	}
	return s.rank(doc.Embedding, opts)
}

// MatchText embeds text and ranks profiles against it. Nothing is stored.
func (s *MatchService) MatchText(ctx context.Context, text string, req model.MatchRequest) ([]model.MatchView, error) {
	opts, err := s.options(req, "")
	if err != nil {
		return nil, err
	}
	canonical, err := extract.Extract([]byte(text), extract.KindText)
	if err != nil {
		return nil, err
	}
	if err := checkQueryLength(canonical); err != nil {
		return nil, err
	}
	vec, err := s.embedder.Embed(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	// a cancelled caller gets nothing, even if embedding just finished
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.rank(vec, opts)
}

func (s *MatchService) rank(query []float32, opts matcher.Options) ([]model.MatchView, error) {
	snap := s.index.Snapshot()
	if snap.Len() > 0 && len(query) != snap.Dimension {
		s.log.Error("query vector dimension does not match index",
			"query_dimension", len(query), "index_dimension", snap.Dimension, "index_version", snap.Version)
		return nil, fmt.Errorf("%w: query has %d, index has %d", index.ErrDimensionMismatch, len(query), snap.Dimension)
	}

	results, err := matcher.Match(query, snap, opts)
	if err != nil {
		if errors.Is(err, matcher.ErrEmptyIndex) {
			s.log.Error("match requested against an empty profile index")
		}
		return nil, err
	}

	views := make([]model.MatchView, 0, len(results))
	for _, r := range results {
		p, ok := snap.Lookup(r.ProfileID)
		if !ok {
			continue
		}
		views = append(views, model.MatchView{
			MatchResult: r,
			Percentage:  r.Percentage(),
			Name:        p.Name,
			Title:       p.Title,
			Department:  p.Department,
			Topics:      p.Topics,
			Expertise:   p.Expertise,
			Capacity:    p.Capacity,
		})
	}
	return views, nil
}
