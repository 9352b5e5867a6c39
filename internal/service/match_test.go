package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/advisor-match/internal/extract"
	"github.com/Shivanand-hulikatti/advisor-match/internal/index"
	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/matcher"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

func floatPtr(f float64) *float64 { return &f }

func seedCatalog(t *testing.T, env *testEnv) (robotics, vision, mixed *model.Profile) {
	t.Helper()
	robotics = env.createProfile(t, "p1", "robotics", 2, 1, 0)
	vision = env.createProfile(t, "p2", "vision", 2, 0, 1)
	mixed = env.createProfile(t, "p3", "perception", 2, 1, 1)
	return robotics, vision, mixed
}

func TestMatch_TextRanksAndEnriches(t *testing.T) {
	env := newTestEnv(t)
	robotics, _, mixed := seedCatalog(t, env)
	env.embedder.set("grasping", 1, 0.1)

	views, err := env.matches.MatchText(context.Background(), "learning grasping policies", model.MatchRequest{TopK: 2})
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, robotics.ID, views[0].ProfileID)
	assert.Equal(t, 1, views[0].Rank)
	assert.Equal(t, robotics.Name, views[0].Name)
	assert.Equal(t, []string{"robotics"}, views[0].Topics)
	assert.Equal(t, views[0].MatchResult.Percentage(), views[0].Percentage)
	assert.Equal(t, mixed.ID, views[1].ProfileID)
	assert.Empty(t, views[0].QueryID)
}

func TestMatch_DefaultsAndMinScore(t *testing.T) {
	env := newTestEnv(t)
	seedCatalog(t, env)
	env.embedder.set("grasping", 1, 0)

	views, err := env.matches.MatchText(context.Background(), "learning grasping policies", model.MatchRequest{})
	require.NoError(t, err)
	assert.Len(t, views, 3)

	views, err = env.matches.MatchText(context.Background(), "learning grasping policies", model.MatchRequest{MinScore: floatPtr(0.5)})
	require.NoError(t, err)
	assert.Len(t, views, 2)

	withDefaultFloor := NewMatchService(env.index, env.store.Documents(), env.embedder,
		MatchDefaults{TopK: 1, MinScore: floatPtr(0.9)}, logger.Nop())
	views, err = withDefaultFloor.MatchText(context.Background(), "learning grasping policies", model.MatchRequest{})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestMatch_Document(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, vision, _ := seedCatalog(t, env)
	env.embedder.set("segmentation", 0, 1)

	doc, err := env.documents.SubmitText(ctx, "student", "image segmentation with transformers")
	require.NoError(t, err)

	views, err := env.matches.Match(ctx, "student", model.MatchRequest{DocumentID: doc.ID, TopK: 1})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, vision.ID, views[0].ProfileID)
	assert.Equal(t, doc.ID, views[0].QueryID)
	assert.InDelta(t, 1.0, views[0].Score, 1e-9)

	calls := env.embedder.calls.Load()
	_, err = env.matches.Match(ctx, "student", model.MatchRequest{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, calls, env.embedder.calls.Load(), "stored vector is reused")

	_, err = env.matches.Match(ctx, "someone-else", model.MatchRequest{DocumentID: doc.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMatch_Errors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.matches.MatchText(ctx, "a perfectly fine query", model.MatchRequest{})
	assert.ErrorIs(t, err, matcher.ErrEmptyIndex)

	seedCatalog(t, env)

	_, err = env.matches.MatchText(ctx, "   ", model.MatchRequest{})
	assert.ErrorIs(t, err, extract.ErrEmptyContent)
	_, err = env.matches.MatchText(ctx, "short", model.MatchRequest{})
	assert.ErrorIs(t, err, extract.ErrEmptyContent)
	_, err = env.matches.Match(ctx, "s", model.MatchRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.matches.MatchText(ctx, "a perfectly fine query", model.MatchRequest{TopK: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.matches.MatchText(ctx, "a perfectly fine query", model.MatchRequest{MinScore: floatPtr(2)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	env.embedder.set("wide", 1, 0, 0)
	_, err = env.matches.MatchText(ctx, "a wide vector query", model.MatchRequest{})
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestMatch_CancelledCallerGetsNothing(t *testing.T) {
	env := newTestEnv(t)
	seedCatalog(t, env)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	views, err := env.matches.MatchText(ctx, "a perfectly fine query", model.MatchRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, views)
}

func TestMatch_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	seedCatalog(t, env)
	env.embedder.set("grasping", 0.5, 0.5)

	first, err := env.matches.MatchText(context.Background(), "learning grasping policies", model.MatchRequest{})
	require.NoError(t, err)
	second, err := env.matches.MatchText(context.Background(), "learning grasping policies", model.MatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
