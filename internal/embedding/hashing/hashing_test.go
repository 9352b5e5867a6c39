package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_DeterministicAndNormalised(t *testing.T) {
	e := New(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Graph neural networks for drug discovery")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "graph NEURAL networks for drug discovery")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbed_NoTokensGivesZeroVector(t *testing.T) {
	vec, err := New(8).Embed(context.Background(), "  ... !!! ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vec)
}

func TestEmbed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(8).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_DefaultDimension(t *testing.T) {
	assert.Equal(t, 256, New(0).Dimension())
	assert.Equal(t, "hashing", New(0).Name())
}
