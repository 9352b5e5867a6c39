package embedding

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls   atomic.Int32
	release chan struct{}
}

func (p *countingProvider) Name() string   { return "counting" }
func (p *countingProvider) Dimension() int { return 1 }

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []float32{float32(len(text))}, nil
}

func TestCache_HitsAvoidProviderCalls(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, 8, 0)
	ctx := context.Background()

	a, err := c.Embed(ctx, "abc")
	require.NoError(t, err)
	b, err := c.Embed(ctx, "abc")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.EqualValues(t, 1, p.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(&countingProvider{}, 8, 0)
	ctx := context.Background()

	a, err := c.Embed(ctx, "abc")
	require.NoError(t, err)
	a[0] = 99

	b, err := c.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, float32(3), b[0])
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, 2, 0)
	ctx := context.Background()

	for _, s := range []string{"a", "bb", "ccc"} {
		_, err := c.Embed(ctx, s)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 4, p.calls.Load())
}

func TestCache_CollapsesConcurrentRequests(t *testing.T) {
	p := &countingProvider{release: make(chan struct{})}
	c := NewCache(p, 8, 0)

	var wg sync.WaitGroup
	results := make([][]float32, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Embed(context.Background(), "same text")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	// let stragglers join the in-flight call before releasing it
	time.Sleep(20 * time.Millisecond)
	close(p.release)
	wg.Wait()

	assert.EqualValues(t, 1, p.calls.Load())
	for _, v := range results {
		assert.Equal(t, []float32{9}, v)
	}
}

func TestCache_RecentUseProtectsFromEviction(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, 2, 0)
	ctx := context.Background()

	for _, s := range []string{"a", "bb", "a", "ccc"} {
		_, err := c.Embed(ctx, s)
		require.NoError(t, err)
	}
	// "bb" was the least recently used when "ccc" arrived
	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 3, p.calls.Load())

	_, err = c.Embed(ctx, "bb")
	require.NoError(t, err)
	assert.EqualValues(t, 4, p.calls.Load())
}

func TestCache_DisabledStorageStillCollapses(t *testing.T) {
	p := &countingProvider{}
	c := NewCache(p, 0, 0)
	ctx := context.Background()

	_, err := c.Embed(ctx, "abc")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	p := &countingProvider{release: make(chan struct{})}
	c := NewCache(p, 8, time.Second)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Embed(ctxA, "shared")
		errA <- err
	}()
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		vec []float32
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.Embed(context.Background(), "shared")
		resB <- result{v, err}
	}()
	// let B join the in-flight call
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(p.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, []float32{6}, b.vec)
	assert.EqualValues(t, 1, p.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_TimeoutBoundsSharedCall(t *testing.T) {
	p := &countingProvider{release: make(chan struct{})}
	c := NewCache(p, 8, 20*time.Millisecond)

	_, err := c.Embed(context.Background(), "stuck")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, c.Len())
}
