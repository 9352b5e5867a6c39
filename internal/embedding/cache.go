package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Cache memoises vectors by text and collapses concurrent requests for the
// same text into one provider call. The least recently used vector is
// evicted first.
//
// The collapsed call is detached from the caller that started it, so one
// caller giving up does not fail the others waiting on the same text. Each
// caller still returns as soon as its own context is done.
type Cache struct {
	next    Provider
	timeout time.Duration
	group   singleflight.Group
	entries *lru.Cache[string, []float32] // nil when storage is disabled
}

// NewCache wraps p with a cache holding up to size vectors. size <= 0
// disables storage but keeps request collapsing. timeout bounds a collapsed
// provider call; zero leaves it to the wrapped provider.
func NewCache(p Provider, size int, timeout time.Duration) *Cache {
	c := &Cache{next: p, timeout: timeout}
	if size > 0 {
		// only fails for a non-positive size
		c.entries, _ = lru.New[string, []float32](size)
	}
	return c
}

func (c *Cache) Name() string   { return c.next.Name() }
func (c *Cache) Dimension() int { return c.next.Dimension() }

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.get(key); ok {
		return vec, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		callCtx := shared
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(shared, c.timeout)
			defer cancel()
		}
		vec, err := c.next.Embed(callCtx, text)
		if err != nil {
			return nil, err
		}
		c.put(key, vec)
		return vec, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]float32)), nil
	}
}

func (c *Cache) key(text string) string {
	h := sha256.Sum256([]byte(c.next.Name() + "\x00" + text))
	return hex.EncodeToString(h[:])
}

func (c *Cache) get(key string) ([]float32, bool) {
	if c.entries == nil {
		return nil, false
	}
	vec, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return clone(vec), true
}

func (c *Cache) put(key string, vec []float32) {
	if c.entries == nil {
		return
	}
	c.entries.Add(key, clone(vec))
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}
