package embedders

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder wraps an Embedder with a bounded LRU keyed by exact text.
//
// A hit and a miss return byte-identical vectors for the same input within
// a session: cached slices are never mutated, and concurrent misses for the
// same key collapse into a single upstream call.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbedder wraps inner with an LRU of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.Get(text); ok {
		e.hits.Add(1)
		return vec, nil
	}
	e.misses.Add(1)

	v, err, _ := e.group.Do(text, func() (any, error) {
		// Re-check: another flight may have populated the cache while we
		// were queued behind it.
		if vec, ok := e.cache.Get(text); ok {
			return vec, nil
		}
		vec, err := e.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		e.cache.Add(text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *CachedEmbedder) Dimension() int { return e.inner.Dimension() }

func (e *CachedEmbedder) Close() error { return e.inner.Close() }

// Stats returns cumulative cache hit and miss counts.
func (e *CachedEmbedder) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}

// Ensure CachedEmbedder implements Embedder.
var _ Embedder = (*CachedEmbedder)(nil)
