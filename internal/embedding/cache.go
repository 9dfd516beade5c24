package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes single-text embeddings. Questions repeat far more often than
// corpus chunks, so EmbedBatch bypasses the cache.
type CachedEmbedder struct {
	Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps e with an LRU cache of the given size.
func NewCachedEmbedder(e Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be greater than zero, got %d", size)
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return &CachedEmbedder{Embedder: e, cache: cache}, nil
}

// Embed returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
