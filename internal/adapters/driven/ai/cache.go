package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

var _ driven.EmbeddingClient = (*CachedEmbedder)(nil)

// DefaultCacheSize is the default number of cached embeddings.
const DefaultCacheSize = 4096

// CachedEmbedder wraps an embedding client with an LRU cache keyed by
// content hash, so re-analysing unchanged files skips provider calls.
type CachedEmbedder struct {
	inner driven.EmbeddingClient
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps client with a cache holding up to size
// embeddings. A non-positive size uses DefaultCacheSize.
func NewCachedEmbedder(client driven.EmbeddingClient, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: client, cache: cache}, nil
}

// cacheKey includes the model so switching models invalidates entries.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached embedding or delegates on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch returns cached embeddings where possible and embeds only
// the misses in a single delegated batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	embedded, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missTexts) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(embedded), len(missTexts))
	}

	for j, vec := range embedded {
		i := missIdx[j]
		results[i] = vec
		c.cache.Add(c.cacheKey(texts[i]), vec)
	}
	return results, nil
}

// Dimensions returns the embedding vector size.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName returns the underlying model name.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Ping delegates to the underlying client.
func (c *CachedEmbedder) Ping(ctx context.Context) error { return c.inner.Ping(ctx) }

// Close releases the underlying client.
func (c *CachedEmbedder) Close() error { return c.inner.Close() }

// Len reports the number of cached embeddings.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
