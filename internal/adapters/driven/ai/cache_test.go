package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records calls and returns deterministic vectors.
type countingEmbedder struct {
	embedCalls int
	batchCalls int
	batchTexts [][]string
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return vecFor(text), nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	c.batchTexts = append(c.batchTexts, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vecFor(t)
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int            { return 2 }
func (c *countingEmbedder) ModelName() string          { return "counting-model" }
func (c *countingEmbedder) Ping(context.Context) error { return nil }
func (c *countingEmbedder) Close() error               { return nil }

func vecFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func TestCachedEmbedderHitSkipsClient(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)

	first, err := cached.Embed(context.Background(), "hello")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embedCalls)
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedderBatchEmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "alpha")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecFor("alpha"), vecs[0])
	assert.Equal(t, vecFor("beta"), vecs[1])

	require.Equal(t, 1, inner.batchCalls)
	assert.Equal(t, []string{"beta", "gamma"}, inner.batchTexts[0])
}

func TestCachedEmbedderFullyCachedBatch(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)

	_, err = cached.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = cached.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, inner.batchCalls)
}

func TestCachedEmbedderEmptyBatch(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 8)
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, inner.batchCalls)
}

func TestRateLimitedEmbedderDelegates(t *testing.T) {
	inner := &countingEmbedder{}
	limited := NewRateLimitedEmbedder(inner, 1000, 10)

	vec, err := limited.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, vecFor("hello"), vec)
	assert.Equal(t, "counting-model", limited.ModelName())
	assert.Equal(t, 2, limited.Dimensions())
}

func TestRateLimitedEmbedderHonoursCancellation(t *testing.T) {
	inner := &countingEmbedder{}
	limited := NewRateLimitedEmbedder(inner, 0.001, 1)

	// Drain the initial burst token.
	_, err := limited.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.Embed(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, 1, inner.embedCalls)
}
