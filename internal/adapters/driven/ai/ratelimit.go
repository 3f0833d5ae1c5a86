package ai

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure the wrappers implement their interfaces.
var (
	_ driven.EmbeddingClient  = (*RateLimitedEmbedder)(nil)
	_ driven.GenerationClient = (*RateLimitedGenerator)(nil)
)

// RateLimitedEmbedder wraps an embedding client with a token-bucket
// limiter so bulk pipeline runs stay under provider rate limits.
type RateLimitedEmbedder struct {
	inner   driven.EmbeddingClient
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps client, allowing rps requests per second
// with the given burst.
func NewRateLimitedEmbedder(client driven.EmbeddingClient, rps float64, burst int) *RateLimitedEmbedder {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		inner:   client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed waits for limiter capacity and delegates.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}

// EmbedBatch waits for limiter capacity once per batch and delegates.
func (r *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the embedding vector size.
func (r *RateLimitedEmbedder) Dimensions() int { return r.inner.Dimensions() }

// ModelName returns the underlying model name.
func (r *RateLimitedEmbedder) ModelName() string { return r.inner.ModelName() }

// Ping delegates without consuming limiter capacity.
func (r *RateLimitedEmbedder) Ping(ctx context.Context) error { return r.inner.Ping(ctx) }

// Close releases the underlying client.
func (r *RateLimitedEmbedder) Close() error { return r.inner.Close() }

// RateLimitedGenerator wraps a generation client with a token-bucket
// limiter.
type RateLimitedGenerator struct {
	inner   driven.GenerationClient
	limiter *rate.Limiter
}

// NewRateLimitedGenerator wraps client, allowing rps requests per second
// with the given burst.
func NewRateLimitedGenerator(client driven.GenerationClient, rps float64, burst int) *RateLimitedGenerator {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedGenerator{
		inner:   client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate waits for limiter capacity and delegates.
func (r *RateLimitedGenerator) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Generate(ctx, prompt, opts)
}

// ModelName returns the underlying model name.
func (r *RateLimitedGenerator) ModelName() string { return r.inner.ModelName() }

// Ping delegates without consuming limiter capacity.
func (r *RateLimitedGenerator) Ping(ctx context.Context) error { return r.inner.Ping(ctx) }

// Close releases the underlying client.
func (r *RateLimitedGenerator) Close() error { return r.inner.Close() }
