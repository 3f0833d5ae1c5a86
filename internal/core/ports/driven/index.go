package driven

import (
	"context"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// IndexStore is the hybrid full-text + vector index over document chunks.
//
// Guarantees the pipeline and retrieval engine rely on:
//   - Upsert is idempotent on the chunk key (repo_id, path, chunk_index).
//   - A supplied repository filter is strict: no chunk outside the filter
//     is ever returned. An empty filter spans all indexed repositories.
//   - Vector scoring is cosine similarity; ties break on most-recent
//     UpdatedAt.
type IndexStore interface {
	// Upsert inserts or replaces chunks by their key, updating both the
	// full-text fields and the stored embedding.
	Upsert(ctx context.Context, chunks []domain.DocumentChunk) error

	// DeleteRange removes chunks of a path whose index is >= from.
	// from == 0 removes the whole path. Used after re-chunking shrinks
	// a file and when a path is deleted.
	DeleteRange(ctx context.Context, repoID, path string, from int) error

	// FullTextSearch runs keyword search and returns ranked hits.
	FullTextSearch(ctx context.Context, query string, repoIDs []string, limit int) ([]IndexHit, error)

	// VectorSearch returns the k nearest chunks to the query vector.
	VectorSearch(ctx context.Context, vector []float32, k int, repoIDs []string) ([]IndexHit, error)

	// Close releases resources.
	Close() error
}

// IndexHit is one ranked result from the index.
type IndexHit struct {
	// Chunk is the matched chunk, including its stored content.
	Chunk domain.DocumentChunk

	// Score is the relevance score: BM25-style for full-text hits,
	// cosine similarity (0-1) for vector hits.
	Score float64
}
