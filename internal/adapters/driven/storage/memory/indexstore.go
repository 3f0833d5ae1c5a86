package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore is an in-memory hybrid index. Full-text scoring is a plain
// term-frequency count; vector scoring is cosine similarity.
type IndexStore struct {
	mu     sync.RWMutex
	chunks map[string]domain.DocumentChunk

	// dims, when non-zero, rejects vectors of any other size.
	dims int
}

// NewIndexStore creates a new in-memory index. dims of zero disables
// dimension checking.
func NewIndexStore(dims int) *IndexStore {
	return &IndexStore{
		chunks: make(map[string]domain.DocumentChunk),
		dims:   dims,
	}
}

// Upsert inserts or replaces chunks by their key.
func (s *IndexStore) Upsert(_ context.Context, chunks []domain.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		if s.dims > 0 && chunk.Embedding != nil && len(chunk.Embedding) != s.dims {
			return domain.ErrDimensionMismatch
		}
		s.chunks[chunk.Key()] = chunk
	}
	return nil
}

// DeleteRange removes chunks of a path whose index is >= from.
func (s *IndexStore) DeleteRange(_ context.Context, repoID, path string, from int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, chunk := range s.chunks {
		if chunk.RepoID == repoID && chunk.Path == path && chunk.ChunkIndex >= from {
			delete(s.chunks, key)
		}
	}
	return nil
}

// FullTextSearch runs keyword search over stored chunk content.
func (s *IndexStore) FullTextSearch(_ context.Context, query string, repoIDs []string, limit int) ([]driven.IndexHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []driven.IndexHit
	for _, chunk := range s.chunks {
		if !inFilter(chunk.RepoID, repoIDs) {
			continue
		}
		score := keywordScore(chunk.Content, terms)
		if score > 0 {
			hits = append(hits, driven.IndexHit{Chunk: chunk, Score: score})
		}
	}

	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// VectorSearch returns the k nearest chunks by cosine similarity.
func (s *IndexStore) VectorSearch(_ context.Context, vector []float32, k int, repoIDs []string) ([]driven.IndexHit, error) {
	if len(vector) == 0 || k <= 0 {
		return nil, nil
	}
	if s.dims > 0 && len(vector) != s.dims {
		return nil, domain.ErrDimensionMismatch
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []driven.IndexHit
	for _, chunk := range s.chunks {
		if !inFilter(chunk.RepoID, repoIDs) {
			continue
		}
		if len(chunk.Embedding) != len(vector) {
			continue
		}
		hits = append(hits, driven.IndexHit{
			Chunk: chunk,
			Score: cosineSimilarity(vector, chunk.Embedding),
		})
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases resources.
func (s *IndexStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]domain.DocumentChunk)
	return nil
}

// sortHits orders by score descending, breaking ties on the most recent
// UpdatedAt, then on the chunk key for stability.
func sortHits(hits []driven.IndexHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Chunk.UpdatedAt.Equal(hits[j].Chunk.UpdatedAt) {
			return hits[i].Chunk.UpdatedAt.After(hits[j].Chunk.UpdatedAt)
		}
		return hits[i].Chunk.Key() < hits[j].Chunk.Key()
	})
}

// keywordScore counts term occurrences; every query term must appear at
// least once for the chunk to match.
func keywordScore(content string, terms []string) float64 {
	lower := strings.ToLower(content)
	var score float64
	for _, term := range terms {
		n := strings.Count(lower, term)
		if n == 0 {
			return 0
		}
		score += float64(n)
	}
	return score
}

// cosineSimilarity computes the cosine of the angle between two vectors,
// mapped to [0, 1].
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

func inFilter(repoID string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, id := range filter {
		if id == repoID {
			return true
		}
	}
	return false
}
