package driving

import (
	"context"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// SearchService is the inbound surface of the retrieval engine.
type SearchService interface {
	// Search performs full-text search across indexed repositories.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// RAGSearch answers a question using retrieval-augmented generation.
	// When retrieval yields nothing it returns the deterministic
	// insufficient-context answer without calling the generation client.
	RAGSearch(ctx context.Context, question string, opts domain.RAGOptions) (*domain.RAGAnswer, error)
}
