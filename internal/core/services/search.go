package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
	"github.com/custodia-labs/codewiki/internal/core/ports/driving"
	"github.com/custodia-labs/codewiki/internal/logger"
)

// Ensure RetrievalEngine implements the interface.
var _ driving.SearchService = (*RetrievalEngine)(nil)

// DefaultTopK is the default number of chunks retrieved for RAG.
const DefaultTopK = 12

// RetrievalEngine answers full-text and RAG queries against the index.
// Absent a repository filter, queries span every indexed repository;
// cross-repo search is the default, not an opt-in.
type RetrievalEngine struct {
	index     driven.IndexStore
	repos     driven.RepositoryStore
	embedder  driven.EmbeddingClient
	generator driven.GenerationClient

	// contextBudget bounds the RAG prompt size in bytes.
	contextBudget int

	// answerMaxTokens caps generated answer length.
	answerMaxTokens int
}

// RetrievalOption configures the engine.
type RetrievalOption func(*RetrievalEngine)

// WithContextBudget sets the RAG prompt byte budget.
func WithContextBudget(n int) RetrievalOption {
	return func(e *RetrievalEngine) {
		if n > 0 {
			e.contextBudget = n
		}
	}
}

// WithAnswerMaxTokens caps the generated answer length.
func WithAnswerMaxTokens(n int) RetrievalOption {
	return func(e *RetrievalEngine) {
		if n > 0 {
			e.answerMaxTokens = n
		}
	}
}

// NewRetrievalEngine creates the retrieval engine. All collaborators are
// injected; embedder and generator are required for RAG search.
func NewRetrievalEngine(
	index driven.IndexStore,
	repos driven.RepositoryStore,
	embedder driven.EmbeddingClient,
	generator driven.GenerationClient,
	opts ...RetrievalOption,
) *RetrievalEngine {
	e := &RetrievalEngine{
		index:           index,
		repos:           repos,
		embedder:        embedder,
		generator:       generator,
		contextBudget:   16000,
		answerMaxTokens: 1024,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search performs full-text search, enriching hits with repository
// display names and highlight snippets.
func (e *RetrievalEngine) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q, repos: %v", query, opts.RepoIDs)

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	hits, err := e.index.FullTextSearch(ctx, query, opts.RepoIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	logger.Debug("Index returned %d hits", len(hits))

	names := e.repoNames(ctx)
	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, domain.SearchResult{
			Chunk:      hit.Chunk,
			Score:      hit.Score,
			RepoName:   names[hit.Chunk.RepoID],
			Highlights: highlight(hit.Chunk.Content, query),
		})
	}

	return results, nil
}

// RAGSearch answers a question with retrieval-augmented generation.
// When retrieval yields no chunks it returns the deterministic
// insufficient-context answer and never calls the generation client.
func (e *RetrievalEngine) RAGSearch(
	ctx context.Context, question string, opts domain.RAGOptions,
) (*domain.RAGAnswer, error) {
	logger.Section("RAG Search")

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrInvalidInput
	}
	if e.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if e.generator == nil {
		return nil, domain.ErrGenerationUnavailable
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := e.index.VectorSearch(ctx, vector, topK, opts.RepoIDs)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search returned %d hits", len(hits))

	if len(hits) == 0 {
		return &domain.RAGAnswer{
			Answer:   domain.InsufficientContextAnswer,
			Grounded: false,
		}, nil
	}

	prompt, citations := e.buildRAGPrompt(question, hits)
	logger.Debug("RAG prompt: %d bytes, %d citations", len(prompt), len(citations))

	answer, err := e.generator.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   e.answerMaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.RAGAnswer{
		Answer:    strings.TrimSpace(answer),
		Citations: citations,
		Grounded:  true,
	}, nil
}

// buildRAGPrompt assembles the generation prompt from retrieved chunks,
// highest score first, dropping the tail once the byte budget is hit.
// The returned citations are exactly the chunks placed in the prompt.
func (e *RetrievalEngine) buildRAGPrompt(question string, hits []driven.IndexHit) (string, []domain.Citation) {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("Cite the source paths you used. If the context does not contain the answer, say so.\n\nContext:\n")

	var citations []domain.Citation
	footer := "\nQuestion: " + question + "\nAnswer:"
	used := b.Len() + len(footer)

	for _, hit := range hits {
		section := fmt.Sprintf("\n[%s %s #%d]\n%s\n",
			hit.Chunk.RepoID, hit.Chunk.Path, hit.Chunk.ChunkIndex, hit.Chunk.Content)
		if used+len(section) > e.contextBudget && len(citations) > 0 {
			break
		}
		b.WriteString(section)
		used += len(section)
		citations = append(citations, domain.Citation{
			RepoID:     hit.Chunk.RepoID,
			Path:       hit.Chunk.Path,
			ChunkIndex: hit.Chunk.ChunkIndex,
			Score:      hit.Score,
		})
	}

	b.WriteString(footer)
	return b.String(), citations
}

// repoNames maps repository ids to display names for enrichment.
// Failures degrade to bare ids rather than failing the search.
func (e *RetrievalEngine) repoNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	if e.repos == nil {
		return names
	}

	repos, err := e.repos.List(ctx)
	if err != nil {
		logger.Warn("Repository name enrichment failed: %v", err)
		return names
	}
	for _, r := range repos {
		names[r.ID] = r.Name
	}
	return names
}

// highlight extracts up to three snippet lines containing query terms.
func highlight(content, query string) []string {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	var highlights []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		lower := strings.ToLower(trimmed)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				if len(trimmed) > 200 {
					trimmed = trimmed[:200] + "..."
				}
				highlights = append(highlights, trimmed)
				break
			}
		}
		if len(highlights) >= 3 {
			break
		}
	}

	return highlights
}
