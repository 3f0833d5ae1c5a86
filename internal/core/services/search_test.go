package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

func seedChunk(repoID, path string, idx int, content string) domain.DocumentChunk {
	return domain.DocumentChunk{
		RepoID:     repoID,
		Path:       path,
		ChunkIndex: idx,
		Content:    content,
	}
}

func TestSearchEnrichesHits(t *testing.T) {
	repos := newFakeRepoStore(
		testRepo("r1", domain.RepoStatusReady),
		testRepo("r2", domain.RepoStatusReady),
	)
	index := newFakeIndex()
	require.NoError(t, index.Upsert(context.Background(), []domain.DocumentChunk{
		seedChunk("r1", "auth/token.go", 0, "func ValidateToken(raw string) error {\n\treturn nil\n}"),
		seedChunk("r2", "docs/auth.md", 0, "Token validation happens server side."),
		seedChunk("r2", "main.go", 0, "package main"),
	}))

	engine := NewRetrievalEngine(index, repos, &fakeEmbedder{}, &fakeGenerator{})

	results, err := engine.Search(context.Background(), "token", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byRepo := make(map[string]domain.SearchResult)
	for _, r := range results {
		byRepo[r.Chunk.RepoID] = r
	}
	assert.Equal(t, "acme/r1", byRepo["r1"].RepoName)
	assert.Equal(t, "acme/r2", byRepo["r2"].RepoName)
	assert.NotEmpty(t, byRepo["r1"].Highlights)
	assert.Contains(t, strings.ToLower(byRepo["r1"].Highlights[0]), "token")
}

func TestSearchRespectsRepoFilter(t *testing.T) {
	repos := newFakeRepoStore(testRepo("r1", domain.RepoStatusReady), testRepo("r2", domain.RepoStatusReady))
	index := newFakeIndex()
	require.NoError(t, index.Upsert(context.Background(), []domain.DocumentChunk{
		seedChunk("r1", "a.go", 0, "token handling"),
		seedChunk("r2", "b.go", 0, "token handling"),
	}))

	engine := NewRetrievalEngine(index, repos, &fakeEmbedder{}, &fakeGenerator{})

	results, err := engine.Search(context.Background(), "token", domain.SearchOptions{RepoIDs: []string{"r1"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].Chunk.RepoID)
}

func TestSearchEmptyQuery(t *testing.T) {
	engine := NewRetrievalEngine(newFakeIndex(), newFakeRepoStore(), &fakeEmbedder{}, &fakeGenerator{})

	results, err := engine.Search(context.Background(), "   ", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRAGSearchGroundedAnswer(t *testing.T) {
	repos := newFakeRepoStore(testRepo("r1", domain.RepoStatusReady))
	index := newFakeIndex()
	index.vecHits = []driven.IndexHit{
		{Chunk: seedChunk("r1", "auth/token.go", 0, "tokens are validated against the keyring"), Score: 0.91},
		{Chunk: seedChunk("r1", "auth/keyring.go", 2, "the keyring rotates daily"), Score: 0.84},
	}
	generator := &fakeGenerator{reply: "Tokens are validated against a daily-rotated keyring."}

	engine := NewRetrievalEngine(index, repos, &fakeEmbedder{}, generator)

	answer, err := engine.RAGSearch(context.Background(), "How are tokens validated?", domain.RAGOptions{})
	require.NoError(t, err)

	assert.True(t, answer.Grounded)
	assert.Equal(t, "Tokens are validated against a daily-rotated keyring.", answer.Answer)
	require.Len(t, answer.Citations, 2)
	assert.Equal(t, "r1:auth/token.go:0", answer.Citations[0].Key())
	assert.Equal(t, "r1:auth/keyring.go:2", answer.Citations[1].Key())
	assert.InDelta(t, 0.91, answer.Citations[0].Score, 1e-9)

	// Every cited chunk is actually in the prompt.
	require.Equal(t, 1, generator.calls())
	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "tokens are validated against the keyring")
	assert.Contains(t, prompt, "the keyring rotates daily")
	assert.Contains(t, prompt, "How are tokens validated?")
}

func TestRAGSearchInsufficientContext(t *testing.T) {
	generator := &fakeGenerator{}
	engine := NewRetrievalEngine(newFakeIndex(), newFakeRepoStore(), &fakeEmbedder{}, generator)

	answer, err := engine.RAGSearch(context.Background(), "anything at all?", domain.RAGOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.InsufficientContextAnswer, answer.Answer)
	assert.False(t, answer.Grounded)
	assert.Empty(t, answer.Citations)
	assert.Zero(t, generator.calls(), "no generation call on the fallback path")
}

func TestRAGSearchContextBudgetDropsTail(t *testing.T) {
	repos := newFakeRepoStore(testRepo("r1", domain.RepoStatusReady))
	index := newFakeIndex()
	index.vecHits = []driven.IndexHit{
		{Chunk: seedChunk("r1", "a.go", 0, strings.Repeat("alpha ", 40)), Score: 0.9},
		{Chunk: seedChunk("r1", "b.go", 0, strings.Repeat("bravo ", 40)), Score: 0.8},
		{Chunk: seedChunk("r1", "c.go", 0, strings.Repeat("charlie ", 40)), Score: 0.7},
	}
	generator := &fakeGenerator{reply: "answer"}

	engine := NewRetrievalEngine(index, repos, &fakeEmbedder{}, generator, WithContextBudget(700))

	answer, err := engine.RAGSearch(context.Background(), "q?", domain.RAGOptions{})
	require.NoError(t, err)

	require.NotEmpty(t, answer.Citations)
	assert.Less(t, len(answer.Citations), 3, "lowest-scoring chunks are dropped first")
	assert.Equal(t, "r1:a.go:0", answer.Citations[0].Key(), "highest-scoring chunk always survives")

	prompt := generator.prompts[0]
	for _, c := range answer.Citations {
		assert.Contains(t, prompt, c.Path)
	}
	assert.NotContains(t, prompt, "charlie", "dropped chunk is absent from the prompt")
}

func TestRAGSearchEmptyQuestion(t *testing.T) {
	engine := NewRetrievalEngine(newFakeIndex(), newFakeRepoStore(), &fakeEmbedder{}, &fakeGenerator{})

	_, err := engine.RAGSearch(context.Background(), "  ", domain.RAGOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRAGSearchWithoutClients(t *testing.T) {
	engine := NewRetrievalEngine(newFakeIndex(), newFakeRepoStore(), nil, nil)

	_, err := engine.RAGSearch(context.Background(), "q?", domain.RAGOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
