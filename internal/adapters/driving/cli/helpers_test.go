package cli

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/codewiki/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/services"
)

// setupTestServices wires the commands against in-memory stores and
// returns a cleanup that restores the previous wiring.
func setupTestServices() func() {
	prevConfig := configStore
	prevRepos := repoStore
	prevJobs := jobRegistry
	prevQueue := jobQueue
	prevIndex := indexStore
	prevArtifacts := artifactStore
	prevAnalysis := analysisService
	prevSearch := searchService

	configStore = memory.NewConfigStore()
	repoStore = memory.NewRepositoryStore()
	jobRegistry = memory.NewJobRegistry()
	jobQueue = memory.NewJobQueue(0)
	indexStore = memory.NewIndexStore(0)
	artifactStore = memory.NewArtifactStore()
	analysisService = services.NewAnalysisService(repoStore, jobRegistry, jobQueue)
	searchService = services.NewRetrievalEngine(indexStore, repoStore, nil, nil)

	return func() {
		configStore = prevConfig
		repoStore = prevRepos
		jobRegistry = prevJobs
		jobQueue = prevQueue
		indexStore = prevIndex
		artifactStore = prevArtifacts
		analysisService = prevAnalysis
		searchService = prevSearch
	}
}

// seedRepo registers a ready repository in the current store.
func seedRepo(id, name string) domain.Repository {
	repo := domain.Repository{
		ID:            id,
		Provider:      domain.ProviderGitHub,
		RemoteURL:     "https://github.com/" + name,
		Name:          name,
		DefaultBranch: "main",
		Status:        domain.RepoStatusReady,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	_ = repoStore.Save(context.Background(), repo)
	return repo
}

// mockSearchServiceError always fails; used to exercise error paths.
type mockSearchServiceError struct{}

func (m *mockSearchServiceError) Search(_ context.Context, _ string, _ domain.SearchOptions) ([]domain.SearchResult, error) {
	return nil, errors.New("index unavailable")
}

func (m *mockSearchServiceError) RAGSearch(_ context.Context, _ string, _ domain.RAGOptions) (*domain.RAGAnswer, error) {
	return nil, errors.New("index unavailable")
}
