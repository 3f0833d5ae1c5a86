package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	answer  *domain.RAGAnswer
	err     error

	lastQuery    string
	lastQuestion string
	lastRAGOpts  domain.RAGOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	_ domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastQuery = query
	return m.results, m.err
}

func (m *mockSearchService) RAGSearch(
	_ context.Context,
	question string,
	opts domain.RAGOptions,
) (*domain.RAGAnswer, error) {
	m.lastQuestion = question
	m.lastRAGOpts = opts
	return m.answer, m.err
}

// mockAnalysisService is a mock implementation of driving.AnalysisService.
type mockAnalysisService struct {
	jobID        string
	job          *domain.AnalysisJob
	jobs         []domain.AnalysisJob
	err          error
	lastType     domain.JobType
	lastPriority domain.JobPriority
}

func (m *mockAnalysisService) EnqueueAnalysis(
	_ context.Context,
	_ string,
	jobType domain.JobType,
	_ domain.JobTrigger,
	priority domain.JobPriority,
) (string, error) {
	m.lastType = jobType
	m.lastPriority = priority
	return m.jobID, m.err
}

func (m *mockAnalysisService) JobStatus(_ context.Context, _ string) (*domain.AnalysisJob, error) {
	return m.job, m.err
}

func (m *mockAnalysisService) ListJobs(_ context.Context, _ string) ([]domain.AnalysisJob, error) {
	return m.jobs, m.err
}

// mockRepoStore is a mock implementation of driven.RepositoryStore.
type mockRepoStore struct {
	repos []domain.Repository
	err   error
}

func (m *mockRepoStore) Save(_ context.Context, _ domain.Repository) error { return m.err }

func (m *mockRepoStore) Get(_ context.Context, _ string) (*domain.Repository, error) {
	return nil, m.err
}

func (m *mockRepoStore) List(_ context.Context) ([]domain.Repository, error) {
	return m.repos, m.err
}

func (m *mockRepoStore) CompareAndSetStatus(_ context.Context, _ string, _, _ domain.RepoStatus) (bool, error) {
	return false, m.err
}

func (m *mockRepoStore) FinishScan(_ context.Context, _, _ string, _ time.Time) error {
	return m.err
}

func (m *mockRepoStore) MarkDeleted(_ context.Context, _ string) error { return m.err }

// mockArtifactStore is a mock implementation of driven.ArtifactStore.
type mockArtifactStore struct {
	pages []domain.WikiPage
	page  *domain.WikiPage
	err   error
}

func (m *mockArtifactStore) PutPage(_ context.Context, _ domain.WikiPage) error { return m.err }

func (m *mockArtifactStore) GetPage(_ context.Context, _, _ string) (*domain.WikiPage, error) {
	return m.page, m.err
}

func (m *mockArtifactStore) ListPages(_ context.Context, _ string) ([]domain.WikiPage, error) {
	return m.pages, m.err
}

func (m *mockArtifactStore) DeletePage(_ context.Context, _, _ string) error { return m.err }

func (m *mockArtifactStore) PutRaw(_ context.Context, _, _, _ string, _ []byte) error {
	return m.err
}
