// Package memory provides in-memory implementations of the storage
// ports. They back tests and ephemeral single-process setups; durable
// deployments use the sqlite package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure RepositoryStore implements the interface.
var _ driven.RepositoryStore = (*RepositoryStore)(nil)

// RepositoryStore is an in-memory implementation of driven.RepositoryStore.
type RepositoryStore struct {
	mu    sync.RWMutex
	repos map[string]domain.Repository
}

// NewRepositoryStore creates a new in-memory repository store.
func NewRepositoryStore() *RepositoryStore {
	return &RepositoryStore{repos: make(map[string]domain.Repository)}
}

// Save stores or updates a repository record.
func (s *RepositoryStore) Save(_ context.Context, repo domain.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo.UpdatedAt = time.Now().UTC()
	if existing, ok := s.repos[repo.ID]; ok {
		repo.CreatedAt = existing.CreatedAt
	} else if repo.CreatedAt.IsZero() {
		repo.CreatedAt = repo.UpdatedAt
	}
	s.repos[repo.ID] = repo
	return nil
}

// Get retrieves a repository by ID, including logically deleted ones.
func (s *RepositoryStore) Get(_ context.Context, id string) (*domain.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	repo, ok := s.repos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &repo, nil
}

// List returns all non-deleted repositories ordered by ID.
func (s *RepositoryStore) List(_ context.Context) ([]domain.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	repos := make([]domain.Repository, 0, len(s.repos))
	for _, repo := range s.repos {
		if !repo.Deleted {
			repos = append(repos, repo)
		}
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	return repos, nil
}

// CompareAndSetStatus atomically transitions the status from expected to
// next. Returns false without error when the current status differs.
func (s *RepositoryStore) CompareAndSetStatus(_ context.Context, id string, expected, next domain.RepoStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if repo.Status != expected {
		return false, nil
	}
	repo.Status = next
	repo.UpdatedAt = time.Now().UTC()
	s.repos[id] = repo
	return true, nil
}

// FinishScan records a successful analysis in a single update.
func (s *RepositoryStore) FinishScan(_ context.Context, id, sha string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return domain.ErrNotFound
	}
	repo.Status = domain.RepoStatusReady
	repo.LastScanSHA = sha
	repo.LastScanAt = at
	repo.UpdatedAt = time.Now().UTC()
	s.repos[id] = repo
	return nil
}

// MarkDeleted sets the logical deletion flag, keeping the record.
func (s *RepositoryStore) MarkDeleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return domain.ErrNotFound
	}
	repo.Deleted = true
	repo.UpdatedAt = time.Now().UTC()
	s.repos[id] = repo
	return nil
}
