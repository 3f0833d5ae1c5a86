package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure ArtifactStore implements the interface.
var _ driven.ArtifactStore = (*ArtifactStore)(nil)

// ArtifactStore is an in-memory implementation of driven.ArtifactStore.
type ArtifactStore struct {
	mu    sync.RWMutex
	pages map[string]map[string]domain.WikiPage
	raw   map[string][]byte
}

// NewArtifactStore creates a new in-memory artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{
		pages: make(map[string]map[string]domain.WikiPage),
		raw:   make(map[string][]byte),
	}
}

// PutPage stores or replaces a wiki page.
func (s *ArtifactStore) PutPage(_ context.Context, page domain.WikiPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages[page.RepoID] == nil {
		s.pages[page.RepoID] = make(map[string]domain.WikiPage)
	}
	s.pages[page.RepoID][page.PageID] = page
	return nil
}

// GetPage retrieves a wiki page.
func (s *ArtifactStore) GetPage(_ context.Context, repoID, pageID string) (*domain.WikiPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[repoID][pageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &page, nil
}

// ListPages returns all pages for a repository ordered by source path.
func (s *ArtifactStore) ListPages(_ context.Context, repoID string) ([]domain.WikiPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := make([]domain.WikiPage, 0, len(s.pages[repoID]))
	for _, page := range s.pages[repoID] {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].SourcePath < pages[j].SourcePath })
	return pages, nil
}

// DeletePage removes a wiki page. Missing pages are not an error.
func (s *ArtifactStore) DeletePage(_ context.Context, repoID, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages[repoID], pageID)
	return nil
}

// PutRaw stores a raw analysis artifact for a revision.
func (s *ArtifactStore) PutRaw(_ context.Context, repoID, revision, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.raw[repoID+"/"+revision+"/"+path] = buf
	return nil
}

// GetRaw retrieves a raw artifact, mainly for tests.
func (s *ArtifactStore) GetRaw(repoID, revision, path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.raw[repoID+"/"+revision+"/"+path]
	return data, ok
}
