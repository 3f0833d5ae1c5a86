// Package fs provides a filesystem-backed artifact store. Generated wiki
// pages live under <root>/<repo_id>/wiki/ as a Markdown body plus a JSON
// metadata sidecar; raw pipeline artifacts live under
// <root>/<repo_id>/raw/<revision>/.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure ArtifactStore implements the interface.
var _ driven.ArtifactStore = (*ArtifactStore)(nil)

// pageMeta is the JSON sidecar stored next to each page body.
type pageMeta struct {
	Title      string                `json:"title"`
	Kind       domain.PageKind       `json:"kind"`
	SourcePath string                `json:"source_path"`
	Importance domain.PageImportance `json:"importance,omitempty"`
	Tags       []string              `json:"tags,omitempty"`
	SourceRefs []string              `json:"source_refs,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// ArtifactStore is a filesystem implementation of driven.ArtifactStore.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates an artifact store rooted at dir. If dir is
// empty, defaults to ~/.codewiki/artifacts.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".codewiki", "artifacts")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating artifact root: %w", err)
	}
	return &ArtifactStore{root: dir}, nil
}

// Root returns the artifact root directory.
func (s *ArtifactStore) Root() string {
	return s.root
}

// PutPage stores or replaces a wiki page.
func (s *ArtifactStore) PutPage(_ context.Context, page domain.WikiPage) error {
	dir := s.wikiDir(page.RepoID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating wiki directory: %w", err)
	}

	meta, err := json.MarshalIndent(pageMeta{
		Title:      page.Title,
		Kind:       page.Kind,
		SourcePath: page.SourcePath,
		Importance: page.Importance,
		Tags:       page.Tags,
		SourceRefs: page.SourceRefs,
		UpdatedAt:  page.UpdatedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling page metadata: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, page.PageID+".md"), []byte(page.Content)); err != nil {
		return fmt.Errorf("writing page body: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, page.PageID+".json"), meta); err != nil {
		return fmt.Errorf("writing page metadata: %w", err)
	}
	return nil
}

// GetPage retrieves a wiki page by repository and page ID.
func (s *ArtifactStore) GetPage(_ context.Context, repoID, pageID string) (*domain.WikiPage, error) {
	dir := s.wikiDir(repoID)

	body, err := os.ReadFile(filepath.Join(dir, pageID+".md"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading page body: %w", err)
	}

	metaRaw, err := os.ReadFile(filepath.Join(dir, pageID+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading page metadata: %w", err)
	}

	var meta pageMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("unmarshaling page metadata: %w", err)
	}

	return &domain.WikiPage{
		RepoID:     repoID,
		PageID:     pageID,
		Title:      meta.Title,
		Kind:       meta.Kind,
		SourcePath: meta.SourcePath,
		Content:    string(body),
		Importance: meta.Importance,
		Tags:       meta.Tags,
		SourceRefs: meta.SourceRefs,
		UpdatedAt:  meta.UpdatedAt,
	}, nil
}

// ListPages returns all pages for a repository.
func (s *ArtifactStore) ListPages(ctx context.Context, repoID string) ([]domain.WikiPage, error) {
	entries, err := os.ReadDir(s.wikiDir(repoID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading wiki directory: %w", err)
	}

	var pages []domain.WikiPage
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		page, err := s.GetPage(ctx, repoID, strings.TrimSuffix(name, ".md"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Orphaned body without metadata; skip it.
				continue
			}
			return nil, err
		}
		pages = append(pages, *page)
	}
	return pages, nil
}

// DeletePage removes a wiki page. Deleting a missing page is not an
// error.
func (s *ArtifactStore) DeletePage(_ context.Context, repoID, pageID string) error {
	dir := s.wikiDir(repoID)
	for _, name := range []string{pageID + ".md", pageID + ".json"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	return nil
}

// PutRaw stores a raw analysis artifact for a revision.
func (s *ArtifactStore) PutRaw(_ context.Context, repoID, revision, path string, data []byte) error {
	target := filepath.Join(s.root, sanitize(repoID), "raw", sanitize(revision), filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return fmt.Errorf("creating raw directory: %w", err)
	}
	if err := writeFileAtomic(target, data); err != nil {
		return fmt.Errorf("writing raw artifact: %w", err)
	}
	return nil
}

func (s *ArtifactStore) wikiDir(repoID string) string {
	return filepath.Join(s.root, sanitize(repoID), "wiki")
}

// sanitize keeps identifiers from escaping the artifact root.
func sanitize(id string) string {
	id = strings.ReplaceAll(id, "..", "_")
	id = strings.ReplaceAll(id, "/", "_")
	return strings.ReplaceAll(id, string(os.PathSeparator), "_")
}

// writeFileAtomic writes via a temp file and rename so readers never see
// a partial page.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
