package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
	"github.com/custodia-labs/codewiki/internal/logger"
)

// ChangeDetector computes the file-level delta between two revisions of
// a repository.
type ChangeDetector struct {
	source driven.RepoSource
}

// NewChangeDetector creates a change detector backed by a repo source.
func NewChangeDetector(source driven.RepoSource) *ChangeDetector {
	return &ChangeDetector{source: source}
}

// Detect returns the ordered path-level delta between base and head.
// When base is empty or unknown to the host, every tracked path at head
// is reported as added. That forces effective FULL behaviour under an
// INCREMENTAL request; it is a deliberate fallback, not an error.
func (d *ChangeDetector) Detect(
	ctx context.Context,
	repo domain.Repository,
	base, head string,
	files []domain.RepoFile,
) ([]domain.FileChange, error) {
	if base == "" {
		logger.Debug("No previous revision for %s, reporting all %d paths as added", repo.ID, len(files))
		return allAdded(files), nil
	}

	changes, err := d.source.Compare(ctx, repo, base, head)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Base revision %s unresolvable for %s, falling back to full scan", base, repo.ID)
			return allAdded(files), nil
		}
		return nil, fmt.Errorf("compare %s..%s: %w", base, head, err)
	}

	logger.Debug("Detected %d changed paths for %s (%s..%s)", len(changes), repo.ID, base, head)
	return changes, nil
}

func allAdded(files []domain.RepoFile) []domain.FileChange {
	changes := make([]domain.FileChange, len(files))
	for i, f := range files {
		changes[i] = domain.FileChange{Path: f.Path, Kind: domain.ChangeAdded}
	}
	return changes
}
