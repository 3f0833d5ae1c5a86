package driven

import (
	"context"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// ArtifactStore is durable storage for generated wiki pages and raw
// analysis artifacts. It is a derived cache, rebuildable from source plus
// the pipeline, and is never hand-edited.
//
// Logical layout: pages under <repo_id>/wiki/<page_id>, raw artifacts
// under <repo_id>/raw/<revision>/<path>.
type ArtifactStore interface {
	// PutPage stores or replaces a wiki page.
	PutPage(ctx context.Context, page domain.WikiPage) error

	// GetPage retrieves a wiki page by repository and page ID.
	GetPage(ctx context.Context, repoID, pageID string) (*domain.WikiPage, error)

	// ListPages returns all pages for a repository, suitable for
	// building a wiki table of contents.
	ListPages(ctx context.Context, repoID string) ([]domain.WikiPage, error)

	// DeletePage removes a wiki page whose source no longer exists.
	// Deleting a missing page is not an error.
	DeletePage(ctx context.Context, repoID, pageID string) error

	// PutRaw stores a raw analysis artifact for a revision.
	PutRaw(ctx context.Context, repoID, revision, path string, data []byte) error
}
