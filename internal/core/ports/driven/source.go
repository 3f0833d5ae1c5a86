package driven

import (
	"context"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// RepoSource provides read access to a repository host. The pipeline's
// cloning and change-detection stages are built entirely on this port;
// the GitHub adapter is the production implementation.
type RepoSource interface {
	// ResolveHead returns the commit SHA the repository's branch
	// currently points at.
	ResolveHead(ctx context.Context, repo domain.Repository) (string, error)

	// ListFiles returns every trackable file at the given revision.
	ListFiles(ctx context.Context, repo domain.Repository, revision string) ([]domain.RepoFile, error)

	// Compare returns the path-level delta between two revisions.
	// It returns domain.ErrNotFound when base is unknown to the host,
	// which callers treat as "report everything as added".
	Compare(ctx context.Context, repo domain.Repository, base, head string) ([]domain.FileChange, error)

	// FetchFile returns the raw content of one file at a revision.
	FetchFile(ctx context.Context, repo domain.Repository, revision, path string) ([]byte, error)
}

// StructuralParser groups a revision's files into logical units that
// drive doc-generation page boundaries. It stands in for a language-aware
// parser; the default implementation is one unit per text file.
type StructuralParser interface {
	// Units derives doc-generation units from the files in scope.
	Units(repo domain.Repository, files []domain.RepoFile) []DocUnit
}

// DocUnit is one logical unit a wiki page is generated for.
type DocUnit struct {
	// SourcePath is the file or directory the unit covers.
	SourcePath string

	// Title is the page title to use.
	Title string

	// Kind is the resulting page kind.
	Kind domain.PageKind

	// Paths lists the files whose chunks feed the generation prompt.
	Paths []string
}
