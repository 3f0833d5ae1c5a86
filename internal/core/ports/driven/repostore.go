package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// RepositoryStore persists registered repositories.
//
// CompareAndSetStatus is the concurrency primitive for the
// single-active-job-per-repository invariant: workers claim a repository
// by swapping READY/FAILED to PARSING, and a losing writer fails its job
// with ErrConflictingJob instead of blocking.
type RepositoryStore interface {
	// Save stores or updates a repository record.
	Save(ctx context.Context, repo domain.Repository) error

	// Get retrieves a repository by ID. Logically deleted repositories
	// are still returned; callers check the Deleted flag.
	Get(ctx context.Context, id string) (*domain.Repository, error)

	// List returns all non-deleted repositories.
	List(ctx context.Context) ([]domain.Repository, error)

	// CompareAndSetStatus atomically transitions the repository status
	// from expected to next. It returns false (and no error) when the
	// current status does not match expected.
	CompareAndSetStatus(ctx context.Context, id string, expected, next domain.RepoStatus) (bool, error)

	// FinishScan records a successful analysis: status READY plus the
	// scanned revision and completion time, in a single update.
	FinishScan(ctx context.Context, id, sha string, at time.Time) error

	// MarkDeleted sets the logical deletion flag. The record is kept so
	// job history remains queryable.
	MarkDeleted(ctx context.Context, id string) error
}
