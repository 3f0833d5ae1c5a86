package driven

import (
	"context"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// JobRegistry is the durable record of analysis jobs and the single
// source of truth for pipeline progress.
type JobRegistry interface {
	// Create stores a new job record.
	Create(ctx context.Context, job domain.AnalysisJob) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*domain.AnalysisJob, error)

	// ListByRepo returns jobs for a repository, newest first.
	// An empty status filter returns all jobs.
	ListByRepo(ctx context.Context, repoID string, status domain.JobStatus) ([]domain.AnalysisJob, error)

	// UpdateStage records pipeline progress for a non-terminal job:
	// current stage, coarse progress percentage and file counters.
	// Updating a terminal job is a no-op.
	UpdateStage(ctx context.Context, id string, stage domain.JobStatus, progress, processed, total int) error

	// Finish conditionally records a terminal status. Only a
	// non-terminal job transitions; the first terminal write wins and
	// later writes are silently ignored. This makes redelivered queue
	// messages idempotent.
	Finish(ctx context.Context, id string, status domain.JobStatus, errMsg string) error
}
