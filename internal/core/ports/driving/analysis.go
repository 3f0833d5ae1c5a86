package driving

import (
	"context"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// AnalysisService is the inbound surface for triggering and inspecting
// repository analysis.
type AnalysisService interface {
	// EnqueueAnalysis registers an analysis job and places it on the
	// queue with the given priority (empty means NORMAL). It fails with
	// domain.ErrConflictingJob when a non-terminal job already exists
	// for the repository.
	EnqueueAnalysis(ctx context.Context, repoID string, jobType domain.JobType, trigger domain.JobTrigger, priority domain.JobPriority) (string, error)

	// JobStatus returns the current registry record for a job.
	JobStatus(ctx context.Context, jobID string) (*domain.AnalysisJob, error)

	// ListJobs returns jobs for a repository, newest first.
	ListJobs(ctx context.Context, repoID string) ([]domain.AnalysisJob, error)
}
