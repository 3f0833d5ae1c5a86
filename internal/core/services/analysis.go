package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
	"github.com/custodia-labs/codewiki/internal/core/ports/driving"
	"github.com/custodia-labs/codewiki/internal/logger"
)

// Ensure AnalysisService implements the interface.
var _ driving.AnalysisService = (*AnalysisService)(nil)

// AnalysisService is the inbound service for enqueueing and inspecting
// analysis jobs.
type AnalysisService struct {
	repos driven.RepositoryStore
	jobs  driven.JobRegistry
	queue driven.JobQueue
}

// NewAnalysisService creates the analysis service.
func NewAnalysisService(repos driven.RepositoryStore, jobs driven.JobRegistry, queue driven.JobQueue) *AnalysisService {
	return &AnalysisService{
		repos: repos,
		jobs:  jobs,
		queue: queue,
	}
}

// EnqueueAnalysis registers a job and puts it on the queue.
//
// The conflict check here is advisory and keeps obviously duplicate
// requests out of the queue; the pipeline's conditional status write is
// the authoritative guard against concurrent runs.
func (s *AnalysisService) EnqueueAnalysis(
	ctx context.Context,
	repoID string,
	jobType domain.JobType,
	trigger domain.JobTrigger,
	priority domain.JobPriority,
) (string, error) {
	if priority == "" {
		priority = domain.PriorityNormal
	}

	repo, err := s.repos.Get(ctx, repoID)
	if err != nil {
		return "", fmt.Errorf("get repository: %w", err)
	}
	if repo.Deleted {
		return "", domain.ErrRepositoryDeleted
	}
	if repo.Status == domain.RepoStatusParsing {
		return "", domain.ErrConflictingJob
	}

	active, err := s.activeJob(ctx, repoID)
	if err != nil {
		return "", err
	}
	if active != "" {
		logger.Debug("Repository %s already has active job %s", repoID, active)
		return "", domain.ErrConflictingJob
	}

	job := domain.NewAnalysisJob(uuid.New().String(), repoID, jobType, trigger)
	job.Priority = priority
	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	msg := domain.JobMessage{
		JobID:    job.ID,
		RepoID:   repoID,
		Type:     jobType,
		Priority: priority,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		// Keep the registry honest: a job that never made it onto the
		// queue must not look runnable.
		if ferr := s.jobs.Finish(ctx, job.ID, domain.JobStatusFailed, "enqueue failed: "+err.Error()); ferr != nil {
			logger.Error("Failed to mark unqueued job %s: %v", job.ID, ferr)
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	logger.Info("Enqueued %s analysis job %s for %s (%s)", jobType, job.ID, repoID, trigger)
	return job.ID, nil
}

// JobStatus returns the registry record for a job.
func (s *AnalysisService) JobStatus(ctx context.Context, jobID string) (*domain.AnalysisJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns all jobs for a repository, newest first.
func (s *AnalysisService) ListJobs(ctx context.Context, repoID string) ([]domain.AnalysisJob, error) {
	jobs, err := s.jobs.ListByRepo(ctx, repoID, "")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// activeJob returns the ID of a non-terminal job for the repository,
// empty when none exists.
func (s *AnalysisService) activeJob(ctx context.Context, repoID string) (string, error) {
	jobs, err := s.jobs.ListByRepo(ctx, repoID, "")
	if err != nil {
		return "", fmt.Errorf("list jobs: %w", err)
	}
	for _, job := range jobs {
		if !job.Status.Terminal() {
			return job.ID, nil
		}
	}
	return "", nil
}
