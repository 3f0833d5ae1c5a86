package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure JobRegistry implements the interface.
var _ driven.JobRegistry = (*JobRegistry)(nil)

// JobRegistry is an in-memory implementation of driven.JobRegistry.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]domain.AnalysisJob
}

// NewJobRegistry creates a new in-memory job registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]domain.AnalysisJob)}
}

// Create stores a new job record.
func (r *JobRegistry) Create(_ context.Context, job domain.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.jobs[job.ID] = job
	return nil
}

// Get retrieves a job by ID.
func (r *JobRegistry) Get(_ context.Context, id string) (*domain.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// ListByRepo returns jobs for a repository, newest first.
func (r *JobRegistry) ListByRepo(_ context.Context, repoID string, status domain.JobStatus) ([]domain.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var jobs []domain.AnalysisJob
	for _, job := range r.jobs {
		if job.RepoID != repoID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs, nil
}

// UpdateStage records pipeline progress. Terminal jobs are not touched.
func (r *JobRegistry) UpdateStage(_ context.Context, id string, stage domain.JobStatus, progress, processed, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	job.Status = stage
	job.Progress = progress
	job.ProcessedFiles = processed
	job.TotalFiles = total
	r.jobs[id] = job
	return nil
}

// Finish conditionally records a terminal status; the first terminal
// write wins and later writes are silently ignored.
func (r *JobRegistry) Finish(_ context.Context, id string, status domain.JobStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = status
	job.Error = errMsg
	job.FinishedAt = time.Now().UTC()
	if status == domain.JobStatusSucceeded {
		job.Progress = 100
	}
	r.jobs[id] = job
	return nil
}
