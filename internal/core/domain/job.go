package domain

import "time"

// JobType selects how much of a repository an analysis job processes.
type JobType string

// Analysis job types.
const (
	// JobTypeFull processes every trackable file in the repository.
	JobTypeFull JobType = "FULL"

	// JobTypeIncremental restricts processing to files changed since
	// the last successful scan.
	JobTypeIncremental JobType = "INCREMENTAL"
)

// JobPriority orders job delivery: higher-priority messages are
// received before older lower-priority ones.
type JobPriority string

// Job priorities.
const (
	PriorityHigh   JobPriority = "HIGH"
	PriorityNormal JobPriority = "NORMAL"
	PriorityLow    JobPriority = "LOW"
)

// Rank returns the delivery rank of the priority, lower delivered first.
// Unknown values rank as NORMAL.
func (p JobPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// PriorityFromRank is the inverse of Rank.
func PriorityFromRank(rank int) JobPriority {
	switch rank {
	case 0:
		return PriorityHigh
	case 2:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// JobTrigger records what caused a job to be enqueued.
type JobTrigger string

// Job trigger sources.
const (
	TriggerManual   JobTrigger = "manual"
	TriggerWebhook  JobTrigger = "webhook"
	TriggerSchedule JobTrigger = "schedule"
)

// JobStatus is the state-machine position of an analysis job.
// Transitions are strictly forward; FAILED is reachable from any
// non-terminal state.
type JobStatus string

// Analysis job states, in pipeline order.
const (
	JobStatusQueued           JobStatus = "QUEUED"
	JobStatusCloning          JobStatus = "CLONING"
	JobStatusDetectingChanges JobStatus = "DETECTING_CHANGES"
	JobStatusChunking         JobStatus = "CHUNKING"
	JobStatusEmbedding        JobStatus = "EMBEDDING"
	JobStatusGeneratingDocs   JobStatus = "GENERATING_DOCS"
	JobStatusIndexing         JobStatus = "INDEXING"
	JobStatusPersisting       JobStatus = "PERSISTING"
	JobStatusSucceeded        JobStatus = "SUCCEEDED"
	JobStatusFailed           JobStatus = "FAILED"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// jobTTL is how long job records remain interesting. The registry stores
// the expiry; an external reaper is responsible for actual deletion.
const jobTTL = 30 * 24 * time.Hour

// AnalysisJob is the durable record of one pipeline run.
// It is mutated only by the worker executing it and becomes immutable
// once a terminal status is recorded.
type AnalysisJob struct {
	// ID is the unique job identifier.
	ID string

	// RepoID is the repository this job analyses.
	RepoID string

	// Type is FULL or INCREMENTAL.
	Type JobType

	// Trigger records what caused the job (manual, webhook, schedule).
	Trigger JobTrigger

	// Priority orders delivery relative to other queued jobs.
	Priority JobPriority

	// Status is the current state-machine position.
	Status JobStatus

	// TargetSHA is the revision being analysed. Resolved from the
	// default branch head when not set explicitly at enqueue time.
	TargetSHA string

	// Progress is a coarse completion percentage (0-100).
	Progress int

	// ProcessedFiles counts files the pipeline has handled so far.
	ProcessedFiles int

	// TotalFiles is the number of files in scope, once known.
	TotalFiles int

	// Error holds the human-readable cause when Status is FAILED.
	Error string

	// StartedAt is when a worker began executing the job.
	StartedAt time.Time

	// FinishedAt is when the job reached a terminal status.
	FinishedAt time.Time

	// CreatedAt is when the job was enqueued.
	CreatedAt time.Time

	// ExpiresAt is the retention deadline for this record.
	ExpiresAt time.Time
}

// NewAnalysisJob builds a queued job record with retention set and
// NORMAL priority.
func NewAnalysisJob(id, repoID string, jobType JobType, trigger JobTrigger) AnalysisJob {
	now := time.Now().UTC()
	return AnalysisJob{
		ID:        id,
		RepoID:    repoID,
		Type:      jobType,
		Trigger:   trigger,
		Priority:  PriorityNormal,
		Status:    JobStatusQueued,
		CreatedAt: now,
		ExpiresAt: now.Add(jobTTL),
	}
}

// JobMessage is the queue payload requesting an analysis run.
type JobMessage struct {
	// JobID identifies the registry record for this run.
	JobID string

	// RepoID is the repository to analyse.
	RepoID string

	// Type is FULL or INCREMENTAL.
	Type JobType

	// Priority orders delivery relative to other queued messages.
	Priority JobPriority

	// TargetSHA is the explicit revision, empty for remote head.
	TargetSHA string
}
