package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflictingJob indicates another analysis job is already active
	// for the repository. The request is rejected, never queued.
	ErrConflictingJob = errors.New("conflicting job: repository is already being analysed")

	// ErrRepositoryDeleted indicates the repository was logically deleted.
	ErrRepositoryDeleted = errors.New("repository deleted")

	// ErrMaxRetriesExceeded indicates a job message exhausted its retry
	// budget and was dead-lettered.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrQueueEmpty indicates no message is currently available.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrEmbeddingUnavailable indicates the embedding client is not
	// configured. Vector retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding client unavailable")

	// ErrGenerationUnavailable indicates the generation client is not
	// configured. Doc generation and RAG answers are disabled.
	ErrGenerationUnavailable = errors.New("generation client unavailable")

	// ErrDimensionMismatch indicates a vector does not match the index's
	// configured embedding dimension. Changing the dimension requires an
	// index rebuild.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// RetryableError marks a stage failure as transient: network timeouts,
// provider rate limits, temporary index-write failures. The worker retries
// these with backoff up to the attempt ceiling.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a transient stage failure.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// FatalError marks a stage failure as unrecoverable: authentication
// failures, quota exhaustion. The job fails immediately with no retries.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as an unrecoverable stage failure.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsRetryable reports whether err is classified as transient.
// Unclassified errors default to retryable so that unknown infrastructure
// hiccups go through the backoff path instead of failing jobs outright.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return false
	}
	if errors.Is(err, ErrConflictingJob) {
		return false
	}
	return true
}

// IsFatal reports whether err is classified as unrecoverable.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
