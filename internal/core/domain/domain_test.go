package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkKey_Deterministic(t *testing.T) {
	c := DocumentChunk{RepoID: "repo-1", Path: "pkg/server/main.go", ChunkIndex: 3}
	assert.Equal(t, "repo-1:pkg/server/main.go:3", c.Key())
	assert.Equal(t, c.Key(), ChunkKey("repo-1", "pkg/server/main.go", 3))
}

func TestPageIDFor_StableAndShort(t *testing.T) {
	a := PageIDFor("README.md")
	b := PageIDFor("README.md")
	c := PageIDFor("readme.md")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 12)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, JobStatusSucceeded.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusEmbedding.Terminal())
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("connection reset")

	assert.True(t, IsRetryable(Retryable(base)))
	assert.False(t, IsRetryable(Fatal(base)))
	assert.True(t, IsFatal(Fatal(base)))
	assert.False(t, IsFatal(Retryable(base)))

	// Unclassified errors default to retryable.
	assert.True(t, IsRetryable(base))

	// Conflicts are never retried.
	assert.False(t, IsRetryable(ErrConflictingJob))

	// Wrapped causes stay reachable.
	assert.True(t, errors.Is(Retryable(base), base))
	assert.True(t, errors.Is(Fatal(base), base))
}

func TestNewAnalysisJob_SetsRetention(t *testing.T) {
	job := NewAnalysisJob("job-1", "repo-1", JobTypeFull, TriggerManual)

	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, job.CreatedAt.Add(jobTTL), job.ExpiresAt)
}
