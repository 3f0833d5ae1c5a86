package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

func repo(id string, status domain.RepoStatus) domain.Repository {
	return domain.Repository{
		ID:            id,
		Provider:      domain.ProviderGitHub,
		Name:          "acme/" + id,
		DefaultBranch: "main",
		Status:        status,
	}
}

func TestRepositoryStoreCompareAndSet(t *testing.T) {
	store := NewRepositoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, repo("r1", domain.RepoStatusReady)))

	ok, err := store.CompareAndSetStatus(ctx, "r1", domain.RepoStatusReady, domain.RepoStatusParsing)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second claimant loses without an error.
	ok, err = store.CompareAndSetStatus(ctx, "r1", domain.RepoStatusReady, domain.RepoStatusParsing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RepoStatusParsing, got.Status)
}

func TestRepositoryStoreFinishScan(t *testing.T) {
	store := NewRepositoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, repo("r1", domain.RepoStatusParsing)))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.FinishScan(ctx, "r1", "sha-1", at))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RepoStatusReady, got.Status)
	assert.Equal(t, "sha-1", got.LastScanSHA)
	assert.Equal(t, at, got.LastScanAt)
}

func TestRepositoryStoreLogicalDelete(t *testing.T) {
	store := NewRepositoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, repo("r1", domain.RepoStatusReady)))
	require.NoError(t, store.Save(ctx, repo("r2", domain.RepoStatusReady)))
	require.NoError(t, store.MarkDeleted(ctx, "r1"))

	// Deleted repositories disappear from listings but stay readable.
	repos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "r2", repos[0].ID)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}

func TestJobRegistryFinishFirstWriteWins(t *testing.T) {
	reg := NewJobRegistry()
	ctx := context.Background()
	job := domain.NewAnalysisJob("j1", "r1", domain.JobTypeFull, domain.TriggerManual)
	require.NoError(t, reg.Create(ctx, job))

	require.NoError(t, reg.Finish(ctx, "j1", domain.JobStatusSucceeded, ""))
	require.NoError(t, reg.Finish(ctx, "j1", domain.JobStatusFailed, "late failure"))

	got, err := reg.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, got.Status)
	assert.Empty(t, got.Error)
	assert.Equal(t, 100, got.Progress)
}

func TestJobRegistryUpdateStageIgnoresTerminal(t *testing.T) {
	reg := NewJobRegistry()
	ctx := context.Background()
	require.NoError(t, reg.Create(ctx, domain.NewAnalysisJob("j1", "r1", domain.JobTypeFull, domain.TriggerManual)))
	require.NoError(t, reg.Finish(ctx, "j1", domain.JobStatusFailed, "boom"))

	require.NoError(t, reg.UpdateStage(ctx, "j1", domain.JobStatusChunking, 35, 1, 2))

	got, err := reg.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
}

func TestJobRegistryListByRepoNewestFirst(t *testing.T) {
	reg := NewJobRegistry()
	ctx := context.Background()

	older := domain.NewAnalysisJob("j1", "r1", domain.JobTypeFull, domain.TriggerManual)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := domain.NewAnalysisJob("j2", "r1", domain.JobTypeIncremental, domain.TriggerWebhook)
	other := domain.NewAnalysisJob("j3", "r2", domain.JobTypeFull, domain.TriggerManual)
	require.NoError(t, reg.Create(ctx, older))
	require.NoError(t, reg.Create(ctx, newer))
	require.NoError(t, reg.Create(ctx, other))

	jobs, err := reg.ListByRepo(ctx, "r1", "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j2", jobs[0].ID)
	assert.Equal(t, "j1", jobs[1].ID)
}

func TestIndexStoreDeleteRange(t *testing.T) {
	ix := NewIndexStore(0)
	ctx := context.Background()
	require.NoError(t, ix.Upsert(ctx, []domain.DocumentChunk{
		{RepoID: "r1", Path: "a.go", ChunkIndex: 0, Content: "zero"},
		{RepoID: "r1", Path: "a.go", ChunkIndex: 1, Content: "one"},
		{RepoID: "r1", Path: "a.go", ChunkIndex: 2, Content: "two"},
		{RepoID: "r1", Path: "b.go", ChunkIndex: 0, Content: "other"},
	}))

	require.NoError(t, ix.DeleteRange(ctx, "r1", "a.go", 1))

	hits, err := ix.FullTextSearch(ctx, "zero", nil, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = ix.FullTextSearch(ctx, "one", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "trimmed indices are gone")

	require.NoError(t, ix.DeleteRange(ctx, "r1", "b.go", 0))
	hits, err = ix.FullTextSearch(ctx, "other", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "from zero removes the whole path")
}

func TestIndexStoreVectorSearchRanksBySimilarity(t *testing.T) {
	ix := NewIndexStore(3)
	ctx := context.Background()
	require.NoError(t, ix.Upsert(ctx, []domain.DocumentChunk{
		{RepoID: "r1", Path: "near.go", ChunkIndex: 0, Embedding: []float32{1, 0, 0}},
		{RepoID: "r1", Path: "far.go", ChunkIndex: 0, Embedding: []float32{0, 1, 0}},
		{RepoID: "r2", Path: "mid.go", ChunkIndex: 0, Embedding: []float32{1, 1, 0}},
	}))

	hits, err := ix.VectorSearch(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near.go", hits[0].Chunk.Path)
	assert.Equal(t, "mid.go", hits[1].Chunk.Path)

	// Strict repository filter.
	hits, err = ix.VectorSearch(ctx, []float32{1, 0, 0}, 10, []string{"r2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "r2", hits[0].Chunk.RepoID)
}

func TestIndexStoreDimensionMismatch(t *testing.T) {
	ix := NewIndexStore(3)
	ctx := context.Background()

	err := ix.Upsert(ctx, []domain.DocumentChunk{
		{RepoID: "r1", Path: "a.go", ChunkIndex: 0, Embedding: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = ix.VectorSearch(ctx, []float32{1, 0}, 5, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndexStoreUpsertIsIdempotent(t *testing.T) {
	ix := NewIndexStore(0)
	ctx := context.Background()
	chunk := domain.DocumentChunk{RepoID: "r1", Path: "a.go", ChunkIndex: 0, Content: "hello world"}

	require.NoError(t, ix.Upsert(ctx, []domain.DocumentChunk{chunk}))
	require.NoError(t, ix.Upsert(ctx, []domain.DocumentChunk{chunk}))

	hits, err := ix.FullTextSearch(ctx, "hello", nil, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestArtifactStoreRoundtrip(t *testing.T) {
	store := NewArtifactStore()
	ctx := context.Background()

	page := domain.WikiPage{
		RepoID:     "r1",
		PageID:     domain.PageIDFor("main.go"),
		Title:      "main.go",
		Kind:       domain.PageKindCode,
		SourcePath: "main.go",
		Content:    "# main",
	}
	require.NoError(t, store.PutPage(ctx, page))

	got, err := store.GetPage(ctx, "r1", page.PageID)
	require.NoError(t, err)
	assert.Equal(t, "# main", got.Content)

	pages, err := store.ListPages(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, pages, 1)

	require.NoError(t, store.DeletePage(ctx, "r1", page.PageID))
	_, err = store.GetPage(ctx, "r1", page.PageID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting again is fine.
	require.NoError(t, store.DeletePage(ctx, "r1", page.PageID))
}

func TestJobQueueLeaseLifecycle(t *testing.T) {
	q := NewJobQueue(time.Minute)
	ctx := context.Background()
	msg := domain.JobMessage{JobID: "j1", RepoID: "r1", Type: domain.JobTypeFull}
	require.NoError(t, q.Enqueue(ctx, msg))

	lease, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j1", lease.Message.JobID)
	assert.Equal(t, 1, lease.Attempt)

	// Leased messages are invisible to other receivers.
	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)

	require.NoError(t, q.Ack(ctx, lease))
	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)
}

func TestJobQueueDeliversHigherPriorityFirst(t *testing.T) {
	q := NewJobQueue(time.Minute)
	ctx := context.Background()

	now := time.Now().UTC()
	q.now = func() time.Time { return now }
	require.NoError(t, q.Enqueue(ctx, domain.JobMessage{JobID: "j-low", RepoID: "r1", Priority: domain.PriorityLow}))
	now = now.Add(time.Second)
	require.NoError(t, q.Enqueue(ctx, domain.JobMessage{JobID: "j-normal", RepoID: "r1", Priority: domain.PriorityNormal}))
	now = now.Add(time.Second)
	require.NoError(t, q.Enqueue(ctx, domain.JobMessage{JobID: "j-high", RepoID: "r1", Priority: domain.PriorityHigh}))
	now = now.Add(time.Second)

	// Enqueue order is low, normal, high; delivery order inverts it.
	for _, want := range []string{"j-high", "j-normal", "j-low"} {
		lease, err := q.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, lease.Message.JobID)
		require.NoError(t, q.Ack(ctx, lease))
	}
}

func TestJobQueueEqualPriorityIsOldestFirst(t *testing.T) {
	q := NewJobQueue(time.Minute)
	ctx := context.Background()

	now := time.Now().UTC()
	q.now = func() time.Time { return now }
	require.NoError(t, q.Enqueue(ctx, domain.JobMessage{JobID: "j1", RepoID: "r1", Priority: domain.PriorityNormal}))
	now = now.Add(time.Second)
	require.NoError(t, q.Enqueue(ctx, domain.JobMessage{JobID: "j2", RepoID: "r1", Priority: domain.PriorityNormal}))

	lease, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j1", lease.Message.JobID)
}

func TestJobQueueNackRedeliversWithAttemptCount(t *testing.T) {
	q := NewJobQueue(time.Minute)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, domain.JobMessage{JobID: "j1", RepoID: "r1"}))

	lease, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, lease, 0))

	redelivered, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, redelivered.Attempt)
	assert.Equal(t, "j1", redelivered.Message.JobID)
}

func TestJobQueueExpiredLeaseIsRedelivered(t *testing.T) {
	q := NewJobQueue(time.Minute)
	ctx := context.Background()

	now := time.Now().UTC()
	q.now = func() time.Time { return now }
	require.NoError(t, q.Enqueue(ctx, domain.JobMessage{JobID: "j1", RepoID: "r1"}))

	_, err := q.Receive(ctx)
	require.NoError(t, err)

	// The worker crashed; the lease lapses.
	now = now.Add(2 * time.Minute)

	lease, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, lease.Attempt)
}

func TestJobQueueDeadLetter(t *testing.T) {
	q := NewJobQueue(time.Minute)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, domain.JobMessage{JobID: "j1", RepoID: "r1"}))

	lease, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, q.DeadLetter(ctx, lease))

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "j1", dead[0].JobID)
}

func TestConfigStoreTypedAccess(t *testing.T) {
	store := NewConfigStore()
	store.Set("embedding.provider", "openai")
	store.Set("pipeline.workers", 4)

	assert.Equal(t, "openai", store.GetString("embedding.provider"))
	assert.Equal(t, 4, store.GetInt("pipeline.workers"))
	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetInt("missing"))
	require.NoError(t, store.Save())
	require.NoError(t, store.Load())
}
