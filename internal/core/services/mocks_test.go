package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// In-memory fakes shared by the service tests. Function fields override
// individual behaviours per test; unset fields fall back to a working
// default.

type fakeRepoStore struct {
	mu    sync.Mutex
	repos map[string]domain.Repository

	casFn func(id string, expected, next domain.RepoStatus) (bool, error)
}

func newFakeRepoStore(repos ...domain.Repository) *fakeRepoStore {
	s := &fakeRepoStore{repos: make(map[string]domain.Repository)}
	for _, r := range repos {
		s.repos[r.ID] = r
	}
	return s
}

func (s *fakeRepoStore) Save(_ context.Context, repo domain.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[repo.ID] = repo
	return nil
}

func (s *fakeRepoStore) Get(_ context.Context, id string) (*domain.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &repo, nil
}

func (s *fakeRepoStore) List(_ context.Context) ([]domain.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Repository
	for _, r := range s.repos {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeRepoStore) CompareAndSetStatus(_ context.Context, id string, expected, next domain.RepoStatus) (bool, error) {
	if s.casFn != nil {
		return s.casFn(id, expected, next)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if repo.Status != expected {
		return false, nil
	}
	repo.Status = next
	s.repos[id] = repo
	return true, nil
}

func (s *fakeRepoStore) FinishScan(_ context.Context, id, sha string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return domain.ErrNotFound
	}
	repo.Status = domain.RepoStatusReady
	repo.LastScanSHA = sha
	repo.LastScanAt = at
	s.repos[id] = repo
	return nil
}

func (s *fakeRepoStore) MarkDeleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[id]
	if !ok {
		return domain.ErrNotFound
	}
	repo.Deleted = true
	s.repos[id] = repo
	return nil
}

func (s *fakeRepoStore) status(id string) domain.RepoStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repos[id].Status
}

type fakeJobRegistry struct {
	mu     sync.Mutex
	jobs   map[string]domain.AnalysisJob
	stages []domain.JobStatus

	finishErr error
}

func newFakeJobRegistry(jobs ...domain.AnalysisJob) *fakeJobRegistry {
	r := &fakeJobRegistry{jobs: make(map[string]domain.AnalysisJob)}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRegistry) Create(_ context.Context, job domain.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRegistry) Get(_ context.Context, id string) (*domain.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (r *fakeJobRegistry) ListByRepo(_ context.Context, repoID string, status domain.JobStatus) ([]domain.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AnalysisJob
	for _, j := range r.jobs {
		if j.RepoID != repoID {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeJobRegistry) UpdateStage(_ context.Context, id string, stage domain.JobStatus, progress, processed, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = stage
	job.Progress = progress
	job.ProcessedFiles = processed
	job.TotalFiles = total
	r.jobs[id] = job
	r.stages = append(r.stages, stage)
	return nil
}

func (r *fakeJobRegistry) Finish(_ context.Context, id string, status domain.JobStatus, errMsg string) error {
	if r.finishErr != nil {
		return r.finishErr
	}
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
	r.jobs[id] = job
	return nil
}

func (r *fakeJobRegistry) get(id string) domain.AnalysisJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

type fakeQueue struct {
	mu         sync.Mutex
	enqueued   []domain.JobMessage
	acked      []string
	nacked     []time.Duration
	deadLetter []string

	enqueueErr error
}

func (q *fakeQueue) Enqueue(_ context.Context, msg domain.JobMessage) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, msg)
	return nil
}

func (q *fakeQueue) Receive(context.Context) (*driven.Lease, error) {
	return nil, domain.ErrQueueEmpty
}

func (q *fakeQueue) Ack(_ context.Context, lease *driven.Lease) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, lease.ID)
	return nil
}

func (q *fakeQueue) Nack(_ context.Context, _ *driven.Lease, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacked = append(q.nacked, delay)
	return nil
}

func (q *fakeQueue) DeadLetter(_ context.Context, lease *driven.Lease) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetter = append(q.deadLetter, lease.ID)
	return nil
}

type fakeSource struct {
	head    string
	files   []domain.RepoFile
	content map[string][]byte

	compareFn   func(base, head string) ([]domain.FileChange, error)
	fetchFn     func(revision, path string) ([]byte, error)
	resolveErrs int
	mu          sync.Mutex
}

func (s *fakeSource) ResolveHead(context.Context, domain.Repository) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErrs > 0 {
		s.resolveErrs--
		return "", domain.Retryable(context.DeadlineExceeded)
	}
	return s.head, nil
}

func (s *fakeSource) ListFiles(context.Context, domain.Repository, string) ([]domain.RepoFile, error) {
	return s.files, nil
}

func (s *fakeSource) Compare(_ context.Context, _ domain.Repository, base, head string) ([]domain.FileChange, error) {
	if s.compareFn != nil {
		return s.compareFn(base, head)
	}
	return nil, domain.ErrNotFound
}

func (s *fakeSource) FetchFile(_ context.Context, _ domain.Repository, revision, path string) ([]byte, error) {
	if s.fetchFn != nil {
		return s.fetchFn(revision, path)
	}
	data, ok := s.content[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

// fakeParser emits one CODE unit per file.
type fakeParser struct{}

func (fakeParser) Units(_ domain.Repository, files []domain.RepoFile) []driven.DocUnit {
	units := make([]driven.DocUnit, 0, len(files))
	for _, f := range files {
		kind := domain.PageKindCode
		if strings.EqualFold(f.Path, "README.md") {
			kind = domain.PageKindReadme
		}
		units = append(units, driven.DocUnit{
			SourcePath: f.Path,
			Title:      f.Path,
			Kind:       kind,
			Paths:      []string{f.Path},
		})
	}
	return units
}

// fakeEmbedder returns a deterministic 4-dim vector per text.
type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failures int
	mismatch bool

	queryVec []float32
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.queryVec != nil {
		return e.queryVec, nil
	}
	return embedText(text), nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	if e.failures > 0 {
		e.failures--
		e.mu.Unlock()
		return nil, domain.Retryable(context.DeadlineExceeded)
	}
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	if e.mismatch && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int            { return 4 }
func (e *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (e *fakeEmbedder) Ping(context.Context) error { return nil }
func (e *fakeEmbedder) Close() error               { return nil }

func embedText(text string) []float32 {
	var v [4]float32
	for i, r := range text {
		v[i%4] += float32(r)
	}
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v[:]
	}
	inv := float32(1 / math.Sqrt(float64(norm)))
	for i := range v {
		v[i] *= inv
	}
	return v[:]
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.prompts = append(g.prompts, prompt)
	if g.reply == "" {
		return "generated documentation", nil
	}
	return g.reply, nil
}

func (g *fakeGenerator) ModelName() string          { return "fake-llm" }
func (g *fakeGenerator) Ping(context.Context) error { return nil }
func (g *fakeGenerator) Close() error               { return nil }

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type fakeIndex struct {
	mu     sync.Mutex
	chunks map[string]domain.DocumentChunk

	ftsHits []driven.IndexHit
	vecHits []driven.IndexHit
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{chunks: make(map[string]domain.DocumentChunk)}
}

func (ix *fakeIndex) Upsert(_ context.Context, chunks []domain.DocumentChunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, c := range chunks {
		ix.chunks[c.Key()] = c
	}
	return nil
}

func (ix *fakeIndex) DeleteRange(_ context.Context, repoID, path string, from int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for key, c := range ix.chunks {
		if c.RepoID == repoID && c.Path == path && c.ChunkIndex >= from {
			delete(ix.chunks, key)
		}
	}
	return nil
}

func (ix *fakeIndex) FullTextSearch(_ context.Context, query string, repoIDs []string, limit int) ([]driven.IndexHit, error) {
	if ix.ftsHits != nil {
		return ix.ftsHits, nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var hits []driven.IndexHit
	for _, c := range ix.chunks {
		if !repoAllowed(c.RepoID, repoIDs) {
			continue
		}
		if strings.Contains(strings.ToLower(c.Content), strings.ToLower(query)) {
			hits = append(hits, driven.IndexHit{Chunk: c, Score: 1})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Chunk.Key() < hits[j].Chunk.Key() })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (ix *fakeIndex) VectorSearch(_ context.Context, _ []float32, k int, _ []string) ([]driven.IndexHit, error) {
	hits := ix.vecHits
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *fakeIndex) Close() error { return nil }

func (ix *fakeIndex) paths(repoID string) map[string]int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	counts := make(map[string]int)
	for _, c := range ix.chunks {
		if c.RepoID == repoID {
			counts[c.Path]++
		}
	}
	return counts
}

func repoAllowed(repoID string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, id := range filter {
		if id == repoID {
			return true
		}
	}
	return false
}

type fakeArtifacts struct {
	mu    sync.Mutex
	pages map[string]domain.WikiPage
	raw   map[string][]byte
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{
		pages: make(map[string]domain.WikiPage),
		raw:   make(map[string][]byte),
	}
}

func (a *fakeArtifacts) PutPage(_ context.Context, page domain.WikiPage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages[page.RepoID+"/"+page.PageID] = page
	return nil
}

func (a *fakeArtifacts) GetPage(_ context.Context, repoID, pageID string) (*domain.WikiPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	page, ok := a.pages[repoID+"/"+pageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &page, nil
}

func (a *fakeArtifacts) ListPages(_ context.Context, repoID string) ([]domain.WikiPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.WikiPage
	for _, p := range a.pages {
		if p.RepoID == repoID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (a *fakeArtifacts) DeletePage(_ context.Context, repoID, pageID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pages, repoID+"/"+pageID)
	return nil
}

func (a *fakeArtifacts) PutRaw(_ context.Context, repoID, revision, path string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raw[repoID+"/"+revision+"/"+path] = data
	return nil
}
