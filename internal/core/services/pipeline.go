package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/codewiki/internal/chunker"
	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
	"github.com/custodia-labs/codewiki/internal/logger"
)

// PipelineConfig tunes the analysis pipeline.
type PipelineConfig struct {
	// ChunkSize is the maximum chunk size in bytes.
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int

	// EmbedBatchSize is the number of chunks per embedding call.
	EmbedBatchSize int

	// EmbedConcurrency is the number of parallel embedding batches.
	EmbedConcurrency int

	// StageAttempts is the number of in-place tries for a retryable
	// stage failure before the error escalates to the worker.
	StageAttempts int

	// StageBackoff is the base delay between in-place stage retries.
	StageBackoff time.Duration

	// DocContextBudget bounds the prompt bytes per generated page.
	DocContextBudget int

	// DocMaxTokens caps generation output per page.
	DocMaxTokens int
}

// withDefaults fills unset fields.
func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = chunker.DefaultChunkOverlap
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 16
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 4
	}
	if c.StageAttempts <= 0 {
		c.StageAttempts = 3
	}
	if c.StageBackoff <= 0 {
		c.StageBackoff = 2 * time.Second
	}
	if c.DocContextBudget <= 0 {
		c.DocContextBudget = 12000
	}
	if c.DocMaxTokens <= 0 {
		c.DocMaxTokens = 1024
	}
	return c
}

// Pipeline drives a single repository through
// Clone -> Detect-Changes -> Chunk -> Embed -> Generate-Docs -> Index ->
// Persist -> Finalize. All collaborators are injected; the pipeline holds
// no global state.
type Pipeline struct {
	repos     driven.RepositoryStore
	jobs      driven.JobRegistry
	source    driven.RepoSource
	parser    driven.StructuralParser
	embedder  driven.EmbeddingClient
	generator driven.GenerationClient
	index     driven.IndexStore
	artifacts driven.ArtifactStore
	chunks    *chunker.Chunker
	cfg       PipelineConfig
}

// NewPipeline creates an analysis pipeline with its collaborators.
func NewPipeline(
	repos driven.RepositoryStore,
	jobs driven.JobRegistry,
	source driven.RepoSource,
	parser driven.StructuralParser,
	embedder driven.EmbeddingClient,
	generator driven.GenerationClient,
	index driven.IndexStore,
	artifacts driven.ArtifactStore,
	cfg PipelineConfig,
) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		repos:     repos,
		jobs:      jobs,
		source:    source,
		parser:    parser,
		embedder:  embedder,
		generator: generator,
		index:     index,
		artifacts: artifacts,
		chunks:    chunker.New(chunker.WithChunkSize(cfg.ChunkSize), chunker.WithOverlap(cfg.ChunkOverlap)),
		cfg:       cfg,
	}
}

// pipelineRun carries per-job state between stages.
type pipelineRun struct {
	job     *domain.AnalysisJob
	repo    *domain.Repository
	target  string
	files   []domain.RepoFile
	changes []domain.FileChange

	// chunksByPath holds the freshly produced chunks per processed path.
	chunksByPath map[string][]domain.DocumentChunk

	// skipped records paths excluded from chunking (binary/malformed),
	// still tracked for completeness.
	skipped []string

	// deleted records paths whose chunks and pages must be removed.
	deleted []string

	pages     []domain.WikiPage
	processed int
}

// Run executes one analysis job end-to-end. Re-running a job whose
// registry entry is already terminal is a no-op.
//
// The returned error is classified: conflicts and fatal errors have
// already been recorded as job failure and must not be redelivered;
// retryable errors leave the job non-terminal for the queue to retry.
func (p *Pipeline) Run(ctx context.Context, msg domain.JobMessage) error {
	job, err := p.jobs.Get(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("get job %s: %w", msg.JobID, err)
	}
	if job.Status.Terminal() {
		logger.Debug("Job %s already %s, discarding redelivery", job.ID, job.Status)
		return nil
	}

	repo, err := p.repos.Get(ctx, msg.RepoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return p.fail(ctx, job.ID, domain.Fatal(fmt.Errorf("repository %s: %w", msg.RepoID, err)))
		}
		return fmt.Errorf("get repository %s: %w", msg.RepoID, err)
	}
	if repo.Deleted {
		return p.fail(ctx, job.ID, domain.Fatal(domain.ErrRepositoryDeleted))
	}

	// Claim the repository. The conditional write is the whole
	// concurrency story: a losing writer fails immediately instead of
	// blocking on a lock.
	prior := repo.Status
	if prior == domain.RepoStatusParsing {
		return p.resolveClaimedRepo(ctx, job)
	}
	claimed, err := p.repos.CompareAndSetStatus(ctx, repo.ID, prior, domain.RepoStatusParsing)
	if err != nil {
		return fmt.Errorf("claim repository %s: %w", repo.ID, err)
	}
	if !claimed {
		return p.resolveClaimedRepo(ctx, job)
	}

	logger.Section("Analysis Pipeline")
	logger.Info("Job %s: %s analysis of %s", job.ID, job.Type, repo.ID)

	run := &pipelineRun{
		job:          job,
		repo:         repo,
		target:       msg.TargetSHA,
		chunksByPath: make(map[string][]domain.DocumentChunk),
	}

	if err := p.execute(ctx, run); err != nil {
		// The repository must never be left stuck in PARSING.
		if _, cerr := p.repos.CompareAndSetStatus(ctx, repo.ID, domain.RepoStatusParsing, prior); cerr != nil {
			logger.Error("Failed to revert status of %s: %v", repo.ID, cerr)
		}
		if !domain.IsRetryable(err) {
			return p.fail(ctx, job.ID, err)
		}
		logger.Warn("Job %s stage failed (retryable): %v", job.ID, err)
		return err
	}

	if err := p.jobs.Finish(ctx, job.ID, domain.JobStatusSucceeded, ""); err != nil {
		return fmt.Errorf("finish job %s: %w", job.ID, err)
	}
	logger.Info("Job %s succeeded: %d files, %d pages", job.ID, run.processed, len(run.pages))
	return nil
}

// execute runs the stage sequence in strict order.
func (p *Pipeline) execute(ctx context.Context, run *pipelineRun) error {
	type stage struct {
		status   domain.JobStatus
		progress int
		fn       func(context.Context, *pipelineRun) error
	}

	stages := []stage{
		{domain.JobStatusCloning, 10, p.stageClone},
		{domain.JobStatusDetectingChanges, 20, p.stageDetect},
		{domain.JobStatusChunking, 35, p.stageChunk},
		{domain.JobStatusEmbedding, 55, p.stageEmbed},
		{domain.JobStatusGeneratingDocs, 70, p.stageGenerateDocs},
		{domain.JobStatusIndexing, 85, p.stageIndex},
		{domain.JobStatusPersisting, 95, p.stagePersist},
	}

	for _, s := range stages {
		if err := p.jobs.UpdateStage(ctx, run.job.ID, s.status, s.progress, run.processed, len(run.changes)); err != nil {
			return fmt.Errorf("update stage %s: %w", s.status, err)
		}
		if err := p.runStage(ctx, run, s.status, s.fn); err != nil {
			return fmt.Errorf("stage %s: %w", s.status, err)
		}
	}
	return nil
}

// runStage executes one stage with in-place retries for transient
// failures. Fatal errors escalate immediately; exhausted retryable
// errors surface to the worker-level backoff policy.
func (p *Pipeline) runStage(
	ctx context.Context,
	run *pipelineRun,
	status domain.JobStatus,
	fn func(context.Context, *pipelineRun) error,
) error {
	var err error
	for attempt := 1; attempt <= p.cfg.StageAttempts; attempt++ {
		err = fn(ctx, run)
		if err == nil || !domain.IsRetryable(err) {
			return err
		}
		if attempt == p.cfg.StageAttempts {
			break
		}

		delay := p.cfg.StageBackoff * time.Duration(1<<(attempt-1))
		logger.Warn("Stage %s attempt %d failed: %v (retrying in %s)", status, attempt, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// stageClone resolves the target revision and lists the trackable files.
// Content is fetched lazily per path in later stages, so no local
// checkout is materialised.
func (p *Pipeline) stageClone(ctx context.Context, run *pipelineRun) error {
	if run.target == "" {
		sha, err := p.source.ResolveHead(ctx, *run.repo)
		if err != nil {
			return fmt.Errorf("resolve head: %w", err)
		}
		run.target = sha
	}

	files, err := p.source.ListFiles(ctx, *run.repo, run.target)
	if err != nil {
		return fmt.Errorf("list files at %s: %w", run.target, err)
	}
	run.files = files

	logger.Debug("Revision %s: %d trackable files", run.target, len(files))
	return nil
}

// stageDetect computes the change set the rest of the pipeline operates
// on. FULL jobs process everything; INCREMENTAL jobs diff against the
// last successful scan.
func (p *Pipeline) stageDetect(ctx context.Context, run *pipelineRun) error {
	base := ""
	if run.job.Type == domain.JobTypeIncremental {
		base = run.repo.LastScanSHA
	}

	detector := NewChangeDetector(p.source)
	changes, err := detector.Detect(ctx, *run.repo, base, run.target, run.files)
	if err != nil {
		return err
	}
	run.changes = changes

	for _, c := range changes {
		if c.Kind == domain.ChangeDeleted {
			run.deleted = append(run.deleted, c.Path)
		}
	}
	return nil
}

// stageChunk fetches and chunks every added or modified path. Binary or
// malformed content is skipped and recorded, never fatal to the job.
func (p *Pipeline) stageChunk(ctx context.Context, run *pipelineRun) error {
	now := time.Now().UTC()

	for _, change := range run.changes {
		if change.Kind == domain.ChangeDeleted {
			run.processed++
			continue
		}

		data, err := p.source.FetchFile(ctx, *run.repo, run.target, change.Path)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Path %s vanished at %s, skipping", change.Path, run.target)
				run.skipped = append(run.skipped, change.Path)
				run.processed++
				continue
			}
			return fmt.Errorf("fetch %s: %w", change.Path, err)
		}

		if chunker.IsBinary(data) {
			logger.Debug("Skipping binary path %s", change.Path)
			run.skipped = append(run.skipped, change.Path)
			run.processed++
			continue
		}

		run.chunksByPath[change.Path] = p.chunks.Chunk(run.repo.ID, change.Path, string(data), now)
		run.processed++
	}

	logger.Debug("Chunked %d paths (%d skipped)", len(run.chunksByPath), len(run.skipped))
	return nil
}

// stageEmbed generates embeddings for all produced chunks in batches.
// A failed batch aborts the stage; there is no partial silent skip.
func (p *Pipeline) stageEmbed(ctx context.Context, run *pipelineRun) error {
	all := run.orderedChunks()
	if len(all) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)

	for start := 0; start < len(all); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(all) {
			end = len(all)
		}
		batch := all[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}

			vectors, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch of %d: %w", len(batch), err)
			}
			if len(vectors) != len(batch) {
				return domain.Fatal(fmt.Errorf("embed batch returned %d vectors for %d chunks", len(vectors), len(batch)))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Debug("Embedded %d chunks (%d dims)", len(all), p.embedder.Dimensions())
	return nil
}

// stageGenerateDocs produces one wiki page per logical unit using a
// bounded prompt built from the unit's chunks.
func (p *Pipeline) stageGenerateDocs(ctx context.Context, run *pipelineRun) error {
	changedFiles := make([]domain.RepoFile, 0, len(run.chunksByPath))
	for _, f := range run.files {
		if _, ok := run.chunksByPath[f.Path]; ok {
			changedFiles = append(changedFiles, f)
		}
	}

	units := p.parser.Units(*run.repo, changedFiles)
	now := time.Now().UTC()

	for _, unit := range units {
		prompt, refs := p.buildDocPrompt(run, unit)
		if len(refs) == 0 {
			continue
		}

		body, err := p.generator.Generate(ctx, prompt, driven.GenerateOptions{
			MaxTokens:   p.cfg.DocMaxTokens,
			Temperature: 0.2,
		})
		if err != nil {
			return fmt.Errorf("generate page for %s: %w", unit.SourcePath, err)
		}

		run.pages = append(run.pages, domain.WikiPage{
			RepoID:     run.repo.ID,
			PageID:     domain.PageIDFor(unit.SourcePath),
			Title:      unit.Title,
			Kind:       unit.Kind,
			SourcePath: unit.SourcePath,
			Content:    body,
			Importance: domain.ImportanceFor(unit.Kind),
			Tags:       unitTags(unit),
			SourceRefs: refs,
			UpdatedAt:  now,
		})
	}

	logger.Debug("Generated %d wiki pages", len(run.pages))
	return nil
}

// unitTags derives page tags from the languages of the unit's files.
func unitTags(unit driven.DocUnit) []string {
	seen := make(map[string]struct{}, len(unit.Paths))
	var tags []string
	for _, path := range unit.Paths {
		lang := chunker.LanguageFor(path)
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		tags = append(tags, lang)
	}
	sort.Strings(tags)
	return tags
}

// buildDocPrompt assembles the generation prompt for one unit, bounded
// by the context budget, and returns the chunk keys that went in.
func (p *Pipeline) buildDocPrompt(run *pipelineRun, unit driven.DocUnit) (string, []string) {
	var b strings.Builder
	b.WriteString("You are writing internal wiki documentation for the repository \"")
	b.WriteString(run.repo.Name)
	b.WriteString("\".\nWrite a concise Markdown page describing ")
	b.WriteString(unit.SourcePath)
	b.WriteString(": its purpose, key elements and how it fits the codebase.\n\nSource excerpts:\n")

	var refs []string
	used := b.Len()

	for _, path := range unit.Paths {
		for _, chunk := range run.chunksByPath[path] {
			section := fmt.Sprintf("\n--- %s (part %d) ---\n%s\n", chunk.Path, chunk.ChunkIndex, chunk.Content)
			if used+len(section) > p.cfg.DocContextBudget {
				return b.String(), refs
			}
			b.WriteString(section)
			used += len(section)
			refs = append(refs, chunk.Key())
		}
	}

	return b.String(), refs
}

// stageIndex upserts the fresh chunks and removes stale entries: whole
// paths that were deleted, and trailing chunk indices of re-chunked
// paths that shrank.
func (p *Pipeline) stageIndex(ctx context.Context, run *pipelineRun) error {
	for _, path := range run.deleted {
		if err := p.index.DeleteRange(ctx, run.repo.ID, path, 0); err != nil {
			return fmt.Errorf("delete index entries for %s: %w", path, err)
		}
	}

	for path, chunks := range run.chunksByPath {
		if err := p.index.DeleteRange(ctx, run.repo.ID, path, len(chunks)); err != nil {
			return fmt.Errorf("trim stale chunks of %s: %w", path, err)
		}
	}

	refs := run.orderedChunks()
	fresh := make([]domain.DocumentChunk, len(refs))
	for i, c := range refs {
		fresh[i] = *c
	}
	if err := p.index.Upsert(ctx, fresh); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// stagePersist writes wiki pages and the raw run manifest, then records
// the successful scan. Repository state advances only after both the
// index and artifact writes succeeded.
func (p *Pipeline) stagePersist(ctx context.Context, run *pipelineRun) error {
	for _, page := range run.pages {
		if err := p.artifacts.PutPage(ctx, page); err != nil {
			return fmt.Errorf("put page %s: %w", page.PageID, err)
		}
	}

	for _, path := range run.deleted {
		if err := p.artifacts.DeletePage(ctx, run.repo.ID, domain.PageIDFor(path)); err != nil {
			return fmt.Errorf("delete page for %s: %w", path, err)
		}
	}

	manifest, err := json.Marshal(runManifest{
		JobID:     run.job.ID,
		Revision:  run.target,
		Files:     len(run.files),
		Processed: run.processed,
		Skipped:   run.skipped,
		Deleted:   run.deleted,
		Pages:     len(run.pages),
	})
	if err != nil {
		return domain.Fatal(fmt.Errorf("marshal manifest: %w", err))
	}
	if err := p.artifacts.PutRaw(ctx, run.repo.ID, run.target, "manifest.json", manifest); err != nil {
		return fmt.Errorf("put manifest: %w", err)
	}

	if err := p.repos.FinishScan(ctx, run.repo.ID, run.target, time.Now().UTC()); err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// runManifest is the raw artifact summarising one pipeline run.
type runManifest struct {
	JobID     string   `json:"job_id"`
	Revision  string   `json:"revision"`
	Files     int      `json:"files"`
	Processed int      `json:"processed"`
	Skipped   []string `json:"skipped,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`
	Pages     int      `json:"pages"`
}

// orderedChunks returns pointers to all produced chunks in deterministic
// path/index order, so the embedding stage can attach vectors in place
// and upserts stay stable across runs.
func (r *pipelineRun) orderedChunks() []*domain.DocumentChunk {
	paths := make([]string, 0, len(r.chunksByPath))
	for path := range r.chunksByPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var all []*domain.DocumentChunk
	for _, path := range paths {
		chunks := r.chunksByPath[path]
		for i := range chunks {
			all = append(all, &chunks[i])
		}
	}
	return all
}

// resolveClaimedRepo handles a message whose repository is already held
// in PARSING. A job that has left QUEUED is itself the claim holder, so
// the message is a lease-expiry redelivery of a run still in flight: it
// must be left for retry, not terminally failed. Only a still-QUEUED job
// lost the claim to a different job and is a real conflict.
func (p *Pipeline) resolveClaimedRepo(ctx context.Context, job *domain.AnalysisJob) error {
	if job.Status != domain.JobStatusQueued {
		logger.Debug("Job %s redelivered while %s, leaving in flight", job.ID, job.Status)
		return domain.Retryable(fmt.Errorf("job %s still in flight", job.ID))
	}
	return p.fail(ctx, job.ID, domain.ErrConflictingJob)
}

// fail records a terminal failure with its human-readable cause and
// returns the originating error.
func (p *Pipeline) fail(ctx context.Context, jobID string, cause error) error {
	if err := p.jobs.Finish(ctx, jobID, domain.JobStatusFailed, cause.Error()); err != nil {
		logger.Error("Failed to record failure of job %s: %v", jobID, err)
	}
	logger.Warn("Job %s failed: %v", jobID, cause)
	return cause
}
