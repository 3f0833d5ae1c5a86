// Package sqlite provides the durable SQLite-backed implementations of
// the storage ports: repositories, the job registry, the hybrid chunk
// index and the job queue, all in a single database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/codewiki/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.codewiki/data/codewiki.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".codewiki", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "codewiki.db")

	// WAL mode keeps readers unblocked while a worker writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RepositoryStore returns a RepositoryStore interface backed by this store.
func (s *Store) RepositoryStore() driven.RepositoryStore {
	return &repositoryStore{store: s}
}

// JobRegistry returns a JobRegistry interface backed by this store.
func (s *Store) JobRegistry() driven.JobRegistry {
	return &jobRegistry{store: s}
}

// IndexStore returns an IndexStore interface backed by this store.
func (s *Store) IndexStore() driven.IndexStore {
	return &indexStore{store: s}
}

// JobQueue returns a JobQueue interface backed by this store.
// lease is the message visibility timeout; zero uses five minutes.
func (s *Store) JobQueue(lease time.Duration) driven.JobQueue {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &jobQueue{store: s, lease: lease}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Repository Store ====================

// repositoryStore implements driven.RepositoryStore.
type repositoryStore struct {
	store *Store
}

var _ driven.RepositoryStore = (*repositoryStore)(nil)

// Save stores or updates a repository record.
func (s *repositoryStore) Save(ctx context.Context, repo domain.Repository) error {
	now := time.Now().UTC()
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO repositories (id, provider, remote_url, name, default_branch, status,
			last_scan_sha, last_scan_at, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			remote_url = excluded.remote_url,
			name = excluded.name,
			default_branch = excluded.default_branch,
			status = excluded.status,
			last_scan_sha = excluded.last_scan_sha,
			last_scan_at = excluded.last_scan_at,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`, repo.ID, repo.Provider, repo.RemoteURL, repo.Name, repo.DefaultBranch, repo.Status,
		nullString(repo.LastScanSHA), nullTime(repo.LastScanAt), boolInt(repo.Deleted),
		repo.CreatedAt, repo.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving repository: %w", err)
	}
	return nil
}

// Get retrieves a repository by ID, including logically deleted ones.
func (s *repositoryStore) Get(ctx context.Context, id string) (*domain.Repository, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, provider, remote_url, name, default_branch, status,
			last_scan_sha, last_scan_at, deleted, created_at, updated_at
		FROM repositories WHERE id = ?
	`, id)

	repo, err := scanRepository(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning repository: %w", err)
	}
	return repo, nil
}

// List returns all non-deleted repositories.
func (s *repositoryStore) List(ctx context.Context) ([]domain.Repository, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, provider, remote_url, name, default_branch, status,
			last_scan_sha, last_scan_at, deleted, created_at, updated_at
		FROM repositories WHERE deleted = 0 ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying repositories: %w", err)
	}
	defer rows.Close()

	var repos []domain.Repository //nolint:prealloc // size unknown from query
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning repository: %w", err)
		}
		repos = append(repos, *repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating repositories: %w", err)
	}
	return repos, nil
}

// CompareAndSetStatus atomically transitions the status from expected to
// next. The conditional UPDATE is the concurrency primitive behind the
// single-active-job-per-repository guarantee.
func (s *repositoryStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.RepoStatus) (bool, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE repositories SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, next, time.Now().UTC(), id, expected)
	if err != nil {
		return false, fmt.Errorf("updating repository status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing record.
		var exists int
		row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM repositories WHERE id = ?", id)
		if err := row.Scan(&exists); err != nil {
			return false, fmt.Errorf("checking repository existence: %w", err)
		}
		if exists == 0 {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

// FinishScan records a successful analysis in a single update.
func (s *repositoryStore) FinishScan(ctx context.Context, id, sha string, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE repositories
		SET status = ?, last_scan_sha = ?, last_scan_at = ?, updated_at = ?
		WHERE id = ?
	`, domain.RepoStatusReady, sha, at, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("recording scan: %w", err)
	}
	return requireAffected(res)
}

// MarkDeleted sets the logical deletion flag.
func (s *repositoryStore) MarkDeleted(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE repositories SET deleted = 1, updated_at = ? WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking repository deleted: %w", err)
	}
	return requireAffected(res)
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(row scanner) (*domain.Repository, error) {
	var repo domain.Repository
	var lastScanSHA sql.NullString
	var lastScanAt sql.NullTime
	var deleted int
	if err := row.Scan(&repo.ID, &repo.Provider, &repo.RemoteURL, &repo.Name,
		&repo.DefaultBranch, &repo.Status, &lastScanSHA, &lastScanAt,
		&deleted, &repo.CreatedAt, &repo.UpdatedAt); err != nil {
		return nil, err
	}
	repo.LastScanSHA = lastScanSHA.String
	if lastScanAt.Valid {
		repo.LastScanAt = lastScanAt.Time
	}
	repo.Deleted = deleted != 0
	return &repo, nil
}

// ==================== Job Registry ====================

// jobRegistry implements driven.JobRegistry.
type jobRegistry struct {
	store *Store
}

var _ driven.JobRegistry = (*jobRegistry)(nil)

// Create stores a new job record.
func (r *jobRegistry) Create(ctx context.Context, job domain.AnalysisJob) error {
	if job.Priority == "" {
		job.Priority = domain.PriorityNormal
	}
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (id, repo_id, job_type, trigger_source, priority, status,
			target_sha, progress, processed_files, total_files, error, started_at, finished_at,
			created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.RepoID, job.Type, job.Trigger, job.Priority, job.Status, nullString(job.TargetSHA),
		job.Progress, job.ProcessedFiles, job.TotalFiles, nullString(job.Error),
		nullTime(job.StartedAt), nullTime(job.FinishedAt), job.CreatedAt, job.ExpiresAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (r *jobRegistry) Get(ctx context.Context, id string) (*domain.AnalysisJob, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, repo_id, job_type, trigger_source, priority, status, target_sha,
			progress, processed_files, total_files, error, started_at, finished_at,
			created_at, expires_at
		FROM analysis_jobs WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	return job, nil
}

// ListByRepo returns jobs for a repository, newest first.
func (r *jobRegistry) ListByRepo(ctx context.Context, repoID string, status domain.JobStatus) ([]domain.AnalysisJob, error) {
	query := `
		SELECT id, repo_id, job_type, trigger_source, priority, status, target_sha,
			progress, processed_files, total_files, error, started_at, finished_at,
			created_at, expires_at
		FROM analysis_jobs WHERE repo_id = ?`
	args := []any{repoID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.AnalysisJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// UpdateStage records pipeline progress. The status guard keeps terminal
// jobs immutable.
func (r *jobRegistry) UpdateStage(ctx context.Context, id string, stage domain.JobStatus, progress, processed, total int) error {
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = ?, progress = ?, processed_files = ?, total_files = ?,
			started_at = COALESCE(started_at, ?)
		WHERE id = ? AND status NOT IN (?, ?)
	`, stage, progress, processed, total, time.Now().UTC(),
		id, domain.JobStatusSucceeded, domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("updating job stage: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return r.missingOrTerminal(ctx, id)
	}
	return nil
}

// Finish conditionally records a terminal status; the first terminal
// write wins.
func (r *jobRegistry) Finish(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	progressExpr := "progress"
	if status == domain.JobStatusSucceeded {
		progressExpr = "100"
	}

	res, err := r.store.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE analysis_jobs
		SET status = ?, error = ?, finished_at = ?, progress = %s
		WHERE id = ? AND status NOT IN (?, ?)
	`, progressExpr), status, nullString(errMsg), time.Now().UTC(),
		id, domain.JobStatusSucceeded, domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("finishing job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return r.missingOrTerminal(ctx, id)
	}
	return nil
}

// missingOrTerminal maps a zero-row update to its cause: ErrNotFound for
// an unknown job, nil for an already-terminal one.
func (r *jobRegistry) missingOrTerminal(ctx context.Context, id string) error {
	var exists int
	row := r.store.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM analysis_jobs WHERE id = ?", id)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("checking job existence: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row scanner) (*domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	var targetSHA, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&job.ID, &job.RepoID, &job.Type, &job.Trigger, &job.Priority,
		&job.Status, &targetSHA, &job.Progress, &job.ProcessedFiles, &job.TotalFiles,
		&errMsg, &startedAt, &finishedAt, &job.CreatedAt, &job.ExpiresAt); err != nil {
		return nil, err
	}
	job.TargetSHA = targetSHA.String
	job.Error = errMsg.String
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}
	return &job, nil
}

// ==================== Index Store ====================

// indexStore implements driven.IndexStore. Full-text matching runs on
// the chunks_fts FTS5 table ranked by bm25; vector search loads
// candidate embeddings and scores cosine similarity in Go.
type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

// Upsert inserts or replaces chunks by their key.
func (ix *indexStore) Upsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := ix.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (repo_id, path, chunk_index, content, embedding, language, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, path, chunk_index) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			language = excluded.language,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingBlob := float32SliceToBytes(chunk.Embedding)
		if _, err := stmt.ExecContext(ctx, chunk.RepoID, chunk.Path, chunk.ChunkIndex,
			chunk.Content, embeddingBlob, nullString(chunk.Language), chunk.UpdatedAt); err != nil {
			return fmt.Errorf("upserting chunk %s: %w", chunk.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// DeleteRange removes chunks of a path whose index is >= from.
func (ix *indexStore) DeleteRange(ctx context.Context, repoID, path string, from int) error {
	_, err := ix.store.db.ExecContext(ctx, `
		DELETE FROM chunks WHERE repo_id = ? AND path = ? AND chunk_index >= ?
	`, repoID, path, from)
	if err != nil {
		return fmt.Errorf("deleting chunk range: %w", err)
	}
	return nil
}

// FullTextSearch runs keyword search against the FTS5 table and returns
// bm25-ranked hits. The score is the negated bm25 rank, so higher is
// better like every other hit source.
func (ix *indexStore) FullTextSearch(ctx context.Context, query string, repoIDs []string, limit int) ([]driven.IndexHit, error) {
	match := ftsMatchExpr(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	sqlQuery := `
		SELECT c.repo_id, c.path, c.chunk_index, c.content, c.language, c.updated_at,
			bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?`
	args := []any{match}
	if filter, filterArgs := repoFilter(repoIDs); filter != "" {
		sqlQuery += filter
		args = append(args, filterArgs...)
	}
	sqlQuery += " ORDER BY rank, c.updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := ix.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []driven.IndexHit
	for rows.Next() {
		var chunk domain.DocumentChunk
		var language sql.NullString
		var rank float64
		if err := rows.Scan(&chunk.RepoID, &chunk.Path, &chunk.ChunkIndex,
			&chunk.Content, &language, &chunk.UpdatedAt, &rank); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Language = language.String

		hits = append(hits, driven.IndexHit{Chunk: chunk, Score: -rank})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return hits, nil
}

// ftsMatchExpr builds an FTS5 MATCH expression that ANDs every query
// term as a quoted string, so user input cannot inject FTS5 syntax.
func ftsMatchExpr(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// VectorSearch returns the k nearest chunks to the query vector.
func (ix *indexStore) VectorSearch(ctx context.Context, vector []float32, k int, repoIDs []string) ([]driven.IndexHit, error) {
	if len(vector) == 0 || k <= 0 {
		return nil, nil
	}

	sqlQuery := `
		SELECT repo_id, path, chunk_index, content, embedding, language, updated_at
		FROM chunks WHERE embedding IS NOT NULL`
	var args []any
	if filter, filterArgs := repoFilter(repoIDs); filter != "" {
		sqlQuery += filter
		args = append(args, filterArgs...)
	}

	rows, err := ix.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var hits []driven.IndexHit
	for rows.Next() {
		var chunk domain.DocumentChunk
		var blob []byte
		var language sql.NullString
		if err := rows.Scan(&chunk.RepoID, &chunk.Path, &chunk.ChunkIndex,
			&chunk.Content, &blob, &language, &chunk.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Language = language.String
		chunk.Embedding = bytesToFloat32Slice(blob)

		if len(chunk.Embedding) != len(vector) {
			// Stale entry from a different embedding model.
			continue
		}
		hits = append(hits, driven.IndexHit{
			Chunk: chunk,
			Score: cosineSimilarity(vector, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sortIndexHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close is a no-op; the parent store owns the connection.
func (ix *indexStore) Close() error {
	return nil
}

// sortIndexHits orders by score descending with UpdatedAt, then key, as
// tie-breakers.
func sortIndexHits(hits []driven.IndexHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Chunk.UpdatedAt.Equal(hits[j].Chunk.UpdatedAt) {
			return hits[i].Chunk.UpdatedAt.After(hits[j].Chunk.UpdatedAt)
		}
		return hits[i].Chunk.Key() < hits[j].Chunk.Key()
	})
}

// repoFilter builds the optional repository filter clause.
func repoFilter(repoIDs []string) (string, []any) {
	if len(repoIDs) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(repoIDs))
	args := make([]any, len(repoIDs))
	for i, id := range repoIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	return " AND repo_id IN (" + strings.Join(placeholders, ", ") + ")", args
}

// cosineSimilarity computes cosine similarity mapped to [0, 1].
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

// ==================== Job Queue ====================

// jobQueue implements driven.JobQueue over the job_queue table. A claim
// is a conditional UPDATE on the attempts counter, so concurrent workers
// never lease the same message twice.
type jobQueue struct {
	store *Store
	lease time.Duration
}

var _ driven.JobQueue = (*jobQueue)(nil)

// Enqueue makes a job message available for delivery.
func (q *jobQueue) Enqueue(ctx context.Context, msg domain.JobMessage) error {
	now := time.Now().UTC()
	_, err := q.store.db.ExecContext(ctx, `
		INSERT INTO job_queue (id, job_id, repo_id, job_type, priority, target_sha, attempts, visible_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, uuid.New().String(), msg.JobID, msg.RepoID, msg.Type, msg.Priority.Rank(),
		nullString(msg.TargetSHA), now, now)
	if err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}
	return nil
}

// Receive leases the next deliverable message.
func (q *jobQueue) Receive(ctx context.Context) (*driven.Lease, error) {
	now := time.Now().UTC()

	row := q.store.db.QueryRowContext(ctx, `
		SELECT id, job_id, repo_id, job_type, priority, target_sha, attempts
		FROM job_queue
		WHERE visible_at <= ? AND (lease_until IS NULL OR lease_until <= ?)
		ORDER BY priority, visible_at
		LIMIT 1
	`, now, now)

	var id, jobID, repoID, jobType string
	var targetSHA sql.NullString
	var priorityRank, attempts int
	if err := row.Scan(&id, &jobID, &repoID, &jobType, &priorityRank, &targetSHA, &attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQueueEmpty
		}
		return nil, fmt.Errorf("selecting message: %w", err)
	}

	leaseUntil := now.Add(q.lease)
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE job_queue SET attempts = attempts + 1, lease_until = ?
		WHERE id = ? AND attempts = ?
	`, leaseUntil, id, attempts)
	if err != nil {
		return nil, fmt.Errorf("claiming message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		// Another worker won the claim.
		return nil, domain.ErrQueueEmpty
	}

	return &driven.Lease{
		ID: id,
		Message: domain.JobMessage{
			JobID:     jobID,
			RepoID:    repoID,
			Type:      domain.JobType(jobType),
			Priority:  domain.PriorityFromRank(priorityRank),
			TargetSHA: targetSHA.String,
		},
		Attempt:   attempts + 1,
		ExpiresAt: leaseUntil,
	}, nil
}

// Ack removes a leased message permanently.
func (q *jobQueue) Ack(ctx context.Context, lease *driven.Lease) error {
	_, err := q.store.db.ExecContext(ctx, "DELETE FROM job_queue WHERE id = ?", lease.ID)
	if err != nil {
		return fmt.Errorf("acking message: %w", err)
	}
	return nil
}

// Nack releases a leased message for redelivery after delay.
func (q *jobQueue) Nack(ctx context.Context, lease *driven.Lease, delay time.Duration) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE job_queue SET lease_until = NULL, visible_at = ? WHERE id = ?
	`, time.Now().UTC().Add(delay), lease.ID)
	if err != nil {
		return fmt.Errorf("nacking message: %w", err)
	}
	return requireAffected(res)
}

// DeadLetter moves a leased message to the dead-letter table.
func (q *jobQueue) DeadLetter(ctx context.Context, lease *driven.Lease) error {
	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, `
		INSERT INTO job_queue_dead (id, job_id, repo_id, job_type, priority, target_sha, attempts, failed_at)
		SELECT id, job_id, repo_id, job_type, priority, target_sha, attempts, ? FROM job_queue WHERE id = ?
	`, time.Now().UTC(), lease.ID)
	if err != nil {
		return fmt.Errorf("copying to dead letter: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM job_queue WHERE id = ?", lease.ID); err != nil {
		return fmt.Errorf("removing from queue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing dead letter: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// nullString converts an empty string to NULL for storage.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime converts a zero time to NULL for storage.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// boolInt converts a bool to its SQLite integer form.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireAffected maps a zero-row write to ErrNotFound.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
