// Package github implements the repository source port on top of the
// GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
)

// Ensure RepoSource implements the interface.
var _ driven.RepoSource = (*RepoSource)(nil)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// RepoSource reads repository content through the GitHub API.
type RepoSource struct {
	gh      *gh.Client
	limiter *rateLimiter
}

// NewRepoSource creates a source authenticated with a static access
// token. Works for both PAT and OAuth access tokens; an empty token
// yields an unauthenticated client with a much smaller quota.
func NewRepoSource(ctx context.Context, token string) *RepoSource {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = DefaultTimeout

	return &RepoSource{
		gh:      gh.NewClient(httpClient),
		limiter: newRateLimiter(),
	}
}

// NewRepoSourceWithClient creates a source around an existing go-github
// client. Used by tests to point at a stub server.
func NewRepoSourceWithClient(client *gh.Client) *RepoSource {
	return &RepoSource{
		gh:      client,
		limiter: newRateLimiter(),
	}
}

// ResolveHead returns the commit SHA the repository's branch points at.
func (s *RepoSource) ResolveHead(ctx context.Context, repo domain.Repository) (string, error) {
	owner, name, err := splitRemote(repo)
	if err != nil {
		return "", err
	}

	branch := repo.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	if err := s.limiter.wait(ctx); err != nil {
		return "", err
	}

	br, resp, err := s.gh.Repositories.GetBranch(ctx, owner, name, branch, 3)
	s.updateLimiter(resp)
	if err != nil {
		return "", wrapError(err, "resolve head")
	}

	sha := br.GetCommit().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("resolve head: branch %q has no commit", branch)
	}
	return sha, nil
}

// ListFiles returns every blob in the tree at the given revision.
func (s *RepoSource) ListFiles(ctx context.Context, repo domain.Repository, revision string) ([]domain.RepoFile, error) {
	owner, name, err := splitRemote(repo)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.wait(ctx); err != nil {
		return nil, err
	}

	tree, resp, err := s.gh.Git.GetTree(ctx, owner, name, revision, true)
	s.updateLimiter(resp)
	if err != nil {
		return nil, wrapError(err, "list files")
	}

	files := make([]domain.RepoFile, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		files = append(files, domain.RepoFile{
			Path: entry.GetPath(),
			Size: int64(entry.GetSize()),
		})
	}
	return files, nil
}

// Compare returns the path-level delta between two revisions. An unknown
// base surfaces as domain.ErrNotFound so callers can fall back to a full
// listing.
func (s *RepoSource) Compare(ctx context.Context, repo domain.Repository, base, head string) ([]domain.FileChange, error) {
	owner, name, err := splitRemote(repo)
	if err != nil {
		return nil, err
	}

	var changes []domain.FileChange
	opts := &gh.ListOptions{PerPage: 100}

	for {
		if err := s.limiter.wait(ctx); err != nil {
			return nil, err
		}

		cmp, resp, err := s.gh.Repositories.CompareCommits(ctx, owner, name, base, head, opts)
		s.updateLimiter(resp)
		if err != nil {
			return nil, wrapError(err, "compare revisions")
		}

		for _, file := range cmp.Files {
			changes = append(changes, mapCommitFile(file)...)
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return changes, nil
}

// FetchFile returns the raw content of one file at a revision. Files over
// the contents-API size limit fall back to the raw download endpoint.
func (s *RepoSource) FetchFile(ctx context.Context, repo domain.Repository, revision, path string) ([]byte, error) {
	owner, name, err := splitRemote(repo)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.wait(ctx); err != nil {
		return nil, err
	}

	opts := &gh.RepositoryContentGetOptions{Ref: revision}
	content, _, resp, err := s.gh.Repositories.GetContents(ctx, owner, name, path, opts)
	s.updateLimiter(resp)
	if err != nil {
		return nil, wrapError(err, "fetch file")
	}
	if content == nil {
		return nil, fmt.Errorf("fetch file: %s is a directory", path)
	}

	decoded, err := content.GetContent()
	if err == nil && (decoded != "" || content.GetSize() == 0) {
		return []byte(decoded), nil
	}

	// Contents API omits bodies over 1MB.
	rc, _, err := s.gh.Repositories.DownloadContents(ctx, owner, name, path, opts)
	if err != nil {
		return nil, wrapError(err, "download file")
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("download file: %w", err))
	}
	return data, nil
}

func (s *RepoSource) updateLimiter(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	s.limiter.update(resp.Response)
}

// mapCommitFile translates one compare entry into path-level changes.
// Renames produce a delete of the old path plus an add of the new one.
func mapCommitFile(file *gh.CommitFile) []domain.FileChange {
	path := file.GetFilename()

	switch file.GetStatus() {
	case "added", "copied":
		return []domain.FileChange{{Path: path, Kind: domain.ChangeAdded}}
	case "removed":
		return []domain.FileChange{{Path: path, Kind: domain.ChangeDeleted}}
	case "modified", "changed":
		return []domain.FileChange{{Path: path, Kind: domain.ChangeModified}}
	case "renamed":
		changes := []domain.FileChange{{Path: path, Kind: domain.ChangeAdded}}
		if prev := file.GetPreviousFilename(); prev != "" {
			changes = append(changes, domain.FileChange{Path: prev, Kind: domain.ChangeDeleted})
		}
		return changes
	default:
		return nil
	}
}

// splitRemote extracts owner and repo name from the registered remote.
// Accepts https URLs, ssh remotes and plain "owner/name".
func splitRemote(repo domain.Repository) (string, string, error) {
	remote := strings.TrimSuffix(repo.RemoteURL, ".git")
	remote = strings.TrimPrefix(remote, "https://github.com/")
	remote = strings.TrimPrefix(remote, "http://github.com/")
	remote = strings.TrimPrefix(remote, "git@github.com:")
	remote = strings.Trim(remote, "/")

	parts := strings.Split(remote, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: remote %q is not owner/name", domain.ErrInvalidInput, repo.RemoteURL)
	}
	return parts[0], parts[1], nil
}

// wrapError maps GitHub API failures onto the retry policy. Missing
// resources carry domain.ErrNotFound so change detection can fall back;
// rate limits and server errors are transient; auth failures are not.
func wrapError(err error, op string) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return domain.Retryable(fmt.Errorf("%s: %w", op, err))
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return domain.Retryable(fmt.Errorf("%s: %w", op, err))
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status := ghErr.Response.StatusCode
		switch {
		case status == http.StatusNotFound:
			return domain.Fatal(fmt.Errorf("%s: %w", op, domain.ErrNotFound))
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return domain.Fatal(fmt.Errorf("%s: %w", op, err))
		case status == http.StatusTooManyRequests || status >= 500:
			return domain.Retryable(fmt.Errorf("%s: %w", op, err))
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
