package domain

import "time"

// RepoProvider identifies the hosting service a repository lives on.
type RepoProvider string

// Supported repository providers.
const (
	ProviderGitHub     RepoProvider = "github"
	ProviderCodeCommit RepoProvider = "codecommit"
)

// RepoStatus is the lifecycle state of a repository.
type RepoStatus string

// Repository lifecycle states.
const (
	RepoStatusReady   RepoStatus = "READY"
	RepoStatusParsing RepoStatus = "PARSING"
	RepoStatusFailed  RepoStatus = "FAILED"
)

// Repository represents a registered source-code repository.
// Status and last-scan fields are mutated only by the analysis pipeline;
// query paths treat repositories as read-only.
type Repository struct {
	// ID is the unique identifier for the repository.
	ID string

	// Provider is the hosting service (github, codecommit).
	Provider RepoProvider

	// RemoteURL is the repository's remote locator.
	RemoteURL string

	// Name is the human-readable display name.
	Name string

	// DefaultBranch is the branch analysed when no revision is given.
	DefaultBranch string

	// Status is the current lifecycle state.
	Status RepoStatus

	// LastScanSHA is the revision of the last successful analysis.
	LastScanSHA string

	// LastScanAt is when the last successful analysis finished.
	LastScanAt time.Time

	// Deleted marks logical deletion. Deleted repositories are retained
	// in storage so job history survives.
	Deleted bool

	// CreatedAt is when the repository was registered.
	CreatedAt time.Time

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time
}
