package domain

// ChangeKind classifies a path-level difference between two revisions.
type ChangeKind string

// Change kinds.
const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// FileChange is one entry in the delta between two revisions.
type FileChange struct {
	// Path is the repository-relative file path.
	Path string

	// Kind is the change classification.
	Kind ChangeKind
}

// RepoFile describes one trackable file at a revision.
type RepoFile struct {
	// Path is the repository-relative file path.
	Path string

	// Size is the file size in bytes.
	Size int64
}
