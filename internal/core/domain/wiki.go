package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PageKind classifies a generated wiki page.
type PageKind string

// Wiki page kinds. The structural parser emits the first three; API and
// GUIDE are reserved for curated pages.
const (
	PageKindReadme    PageKind = "README"
	PageKindCode      PageKind = "CODE"
	PageKindDirectory PageKind = "DIRECTORY"
	PageKindAPI       PageKind = "API"
	PageKindGuide     PageKind = "GUIDE"
)

// PageImportance ranks how central a page is to understanding the
// repository.
type PageImportance string

// Page importance levels.
const (
	ImportanceHigh   PageImportance = "high"
	ImportanceMedium PageImportance = "medium"
	ImportanceLow    PageImportance = "low"
)

// ImportanceFor derives the default importance from the page kind:
// README pages are the entry points, directory overviews come next,
// individual files last.
func ImportanceFor(kind PageKind) PageImportance {
	switch kind {
	case PageKindReadme:
		return ImportanceHigh
	case PageKindDirectory, PageKindAPI, PageKindGuide:
		return ImportanceMedium
	default:
		return ImportanceLow
	}
}

// WikiPage is a generated documentation page for one logical unit of a
// repository. Pages are produced only by the doc-generation stage and
// are read-only to every other component.
type WikiPage struct {
	// RepoID is the owning repository.
	RepoID string

	// PageID is the stable page identifier, derived from the source path.
	PageID string

	// Title is the page title.
	Title string

	// Kind classifies the page.
	Kind PageKind

	// SourcePath is the file or directory the page documents.
	SourcePath string

	// Content is the generated Markdown body.
	Content string

	// Importance ranks the page for readers and TOC ordering.
	Importance PageImportance

	// Tags are free-form labels, typically the source languages involved.
	Tags []string

	// SourceRefs lists the chunk keys the generation prompt was built from.
	SourceRefs []string

	// UpdatedAt is when the page was last generated.
	UpdatedAt time.Time
}

// PageIDFor derives the stable page identifier for a source path.
// Short hash prefix keeps ids URL-friendly while staying unique
// within a repository.
func PageIDFor(sourcePath string) string {
	sum := sha256.Sum256([]byte(sourcePath))
	return hex.EncodeToString(sum[:])[:12]
}
