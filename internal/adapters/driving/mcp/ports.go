package mcp

import (
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
	"github.com/custodia-labs/codewiki/internal/core/ports/driving"
)

// Ports aggregates the interfaces the MCP server exposes tools over.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides full-text and RAG search.
	Search driving.SearchService

	// Analysis enqueues and inspects analysis jobs.
	Analysis driving.AnalysisService

	// Repos lists registered repositories for resources.
	Repos driven.RepositoryStore

	// Artifacts serves generated wiki pages for resources.
	Artifacts driven.ArtifactStore
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Analysis, Repos and Artifacts are optional; the matching tools and
	// resources degrade when absent.
	return nil
}
