package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for codewiki resources.
	uriScheme = "codewiki://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing repositories.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "repositories",
		Name:        "repositories",
		Description: "List of all registered repositories",
		MIMEType:    "application/json",
	}, s.handleRepositoriesResource)

	// Template for a repository's wiki table of contents.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "repositories/{repoId}/wiki",
		Name:        "repository-wiki",
		Description: "Wiki table of contents for a repository",
		MIMEType:    "application/json",
	}, s.handleWikiTocResource)

	// Template for wiki page content.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "wiki/{repoId}/{pageId}",
		Name:        "wiki-page",
		Description: "Content of a generated wiki page",
		MIMEType:    "text/markdown",
	}, s.handleWikiPageResource)
}

// handleRepositoriesResource returns all registered repositories.
func (s *Server) handleRepositoriesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Repos == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "[]",
			}},
		}, nil
	}

	repos, err := s.ports.Repos.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	type repoInfo struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Status      string `json:"status"`
		LastScanSHA string `json:"last_scan_sha,omitempty"`
	}

	infos := make([]repoInfo, len(repos))
	for i, repo := range repos {
		infos[i] = repoInfo{
			ID:          repo.ID,
			Name:        repo.Name,
			Status:      string(repo.Status),
			LastScanSHA: repo.LastScanSHA,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling repositories: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleWikiTocResource returns the wiki table of contents for a repository.
func (s *Server) handleWikiTocResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Artifacts == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract repoId from URI: codewiki://repositories/{repoId}/wiki
	repoID := extractWikiRepoID(req.Params.URI)
	if repoID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	pages, err := s.ports.Artifacts.ListPages(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("listing wiki pages: %w", err)
	}

	type pageInfo struct {
		PageID     string `json:"page_id"`
		Title      string `json:"title"`
		Kind       string `json:"kind"`
		SourcePath string `json:"source_path"`
	}

	infos := make([]pageInfo, len(pages))
	for i := range pages {
		infos[i] = pageInfo{
			PageID:     pages[i].PageID,
			Title:      pages[i].Title,
			Kind:       string(pages[i].Kind),
			SourcePath: pages[i].SourcePath,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling wiki toc: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleWikiPageResource returns the markdown body of one wiki page.
func (s *Server) handleWikiPageResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Artifacts == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract ids from URI: codewiki://wiki/{repoId}/{pageId}
	repoID, pageID := extractWikiPageIDs(req.Params.URI)
	if repoID == "" || pageID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	page, err := s.ports.Artifacts.GetPage(ctx, repoID, pageID)
	if err != nil {
		return nil, fmt.Errorf("getting wiki page: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     page.Content,
		}},
	}, nil
}

// extractWikiRepoID extracts the repository ID from a URI like
// codewiki://repositories/{repoId}/wiki.
func extractWikiRepoID(uri string) string {
	const prefix = uriScheme + "repositories/"
	const suffix = "/wiki"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}

// extractWikiPageIDs extracts the repository and page IDs from a URI like
// codewiki://wiki/{repoId}/{pageId}.
func extractWikiPageIDs(uri string) (string, string) {
	const prefix = uriScheme + "wiki/"

	if !strings.HasPrefix(uri, prefix) {
		return "", ""
	}

	rest := strings.TrimPrefix(uri, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
