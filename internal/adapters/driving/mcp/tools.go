package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string   `json:"query" jsonschema:"the search query to find code and documentation"`
	Limit   int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 20)"`
	RepoIDs []string `json:"repo_ids,omitempty" jsonschema:"restrict the search to these repository IDs"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	RepoID     string   `json:"repo_id"`
	RepoName   string   `json:"repo_name,omitempty"`
	Path       string   `json:"path"`
	ChunkIndex int      `json:"chunk_index"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
	Content    string   `json:"content,omitempty"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string   `json:"question" jsonschema:"the question to answer from indexed repositories"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default 12)"`
	RepoIDs  []string `json:"repo_ids,omitempty" jsonschema:"restrict retrieval to these repository IDs"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	Grounded  bool             `json:"grounded"`
	Citations []CitationOutput `json:"citations"`
}

// CitationOutput is one cited chunk in a grounded answer.
type CitationOutput struct {
	RepoID     string  `json:"repo_id"`
	Path       string  `json:"path"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// AnalyzeInput is the input schema for the analyze_repository tool.
type AnalyzeInput struct {
	RepoID      string `json:"repo_id" jsonschema:"the repository to analyse"`
	Incremental bool   `json:"incremental,omitempty" jsonschema:"only process files changed since the last scan"`
	Priority    string `json:"priority,omitempty" jsonschema:"queue priority: HIGH, NORMAL or LOW (default NORMAL)"`
}

// AnalyzeOutput is the output schema for the analyze_repository tool.
type AnalyzeOutput struct {
	JobID string `json:"job_id"`
}

// JobStatusInput is the input schema for the job_status tool.
type JobStatusInput struct {
	JobID string `json:"job_id" jsonschema:"the analysis job to inspect"`
}

// JobStatusOutput is the output schema for the job_status tool.
type JobStatusOutput struct {
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	ProcessedFiles int    `json:"processed_files"`
	TotalFiles     int    `json:"total_files"`
	Error          string `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search across all indexed repositories",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question about the indexed repositories with citations",
	}, s.handleAsk)

	if s.ports.Analysis != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "analyze_repository",
			Description: "Enqueue an analysis job that (re)indexes a repository",
		}, s.handleAnalyze)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "job_status",
			Description: "Inspect the progress of an analysis job",
		}, s.handleJobStatus)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{
		Limit:   input.Limit,
		RepoIDs: input.RepoIDs,
	}

	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			RepoID:     results[i].Chunk.RepoID,
			RepoName:   results[i].RepoName,
			Path:       results[i].Chunk.Path,
			ChunkIndex: results[i].Chunk.ChunkIndex,
			Score:      results[i].Score,
			Highlights: results[i].Highlights,
			Content:    results[i].Chunk.Content,
		}
	}

	return nil, output, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	opts := domain.RAGOptions{
		TopK:    input.TopK,
		RepoIDs: input.RepoIDs,
	}

	answer, err := s.ports.Search.RAGSearch(ctx, input.Question, opts)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:    answer.Answer,
		Grounded:  answer.Grounded,
		Citations: make([]CitationOutput, len(answer.Citations)),
	}
	for i, c := range answer.Citations {
		output.Citations[i] = CitationOutput{
			RepoID:     c.RepoID,
			Path:       c.Path,
			ChunkIndex: c.ChunkIndex,
			Score:      c.Score,
		}
	}

	return nil, output, nil
}

// handleAnalyze handles the analyze_repository tool invocation.
func (s *Server) handleAnalyze(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeInput,
) (*mcp.CallToolResult, AnalyzeOutput, error) {
	jobType := domain.JobTypeFull
	if input.Incremental {
		jobType = domain.JobTypeIncremental
	}

	priority := domain.JobPriority(strings.ToUpper(input.Priority))
	jobID, err := s.ports.Analysis.EnqueueAnalysis(ctx, input.RepoID, jobType, domain.TriggerManual, priority)
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}

	return nil, AnalyzeOutput{JobID: jobID}, nil
}

// handleJobStatus handles the job_status tool invocation.
func (s *Server) handleJobStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobStatusInput,
) (*mcp.CallToolResult, JobStatusOutput, error) {
	job, err := s.ports.Analysis.JobStatus(ctx, input.JobID)
	if err != nil {
		return nil, JobStatusOutput{}, err
	}

	return nil, JobStatusOutput{
		Status:         string(job.Status),
		Progress:       job.Progress,
		ProcessedFiles: job.ProcessedFiles,
		TotalFiles:     job.TotalFiles,
		Error:          job.Error,
	}, nil
}
