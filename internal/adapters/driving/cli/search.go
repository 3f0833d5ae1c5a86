package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

var (
	searchLimit int
	searchRepos []string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search across indexed repositories",
	Long: `Performs full-text search over every indexed repository.
Results carry the owning repository, the source path and highlighted
snippets around the matched terms.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of results")
	searchCmd.Flags().StringSliceVar(&searchRepos, "repo", nil, "restrict to repository IDs (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{
		Limit:   searchLimit,
		RepoIDs: searchRepos,
	}

	results, err := searchService.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		repo := r.RepoName
		if repo == "" {
			repo = r.Chunk.RepoID
		}

		cmd.Printf("  [%d] %s:%s (%.2f)\n", i+1, repo, r.Chunk.Path, r.Score)
		for _, snippet := range r.Highlights {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}

	return nil
}
