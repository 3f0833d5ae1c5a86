package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

var (
	askTopK  int
	askRepos []string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed repositories",
	Long: `Answers a question using retrieval-augmented generation.

The most relevant indexed chunks are retrieved across repositories and
fed to the generation model; the answer cites exactly the chunks it was
grounded on. Requires configured embedding and generation providers.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default 12)")
	askCmd.Flags().StringSliceVar(&askRepos, "repo", nil, "restrict to repository IDs (repeatable)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.RAGOptions{
		TopK:    askTopK,
		RepoIDs: askRepos,
	}

	answer, err := searchService.RAGSearch(cmd.Context(), args[0], opts)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) || errors.Is(err, domain.ErrGenerationUnavailable) {
			return fmt.Errorf("%w (configure providers in config.toml)", err)
		}
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Answer)

	if len(answer.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, c := range answer.Citations {
			cmd.Printf("  [%d] %s:%s#%d (%.2f)\n", i+1, c.RepoID, c.Path, c.ChunkIndex, c.Score)
		}
	}
	return nil
}
