package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

var wikiCmd = &cobra.Command{
	Use:   "wiki",
	Short: "Browse generated wiki pages",
}

var wikiTocCmd = &cobra.Command{
	Use:   "toc [repo-id]",
	Short: "Show a repository's wiki table of contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runWikiToc,
}

var wikiShowCmd = &cobra.Command{
	Use:   "show [repo-id] [page-id]",
	Short: "Print one wiki page",
	Args:  cobra.ExactArgs(2),
	RunE:  runWikiShow,
}

func init() {
	wikiCmd.AddCommand(wikiTocCmd)
	wikiCmd.AddCommand(wikiShowCmd)
	rootCmd.AddCommand(wikiCmd)
}

func runWikiToc(cmd *cobra.Command, args []string) error {
	if artifactStore == nil {
		return errors.New("artifact store not configured")
	}

	pages, err := artifactStore.ListPages(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list wiki pages: %w", err)
	}

	if len(pages) == 0 {
		cmd.Println("No wiki pages. Run an analysis first.")
		return nil
	}

	for _, page := range pages {
		cmd.Printf("%s  %-9s %s\n", page.PageID, page.Kind, page.Title)
	}
	return nil
}

func runWikiShow(cmd *cobra.Command, args []string) error {
	if artifactStore == nil {
		return errors.New("artifact store not configured")
	}

	page, err := artifactStore.GetPage(cmd.Context(), args[0], args[1])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("page %s not found", args[1])
		}
		return fmt.Errorf("get wiki page: %w", err)
	}

	cmd.Printf("# %s\n\n", page.Title)
	cmd.Println(page.Content)
	if len(page.SourceRefs) > 0 {
		cmd.Println()
		cmd.Printf("Generated from %s (%d source chunks)\n", page.SourcePath, len(page.SourceRefs))
	}
	return nil
}
