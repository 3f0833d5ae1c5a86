package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

var (
	repoName   string
	repoBranch string
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage registered repositories",
}

var repoRegisterCmd = &cobra.Command{
	Use:   "register [remote-url]",
	Short: "Register a repository for analysis",
	Long: `Register a repository so it can be analysed and indexed.

The remote can be an https URL, an ssh remote or plain owner/name.
Registration only records the repository; run 'codewiki analyze' to
build its index.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepoRegister,
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	RunE:  runRepoList,
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove [repo-id]",
	Short: "Remove a repository",
	Long: `Mark a repository as deleted.

The record is kept so job history stays queryable, but the repository
no longer appears in listings and new analysis requests are rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepoRemove,
}

func init() {
	repoRegisterCmd.Flags().StringVar(&repoName, "name", "", "display name (defaults to owner/name)")
	repoRegisterCmd.Flags().StringVar(&repoBranch, "branch", "main", "default branch to analyse")
	repoCmd.AddCommand(repoRegisterCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoRemoveCmd)
	rootCmd.AddCommand(repoCmd)
}

func runRepoRegister(cmd *cobra.Command, args []string) error {
	if repoStore == nil {
		return errors.New("repository store not configured")
	}

	remote := strings.TrimSpace(args[0])
	if remote == "" {
		return errors.New("remote URL is required")
	}

	name := repoName
	if name == "" {
		name = displayName(remote)
	}

	now := time.Now().UTC()
	repo := domain.Repository{
		ID:            uuid.New().String(),
		Provider:      domain.ProviderGitHub,
		RemoteURL:     remote,
		Name:          name,
		DefaultBranch: repoBranch,
		Status:        domain.RepoStatusReady,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := repoStore.Save(cmd.Context(), repo); err != nil {
		return fmt.Errorf("register repository: %w", err)
	}

	cmd.Printf("Registered %s\n", name)
	cmd.Printf("  ID:     %s\n", repo.ID)
	cmd.Printf("  Branch: %s\n", repo.DefaultBranch)
	return nil
}

func runRepoList(cmd *cobra.Command, _ []string) error {
	if repoStore == nil {
		return errors.New("repository store not configured")
	}

	repos, err := repoStore.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}

	if len(repos) == 0 {
		cmd.Println("No repositories registered.")
		return nil
	}

	for _, repo := range repos {
		cmd.Printf("%s  %s (%s)\n", repo.ID, repo.Name, repo.Status)
		if repo.LastScanSHA != "" {
			cmd.Printf("    last scan: %s at %s\n",
				shortSHA(repo.LastScanSHA), repo.LastScanAt.Format(time.RFC3339))
		}
	}
	return nil
}

func runRepoRemove(cmd *cobra.Command, args []string) error {
	if repoStore == nil {
		return errors.New("repository store not configured")
	}

	id := args[0]
	if err := repoStore.MarkDeleted(cmd.Context(), id); err != nil {
		return fmt.Errorf("remove repository: %w", err)
	}

	cmd.Printf("Removed %s\n", id)
	return nil
}

// displayName derives owner/name from a remote locator.
func displayName(remote string) string {
	name := strings.TrimSuffix(remote, ".git")
	name = strings.TrimPrefix(name, "https://github.com/")
	name = strings.TrimPrefix(name, "http://github.com/")
	name = strings.TrimPrefix(name, "git@github.com:")
	return strings.Trim(name, "/")
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
