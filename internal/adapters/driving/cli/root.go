// Package cli implements the cobra command surface. Commands talk to the
// core exclusively through the driving ports; wiring happens once in
// initServices.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/codewiki/internal/adapters/driven/ai"
	"github.com/custodia-labs/codewiki/internal/adapters/driven/artifact/fs"
	"github.com/custodia-labs/codewiki/internal/adapters/driven/config/file"
	githubsource "github.com/custodia-labs/codewiki/internal/adapters/driven/source/github"
	"github.com/custodia-labs/codewiki/internal/adapters/driven/source/parser"
	"github.com/custodia-labs/codewiki/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
	"github.com/custodia-labs/codewiki/internal/core/ports/driving"
	"github.com/custodia-labs/codewiki/internal/core/services"
	"github.com/custodia-labs/codewiki/internal/logger"
)

var version = "dev"

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "codewiki",
	Short: "Repository analysis and cross-repository documentation search",
	Long: `codewiki turns source repositories into a searchable knowledge base.

It clones repository content, chunks and embeds it, generates wiki
documentation pages and answers questions with citations across every
indexed repository.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verboseFlag {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// Wired dependencies. Commands check for nil so tests can swap in fakes
// without touching the real stores.
var (
	configStore      driven.ConfigStore
	repoStore        driven.RepositoryStore
	jobRegistry      driven.JobRegistry
	jobQueue         driven.JobQueue
	indexStore       driven.IndexStore
	artifactStore    driven.ArtifactStore
	repoSource       driven.RepoSource
	structuralParser driven.StructuralParser
	embeddingClient  driven.EmbeddingClient
	generationClient driven.GenerationClient

	analysisService driving.AnalysisService
	searchService   driving.SearchService

	storeCloser io.Closer
)

// Execute wires the application and runs the root command.
func Execute(v string) error {
	version = v

	if err := initServices(); err != nil {
		return err
	}
	defer closeServices()

	return rootCmd.Execute()
}

// initServices builds the adapter stack and core services. It is a no-op
// when services are already wired (tests inject fakes up front).
func initServices() error {
	if searchService != nil && analysisService != nil {
		return nil
	}

	cfg, err := file.NewConfigStore(os.Getenv("CODEWIKI_CONFIG_DIR"))
	if err != nil {
		return err
	}
	configStore = cfg

	if cfg.GetBool("verbose") || os.Getenv("CODEWIKI_VERBOSE") != "" {
		logger.SetVerbose(true)
	}

	store, err := sqlite.NewStore(cfg.GetString("storage.data_dir"))
	if err != nil {
		return err
	}
	storeCloser = store
	repoStore = store.RepositoryStore()
	jobRegistry = store.JobRegistry()
	indexStore = store.IndexStore()
	jobQueue = store.JobQueue(0)

	artifacts, err := fs.NewArtifactStore(cfg.GetString("storage.artifact_dir"))
	if err != nil {
		return err
	}
	artifactStore = artifacts

	token := cfg.GetString("github.token")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	repoSource = githubsource.NewRepoSource(context.Background(), token)
	structuralParser = parser.New()

	embeddingClient, err = buildEmbeddingClient(cfg)
	if err != nil {
		return err
	}
	generationClient, err = ai.CreateGenerationClient(ai.GenerationSettingsFromConfig(cfg))
	if err != nil {
		return err
	}

	analysisService = services.NewAnalysisService(repoStore, jobRegistry, jobQueue)
	searchService = services.NewRetrievalEngine(indexStore, repoStore, embeddingClient, generationClient)

	return nil
}

// buildEmbeddingClient creates the configured embedding client wrapped
// with a content-hash cache and a provider rate limit.
func buildEmbeddingClient(cfg driven.ConfigStore) (driven.EmbeddingClient, error) {
	client, err := ai.CreateEmbeddingClient(ai.EmbeddingSettingsFromConfig(cfg))
	if err != nil || client == nil {
		return nil, err
	}

	cached, err := ai.NewCachedEmbedder(client, cfg.GetInt("embedding.cache_size"))
	if err != nil {
		return nil, err
	}

	rps := float64(cfg.GetInt("embedding.requests_per_second"))
	if rps <= 0 {
		rps = 5
	}
	return ai.NewRateLimitedEmbedder(cached, rps, 2), nil
}

func closeServices() {
	if embeddingClient != nil {
		_ = embeddingClient.Close()
	}
	if generationClient != nil {
		_ = generationClient.Close()
	}
	if storeCloser != nil {
		_ = storeCloser.Close()
	}
}
