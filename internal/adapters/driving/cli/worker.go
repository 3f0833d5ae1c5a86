package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/codewiki/internal/core/services"
)

var workerCount int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run analysis workers",
	Long: `Run the analysis worker pool.

Workers pull queued analysis jobs and execute the pipeline: clone,
detect changes, chunk, embed, generate docs, index, persist. The
process runs until interrupted.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerCount, "workers", 2, "number of concurrent workers")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if repoStore == nil || jobRegistry == nil || jobQueue == nil {
		return errors.New("storage not configured")
	}
	if repoSource == nil {
		return errors.New("repository source not configured")
	}

	pipeline := services.NewPipeline(
		repoStore,
		jobRegistry,
		repoSource,
		structuralParser,
		embeddingClient,
		generationClient,
		indexStore,
		artifactStore,
		pipelineConfig(),
	)

	pool := services.NewWorkerPool(jobQueue, jobRegistry, pipeline, services.WorkerConfig{
		Workers: workerCount,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Running %d workers (Ctrl+C to stop)\n", workerCount)
	err := pool.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pipelineConfig reads pipeline tuning from configuration, falling back
// to service defaults for anything unset.
func pipelineConfig() services.PipelineConfig {
	if configStore == nil {
		return services.PipelineConfig{}
	}
	return services.PipelineConfig{
		ChunkSize:        configStore.GetInt("pipeline.chunk_size"),
		ChunkOverlap:     configStore.GetInt("pipeline.chunk_overlap"),
		EmbedBatchSize:   configStore.GetInt("pipeline.embed_batch_size"),
		EmbedConcurrency: configStore.GetInt("pipeline.embed_concurrency"),
		StageAttempts:    configStore.GetInt("pipeline.stage_attempts"),
		DocContextBudget: configStore.GetInt("pipeline.doc_context_budget"),
		DocMaxTokens:     configStore.GetInt("pipeline.doc_max_tokens"),
	}
}
