package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

var (
	analyzeIncremental bool
	analyzePriority    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [repo-id]",
	Short: "Enqueue an analysis job for a repository",
	Long: `Enqueue an analysis job that chunks, embeds and indexes the
repository and regenerates its wiki pages.

A full analysis processes every file. With --incremental only files
changed since the last successful scan are processed; when there is no
previous scan the run behaves like a full one.

The job runs on a worker; start one with 'codewiki worker'.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeIncremental, "incremental", false, "only process files changed since the last scan")
	analyzeCmd.Flags().StringVar(&analyzePriority, "priority", "normal", "queue priority: high, normal or low")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}

	jobType := domain.JobTypeFull
	if analyzeIncremental {
		jobType = domain.JobTypeIncremental
	}

	var priority domain.JobPriority
	switch strings.ToLower(analyzePriority) {
	case "high":
		priority = domain.PriorityHigh
	case "", "normal":
		priority = domain.PriorityNormal
	case "low":
		priority = domain.PriorityLow
	default:
		return fmt.Errorf("invalid priority %q (want high, normal or low)", analyzePriority)
	}

	jobID, err := analysisService.EnqueueAnalysis(cmd.Context(), args[0], jobType, domain.TriggerManual, priority)
	if err != nil {
		if errors.Is(err, domain.ErrConflictingJob) {
			return fmt.Errorf("repository is already being analysed: %w", err)
		}
		return fmt.Errorf("enqueue analysis: %w", err)
	}

	cmd.Printf("Enqueued %s analysis job %s\n", jobType, jobID)
	cmd.Println("Check progress with: codewiki jobs status " + jobID)
	return nil
}
