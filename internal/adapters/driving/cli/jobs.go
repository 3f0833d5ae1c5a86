package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect analysis jobs",
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the status of one job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsListCmd = &cobra.Command{
	Use:   "list [repo-id]",
	Short: "List jobs for a repository, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsList,
}

func init() {
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsListCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}

	job, err := analysisService.JobStatus(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("job %s not found", args[0])
		}
		return fmt.Errorf("job status: %w", err)
	}

	cmd.Printf("Job %s\n", job.ID)
	cmd.Printf("  Repository: %s\n", job.RepoID)
	cmd.Printf("  Type:       %s (%s)\n", job.Type, job.Trigger)
	cmd.Printf("  Status:     %s (%d%%)\n", job.Status, job.Progress)
	if job.TotalFiles > 0 {
		cmd.Printf("  Files:      %d/%d\n", job.ProcessedFiles, job.TotalFiles)
	}
	if job.TargetSHA != "" {
		cmd.Printf("  Revision:   %s\n", shortSHA(job.TargetSHA))
	}
	if job.Error != "" {
		cmd.Printf("  Error:      %s\n", job.Error)
	}
	if !job.FinishedAt.IsZero() {
		cmd.Printf("  Finished:   %s\n", job.FinishedAt.Format(time.RFC3339))
	}
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}

	jobs, err := analysisService.ListJobs(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}

	for _, job := range jobs {
		line := fmt.Sprintf("%s  %-11s %s (%d%%)", job.ID, job.Type, job.Status, job.Progress)
		if job.Error != "" {
			line += "  " + job.Error
		}
		cmd.Println(line)
	}
	return nil
}
