package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nicayne/internal/logger"
	"nicayne/pkg/models"
	"nicayne/pkg/services"
)

var batchCmd = &cobra.Command{
	Use:   "batch [folder-path]",
	Short: "Process all BOL PDFs in a folder",
	Long: `Run the extraction job for every PDF in a folder using a worker pool.

Each PDF is an independent job with its own temporary directory, backup file
and sheet write. Results are printed as they complete and summarized at the end.

Optional environment variables:
  BATCH_WORKERS - Number of parallel workers (default: CPU count, at most 4)`,
	Example: `  # Process a folder with the default profile
  nicayne batch ./incoming

  # Use a supplier profile, include subfolders, write all job results as JSON
  nicayne batch ./incoming --supplier nucor --recursive --json -o results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// workerJob is one PDF queued for a worker.
type workerJob struct {
	FilePath string
	Index    int
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("supplier", "s", "default", "Supplier prompt profile for every PDF")
	batchCmd.Flags().BoolP("recursive", "r", false, "Include PDFs in subfolders")
	batchCmd.Flags().StringP("output", "o", "", "Write job results as JSON to this file")
	batchCmd.Flags().Bool("json", false, "Print job results as JSON instead of progress lines")
	batchCmd.Flags().Int("workers", 0, "Number of parallel workers (overrides BATCH_WORKERS)")
	batchCmd.Flags().Int("timeout", 3600, "Timeout for the whole batch in seconds")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	folderPath := args[0]
	supplier, _ := cmd.Flags().GetString("supplier")
	recursive, _ := cmd.Flags().GetBool("recursive")
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	workers, _ := cmd.Flags().GetInt("workers")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if err := cfg.ValidateForProcessing(); err != nil {
		return err
	}
	if workers <= 0 {
		workers = workerCount(cfg.BatchWorkers)
	}

	pdfFiles, err := findPDFFiles(folderPath, recursive)
	if err != nil {
		return fmt.Errorf("failed to find PDF files: %w", err)
	}
	if len(pdfFiles) == 0 {
		fmt.Println("No PDF files found in folder.")
		return nil
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	var closers cleanup
	defer closers.run(log)

	orchestrator, err := newOrchestrator(ctx, cfg, &closers, log)
	if err != nil {
		return handleSetupError(err, log)
	}

	log.Info().
		Str("folder", folderPath).
		Str("supplier", supplier).
		Int("files", len(pdfFiles)).
		Int("workers", workers).
		Msg("Starting batch processing")

	if !jsonOutput {
		fmt.Printf("Processing %d PDFs with %d workers...\n\n", len(pdfFiles), workers)
	}

	results := processPDFsInParallel(ctx, orchestrator, pdfFiles, supplier, workers, !jsonOutput, log)

	successCount, errorCount, coils := 0, 0, 0
	for _, r := range results {
		if r.Success {
			successCount++
		} else {
			errorCount++
		}
		coils += r.CoilsProcessed
	}

	if jsonOutput || outputPath != "" {
		data, err := marshalJSON(results, log)
		if err != nil {
			return err
		}
		if err := writeOutput(data, outputPath, log); err != nil {
			return err
		}
	}
	if !jsonOutput {
		fmt.Println()
		fmt.Println(strings.Repeat("=", 50))
		fmt.Printf("Succeeded: %d\n", successCount)
		if errorCount > 0 {
			fmt.Printf("Failed:    %d\n", errorCount)
		}
		fmt.Printf("Coils:     %d\n", coils)
		fmt.Println(strings.Repeat("=", 50))
	}

	log.Info().
		Int("total", len(pdfFiles)).
		Int("success", successCount).
		Int("errors", errorCount).
		Int("coils", coils).
		Msg("Batch processing completed")

	if errorCount > 0 {
		return fmt.Errorf("%d of %d documents failed", errorCount, len(pdfFiles))
	}
	return nil
}

// processPDFsInParallel runs one job per PDF on a worker pool. Results keep
// the order of pdfFiles.
func processPDFsInParallel(ctx context.Context, svc services.ExtractionService, pdfFiles []string, supplier string, numWorkers int, progress bool, log zerolog.Logger) []*models.JobResult {
	jobs := make(chan workerJob, len(pdfFiles))
	results := make([]*models.JobResult, len(pdfFiles))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				log.Debug().
					Int("worker", workerID).
					Str("file", job.FilePath).
					Int("index", job.Index+1).
					Msg("Worker processing PDF")

				result := svc.Process(ctx, job.FilePath, supplier)
				results[job.Index] = result

				mu.Lock()
				processedCount++
				if progress {
					fmt.Printf("[%d/%d] %s - %s", processedCount, len(pdfFiles), filepath.Base(job.FilePath), statusLabel(result))
					if result.Success {
						fmt.Printf(" (%d coils", result.CoilsProcessed)
						if len(result.FailedPages) > 0 {
							fmt.Printf(", failed pages %v", result.FailedPages)
						}
						fmt.Print(")")
					} else {
						fmt.Printf(" (%s)", result.Error)
					}
					fmt.Println()
				}
				mu.Unlock()
			}
		}(w)
	}

	for i, pdfFile := range pdfFiles {
		jobs <- workerJob{FilePath: pdfFile, Index: i}
	}
	close(jobs)

	wg.Wait()
	return results
}

func statusLabel(res *models.JobResult) string {
	switch {
	case !res.Success:
		return "FAILED"
	case res.ErrorKind != "" || len(res.FailedPages) > 0 || (res.CountValidation != nil && !res.CountValidation.Match):
		return "WARNING"
	default:
		return "OK"
	}
}
