package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nicayne/internal/logger"
	"nicayne/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process [pdf-file]",
	Short: "Extract coil data from a BOL PDF and write it to the inventory sheet",
	Long: `Run the full extraction job for one Bill of Lading PDF.

The PDF is validated and, when it has more pages than SINGLE_PAGE_THRESHOLD,
split into single pages that are processed in order. Each page is read through
its text layer, falling back to OCR for scans, and sent to the LLM with the
supplier's prompt profile. Coils without a coil tag, heat number or BOL number
are dropped. The normalized records are saved to a JSON backup in BACKUP_DIR
and then appended to the sheet in one batch.

A page that fails is reported in failed_pages and does not fail the job.

Required environment variables:
  OPENAI_API_KEY - OpenAI API key (or a fallback provider key)
  GOOGLE_SHEET_URL - Google Sheets URL or ID (when SHEETS_BACKEND=google)
  GOOGLE_SERVICE_ACCOUNT_KEY - Service account JSON or path (or GOOGLE_APPLICATION_CREDENTIALS)

Optional environment variables:
  FALLBACK_PROVIDER - gemini, deepseek or none (default: gemini)
  OCR_ENGINE - vision, documentai or none (default: vision)
  SHEETS_BACKEND - google or xlsx (default: google)
  SHEETS_DEDUP - skip coils already in the sheet (default: false)`,
	Example: `  # Process a BOL with the default prompt profile
  nicayne process bol.pdf

  # Use a supplier profile and print the job result as JSON
  nicayne process bol.pdf --supplier "Steel Dynamics" --json

  # Write the job result to a file
  nicayne process bol.pdf --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringP("supplier", "s", "default", "Supplier prompt profile")
	processCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	processCmd.Flags().Bool("json", false, "Output the job result as JSON")
	processCmd.Flags().Int("timeout", 600, "Processing timeout in seconds")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	supplier, _ := cmd.Flags().GetString("supplier")
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if err := cfg.ValidateForProcessing(); err != nil {
		return err
	}

	if _, err := validatePDFFile(pdfPath, cfg.MaxFileSizeBytes(), log); err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	var closers cleanup
	defer closers.run(log)

	orchestrator, err := newOrchestrator(ctx, cfg, &closers, log)
	if err != nil {
		return handleSetupError(err, log)
	}

	result := orchestrator.Process(ctx, pdfPath, supplier)

	var out []byte
	if jsonOutput {
		out, err = marshalJSON(result, log)
		if err != nil {
			return err
		}
	} else {
		out = []byte(formatJobResult(result))
	}
	if err := writeOutput(out, outputPath, log); err != nil {
		return err
	}

	// A rejected sheet write still succeeds with the records in the backup,
	// but the command must not exit cleanly.
	if !result.Success || result.ErrorKind != "" {
		return handleJobError(result)
	}
	return nil
}

// formatJobResult renders a job result for the terminal.
func formatJobResult(res *models.JobResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("=== BOL extraction: %s ===\n", res.Document))
	b.WriteString(fmt.Sprintf("Job:        %s\n", res.JobID))
	status := "success"
	if !res.Success {
		status = "failed"
	}
	b.WriteString(fmt.Sprintf("Status:     %s (%s)\n", res.State, status))
	b.WriteString(fmt.Sprintf("Supplier:   %s\n", res.Supplier))
	b.WriteString(fmt.Sprintf("Coils:      %d\n", res.CoilsProcessed))
	b.WriteString(fmt.Sprintf("Pages:      %d processed", res.PagesProcessed))
	if len(res.FailedPages) > 0 {
		b.WriteString(fmt.Sprintf(", failed %v", res.FailedPages))
	}
	if res.PagesDropped > 0 {
		b.WriteString(fmt.Sprintf(", %d dropped over MAX_PAGES", res.PagesDropped))
	}
	b.WriteString("\n")
	if res.BackupCreated {
		b.WriteString(fmt.Sprintf("Backup:     %s\n", res.BackupPath))
	}
	if res.SheetRow > 0 {
		b.WriteString(fmt.Sprintf("Sheet row:  %d\n", res.SheetRow))
	}
	if cv := res.CountValidation; cv != nil {
		match := "match"
		if !cv.Match {
			match = "MISMATCH"
		}
		b.WriteString(fmt.Sprintf("Counts:     expected %d, written %d, duplicates %d (%s)\n",
			cv.Expected, cv.Written, cv.Duplicates, match))
	}
	if res.Error != "" {
		b.WriteString(fmt.Sprintf("Error:      [%s] %s\n", res.ErrorKind, res.Error))
	}
	b.WriteString(fmt.Sprintf("Duration:   %s\n", res.Duration))

	if len(res.Data) > 0 {
		b.WriteString("\nCOIL_TAG#            HEAT_NUMBER     WEIGHT          STATUS\n")
		for _, r := range res.Data {
			b.WriteString(fmt.Sprintf("%-20s %-15s %-15s %s\n", r.CoilTag, r.HeatNumber, r.Weight, r.ValidationStatus))
		}
	}
	return b.String()
}
