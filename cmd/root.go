package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nicayne/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "nicayne",
	Short: "Nicayne - Bill of Lading coil extraction",
	Long: `Nicayne extracts coil data from Bill of Lading PDFs and writes it to
the inventory spreadsheet.

Each PDF is validated, split into pages when needed, read through its text
layer or OCR, sent to an LLM with the supplier's prompt profile, normalized,
backed up to JSON and appended to the sheet in one batch.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
