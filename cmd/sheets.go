package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"nicayne/internal/config"
	"nicayne/internal/export"
	"nicayne/internal/logger"
	"nicayne/internal/sheets"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "Inspect and maintain the inventory sheet",
	Long: `Commands for the inventory sheet configured by SHEETS_BACKEND
(google: GOOGLE_SHEET_URL and GOOGLE_SHEET_WORKSHEET; xlsx: XLSX_PATH).`,
}

var sheetsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the sheet is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSheetWriter(func(ctx context.Context, cfg *config.Config, w *sheets.Writer) error {
			if !w.VerifyConnection(ctx) {
				return fmt.Errorf("cannot reach the %s sheet backend, see the log for details", cfg.SheetsBackend)
			}
			fmt.Printf("Connected to %s backend\n", cfg.SheetsBackend)
			return nil
		})
	},
}

var sheetsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the header row up to date",
	Long: `Create the worksheet if needed and rewrite the header row when it does not
match the current columns. Existing data rows are not moved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSheetWriter(func(ctx context.Context, cfg *config.Config, w *sheets.Writer) error {
			m, err := w.EnsureHeaders(ctx)
			if err != nil {
				return fmt.Errorf("header migration failed: %w", err)
			}
			switch {
			case m.Created:
				fmt.Printf("Created worksheet %s with header\n", m.Worksheet)
			case m.HeaderReplaced:
				fmt.Printf("Replaced header of %s (previous: %v)\n", m.Worksheet, m.PreviousHeader)
			default:
				fmt.Printf("Header of %s is up to date\n", m.Worksheet)
			}
			return nil
		})
	},
}

var sheetsDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Export every coil in the sheet",
	Example: `  nicayne sheets dump --format csv -o inventory.csv
  nicayne sheets dump --format xlsx -o inventory.xlsx`,
	Args: cobra.NoArgs,
	RunE: runSheetsDump,
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
	sheetsCmd.AddCommand(sheetsVerifyCmd, sheetsMigrateCmd, sheetsDumpCmd)

	sheetsDumpCmd.Flags().String("format", "json", "Output format: json, csv or xlsx")
	sheetsDumpCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

// withSheetWriter builds the configured sheet writer for one command.
func withSheetWriter(fn func(ctx context.Context, cfg *config.Config, w *sheets.Writer) error) error {
	log := logger.WithComponent("sheets-cmd")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(120, log)
	defer cancel()

	w, err := newSheetWriter(ctx, cfg)
	if err != nil {
		return handleSetupError(err, log)
	}
	return fn(ctx, cfg, w)
}

func runSheetsDump(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("sheets-cmd")

	formatName, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if format == export.FormatXLSX && outputPath == "" {
		return fmt.Errorf("--output is required for xlsx")
	}

	return withSheetWriter(func(ctx context.Context, cfg *config.Config, w *sheets.Writer) error {
		recs, err := w.ReadRecords(ctx)
		if err != nil {
			return fmt.Errorf("failed to read sheet: %w", err)
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, recs, format); err != nil {
			return err
		}
		log.Info().Int("records", len(recs)).Str("format", string(format)).Msg("Exported sheet")
		return writeOutput(buf.Bytes(), outputPath, log)
	})
}
