package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nicayne/internal/logger"
	"nicayne/internal/pdfsplit"
)

var validateCmd = &cobra.Command{
	Use:   "validate [pdf-file]",
	Short: "Check a PDF before processing",
	Long: `Report whether a PDF can be processed: page count, file size, encryption
and whether the first pages carry a text layer. Scans without a text layer
need OCR.`,
	Example: `  nicayne validate bol.pdf
  nicayne validate bol.pdf --json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().Bool("json", false, "Output as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("validate")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	splitter := pdfsplit.NewSplitter(cfg.TempDir, cfg.MaxFileSizeBytes())
	report := splitter.Validate(args[0])

	if jsonOutput {
		data, err := marshalJSON(report, log)
		if err != nil {
			return err
		}
		if err := writeOutput(data, "", log); err != nil {
			return err
		}
	} else {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("File:       %s\n", args[0]))
		b.WriteString(fmt.Sprintf("Valid:      %t\n", report.IsValid))
		b.WriteString(fmt.Sprintf("Pages:      %d\n", report.PageCount))
		b.WriteString(fmt.Sprintf("Size:       %d bytes\n", report.FileSize))
		b.WriteString(fmt.Sprintf("Encrypted:  %t\n", report.IsEncrypted))
		b.WriteString(fmt.Sprintf("Text layer: %t\n", report.HasText))
		if report.PageCount > cfg.SinglePageThreshold {
			b.WriteString(fmt.Sprintf("Mode:       multi-page (split into %d pages)\n", min(report.PageCount, cfg.MaxPages)))
		} else if report.IsValid {
			b.WriteString("Mode:       single page\n")
		}
		if report.Error != "" {
			b.WriteString(fmt.Sprintf("Error:      %s\n", report.Error))
		}
		fmt.Print(b.String())
	}

	if !report.IsValid {
		return fmt.Errorf("%s cannot be processed: %s", args[0], report.Error)
	}
	return nil
}
