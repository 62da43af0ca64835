package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"nicayne/internal/config"
	"nicayne/internal/export"
	"nicayne/internal/logger"
	"nicayne/internal/pipeline"
	"nicayne/internal/sheets"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Work with the JSON backups written before each sheet write",
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup files in BACKUP_DIR",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var backupExportCmd = &cobra.Command{
	Use:   "export [backup-file]",
	Short: "Convert a backup to CSV, XLSX or JSON",
	Example: `  nicayne backup export backups/coil_data_backup_bol_20250601_140509.json --format xlsx -o bol.xlsx`,
	Args:    cobra.ExactArgs(1),
	RunE:    runBackupExport,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [backup-file]",
	Short: "Append the coils of a backup to the sheet",
	Long: `Write the coils saved in a backup to the sheet, for example after a job
failed with WriteFailed. With SHEETS_DEDUP=true coils already in the sheet are
skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupListCmd, backupExportCmd, backupRestoreCmd)

	backupExportCmd.Flags().String("format", "csv", "Output format: json, csv or xlsx")
	backupExportCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runBackupList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("backup")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(cfg.BackupDir, "coil_data_backup_*.json"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	if len(files) == 0 {
		fmt.Printf("No backups in %s\n", cfg.BackupDir)
		return nil
	}

	fmt.Printf("%-64s %-28s %s\n", "FILE", "TIMESTAMP", "COILS")
	for _, f := range files {
		b, err := pipeline.ReadBackup(f)
		if err != nil {
			log.Warn().Err(err).Str("file", f).Msg("Skipping unreadable backup")
			continue
		}
		fmt.Printf("%-64s %-28s %d\n", filepath.Base(f), b.Timestamp, b.CoilCount)
	}
	return nil
}

func runBackupExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("backup")

	formatName, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if format == export.FormatXLSX && outputPath == "" {
		return fmt.Errorf("--output is required for xlsx")
	}

	b, err := pipeline.ReadBackup(args[0])
	if err != nil {
		return err
	}
	if b.CoilCount != len(b.Coils) {
		log.Warn().
			Int("coil_count", b.CoilCount).
			Int("coils", len(b.Coils)).
			Msg("Backup coil count does not match its contents")
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, b.Coils, format); err != nil {
		return err
	}
	return writeOutput(buf.Bytes(), outputPath, log)
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("backup")

	if _, err := os.Stat(args[0]); err != nil {
		return fmt.Errorf("backup file not found: %s", args[0])
	}
	b, err := pipeline.ReadBackup(args[0])
	if err != nil {
		return err
	}

	return withSheetWriter(func(ctx context.Context, cfg *config.Config, w *sheets.Writer) error {
		if _, err := w.EnsureHeaders(ctx); err != nil {
			return fmt.Errorf("header migration failed: %w", err)
		}
		res := w.AppendBatch(ctx, b.Coils)
		if !res.Success {
			return fmt.Errorf("restore failed: %s", res.Error)
		}

		log.Info().
			Str("file", args[0]).
			Int("rows_added", res.RowsAdded).
			Int("duplicates", res.Duplicates).
			Msg("Backup restored")
		fmt.Printf("Restored %d coils from %s (%d duplicates skipped)\n", res.RowsAdded, b.DocumentName, res.Duplicates)
		return nil
	})
}
