package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nicayne/pkg/models"
)

const (
	backupFileLayout  = "20060102_150405"
	backupStampLayout = "2006-01-02T15:04:05.000000"
)

// Backup is the JSON file written before every sheet write, so extracted
// coils survive a failed or partial write.
type Backup struct {
	Timestamp    string                    `json:"timestamp"`
	DocumentName string                    `json:"document_name"`
	CoilCount    int                       `json:"coil_count"`
	Coils        []models.NormalizedRecord `json:"coils"`
}

// BackupFileName returns coil_data_backup_<document>_<YYYYMMDD_HHMMSS>.json.
func BackupFileName(document string, now time.Time) string {
	return fmt.Sprintf("coil_data_backup_%s_%s.json", documentStem(document), now.Format(backupFileLayout))
}

// documentStem drops directories and the extension and makes the name safe
// for a file name.
func documentStem(document string) string {
	base := filepath.Base(document)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		return "document"
	}
	return base
}

// maxBackupSuffix bounds the _N suffixes tried when a backup name is taken.
const maxBackupSuffix = 1000

// WriteBackup writes recs to dir and returns the file path. An existing
// backup is never overwritten: when another job already used the name in the
// same second, a _2, _3, ... suffix is added before the extension.
func WriteBackup(dir, document string, recs []models.NormalizedRecord, now time.Time) (string, error) {
	const op = "WriteBackup"

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%s: failed to create backup directory: %w", op, err)
	}

	if recs == nil {
		recs = []models.NormalizedRecord{}
	}
	data, err := json.MarshalIndent(Backup{
		Timestamp:    now.Format(backupStampLayout),
		DocumentName: filepath.Base(document),
		CoilCount:    len(recs),
		Coils:        recs,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode backup: %w", op, err)
	}

	f, path, err := createBackupFile(dir, BackupFileName(document, now))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("%s: failed to write backup: %w", op, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%s: failed to write backup: %w", op, err)
	}
	return path, nil
}

// createBackupFile creates name in dir exclusively, adding a numeric suffix
// while the name is taken.
func createBackupFile(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 1; i <= maxBackupSuffix; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("failed to create backup: %w", err)
		}
	}
	return nil, "", fmt.Errorf("failed to create backup: %d files named %s already exist", maxBackupSuffix, name)
}

// ReadBackup loads a backup file.
func ReadBackup(path string) (*Backup, error) {
	const op = "ReadBackup"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%s: invalid backup file %s: %w", op, path, err)
	}
	return &b, nil
}
