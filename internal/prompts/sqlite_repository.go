package prompts

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const profilesSchema = `
CREATE TABLE IF NOT EXISTS supplier_profiles (
	key           TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	prompt        TEXT NOT NULL,
	active        INTEGER NOT NULL DEFAULT 1,
	created       TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT ''
);`

// SQLiteRepository stores profiles in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(profilesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Load reads every profile.
func (r *SQLiteRepository) Load(ctx context.Context) (map[string]Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, name, prompt, active, created, last_modified FROM supplier_profiles`)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]Profile)
	for rows.Next() {
		var p Profile
		var active int
		if err := rows.Scan(&p.Key, &p.Name, &p.Prompt, &active, &p.Created, &p.LastModified); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		p.Active = active != 0
		profiles[p.Key] = p
	}
	return profiles, rows.Err()
}

// Save replaces the stored set in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, profiles map[string]Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_profiles`); err != nil {
		return fmt.Errorf("clearing profiles: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO supplier_profiles (key, name, prompt, active, created, last_modified)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for key, p := range profiles {
		active := 0
		if p.Active {
			active = 1
		}
		if _, err := stmt.ExecContext(ctx, key, p.Name, p.Prompt, active, p.Created, p.LastModified); err != nil {
			return fmt.Errorf("inserting profile %s: %w", key, err)
		}
	}

	return tx.Commit()
}
