package prompts

import (
	"context"
	"strings"
)

// Repository persists the whole set of supplier profiles, keyed by normalized key.
// Implementations replace the stored set on Save; there is no cross-process locking.
type Repository interface {
	Load(ctx context.Context) (map[string]Profile, error)
	Save(ctx context.Context, profiles map[string]Profile) error
}

const sqliteScheme = "sqlite://"

// OpenRepository selects a repository from a PROMPT_STORE value:
// "sqlite://<path>" opens a SQLite database, anything else is a JSON or YAML file.
func OpenRepository(location string) (Repository, error) {
	if path, ok := strings.CutPrefix(location, sqliteScheme); ok {
		return NewSQLiteRepository(path)
	}
	return NewFileRepository(location), nil
}
