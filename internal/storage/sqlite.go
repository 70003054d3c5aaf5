package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// NewSQLiteRepository opens (or creates) a SQLite-backed repository at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent agent turns.
	db.SetMaxOpenConns(1)

	repo := NewSQLRepository(db, false)
	repo.closeown = true
	if err := repo.Schema(ctx, "INTEGER PRIMARY KEY AUTOINCREMENT"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}
