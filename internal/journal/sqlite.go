package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) a file-backed journal.
func OpenSQLite(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		image_name TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL,
		pathology INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL,
		confidence REAL NOT NULL,
		source TEXT NOT NULL,
		processing_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_category ON analyses(category);
	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *sqliteStore) Record(ctx context.Context, e *Entry) error {
	prepare(e)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, image_name, region, pathology, category, confidence, source, processing_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID.String(), e.ImageName, e.Region, e.Pathology, e.Category, e.Confidence, e.Source,
		e.ProcessingTime.Milliseconds(), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

func (s *sqliteStore) Summary(ctx context.Context) (*Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM analyses GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal summary: %w", err)
	}
	defer rows.Close()
	return scanSummary(rows)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
