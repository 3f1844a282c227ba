package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database whose schema is already migrated.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

// OpenPostgres connects, pings and migrates the journal database.
func OpenPostgres(ctx context.Context, cfg Config, log *logrus.Logger) (Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	if err := migrateUp(cfg.DSN, cfg.MigrationsPath, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("Connected to journal database")
	return NewPostgresStore(db), nil
}

func migrateUp(dsn, path string, log *logrus.Logger) error {
	m, err := migrate.New("file://"+path, dsn)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("Journal schema is up to date")
			return nil
		}
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.WithError(err).Warn("Could not read journal schema version")
		return nil
	}
	log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Journal migrations applied")
	return nil
}

func (s *postgresStore) Record(ctx context.Context, e *Entry) error {
	prepare(e)

	query := `
		INSERT INTO analyses (id, image_name, region, pathology, category, confidence, source, processing_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.ImageName, e.Region, e.Pathology, e.Category, e.Confidence, e.Source,
		e.ProcessingTime.Milliseconds(), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

func (s *postgresStore) Summary(ctx context.Context) (*Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM analyses GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal summary: %w", err)
	}
	defer rows.Close()
	return scanSummary(rows)
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}
