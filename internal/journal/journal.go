// Package journal keeps an audit trail of completed analyses: what was
// classified, how confident, and which source described the image. It never
// stores the report itself, patient data, or the image digest.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DriverNone     = ""
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Entry is one journaled analysis.
type Entry struct {
	ID             uuid.UUID
	ImageName      string
	Region         string
	Pathology      bool
	Category       string
	Confidence     float64
	Source         string
	ProcessingTime time.Duration
	CreatedAt      time.Time
}

// Summary aggregates the journal for the stats endpoint.
type Summary struct {
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"byCategory"`
}

type Store interface {
	Record(ctx context.Context, e *Entry) error
	// Summary returns nil when the journal is disabled.
	Summary(ctx context.Context) (*Summary, error)
	Close() error
}

type Config struct {
	Driver         string
	DSN            string
	MigrationsPath string
}

// Open connects the configured backend. An empty driver yields a store that
// records nothing.
func Open(ctx context.Context, cfg Config, log *logrus.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverNone:
		return Disabled{}, nil
	case DriverPostgres:
		return OpenPostgres(ctx, cfg, log)
	case DriverSQLite:
		return OpenSQLite(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

// Disabled is the no-op store.
type Disabled struct{}

func (Disabled) Record(context.Context, *Entry) error      { return nil }
func (Disabled) Summary(context.Context) (*Summary, error) { return nil, nil }
func (Disabled) Close() error                              { return nil }

// prepare fills the generated fields of an entry.
func prepare(e *Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSummary(rows rowScanner) (*Summary, error) {
	s := &Summary{ByCategory: map[string]int64{}}
	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan journal summary: %w", err)
		}
		s.ByCategory[category] = n
		s.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal summary: %w", err)
	}
	return s, nil
}
