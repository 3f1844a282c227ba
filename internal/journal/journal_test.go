package journal

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry(category string) *Entry {
	return &Entry{
		ImageName:      "hand.png",
		Region:         "limb",
		Pathology:      category == "fracture",
		Category:       category,
		Confidence:     0.9,
		Source:         "vision:org/primary",
		ProcessingTime: 1500 * time.Millisecond,
	}
}

func TestOpen_Disabled(t *testing.T) {
	log, _ := test.NewNullLogger()
	s, err := Open(context.Background(), Config{}, log)
	require.NoError(t, err)

	assert.NoError(t, s.Record(context.Background(), sampleEntry("normal")))
	summary, err := s.Summary(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, summary)
	assert.NoError(t, s.Close())
}

func TestOpen_UnknownDriver(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := Open(context.Background(), Config{Driver: "mysql"}, log)
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	log, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "data", "journal.db")
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: path}, log)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	for _, c := range []string{"fracture", "normal", "fracture"} {
		e := sampleEntry(c)
		require.NoError(t, s.Record(ctx, e))
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}

	summary, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Total)
	assert.Equal(t, map[string]int64{"fracture": 2, "normal": 1}, summary.ByCategory)
}

func TestPostgresStore_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	e := sampleEntry("fracture")
	e.ID = uuid.New()
	e.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analyses")).
		WithArgs(e.ID, "hand.png", "limb", true, "fracture", 0.9, "vision:org/primary", int64(1500), e.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Record(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO analyses").WillReturnError(errors.New("connection refused"))

	err = NewPostgresStore(db).Record(context.Background(), sampleEntry("normal"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record analysis")
}

func TestPostgresStore_Summary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"category", "count"}).
		AddRow("arthritis", 1).
		AddRow("normal", 4)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category, COUNT(*) FROM analyses GROUP BY category")).WillReturnRows(rows)

	summary, err := NewPostgresStore(db).Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.Total)
	assert.Equal(t, int64(4), summary.ByCategory["normal"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
