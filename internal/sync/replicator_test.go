package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentistedb/cloudsync/internal/store"
)

// anyArgs returns n pgxmock placeholders for batch expectations where only
// the statement and row count matter.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func openReplicatorStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "patients.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.DB().Exec(`
		CREATE TABLE patients (
			id INTEGER PRIMARY KEY,
			nom TEXT, prenom TEXT, date_naissance TEXT, telephone TEXT,
			numero_carte_national TEXT, assurance TEXT, profession TEXT,
			maladie TEXT, observation TEXT, xray_photo TEXT,
			created_at TEXT, updated_at TEXT
		);
		CREATE TABLE visits (
			id INTEGER PRIMARY KEY,
			date TEXT, dent TEXT, acte TEXT,
			prix REAL, paye REAL, reste REAL,
			patient_id INTEGER NOT NULL,
			updated_at TEXT
		);
	`)
	require.NoError(t, err)
	return s
}

func TestPatientReplicatorShipsModifiedRows(t *testing.T) {
	s := openReplicatorStore(t)
	ctx := context.Background()

	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{time.Hour, 2 * time.Hour, 3 * time.Hour} {
		_, err := s.DB().Exec(
			`INSERT INTO patients (id, nom, updated_at) VALUES (?, ?, ?)`,
			i+1, "Patient", store.FormatTime(watermark.Add(offset)))
		require.NoError(t, err)
	}

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := mock.ExpectBatch()
	for range 3 {
		b.ExpectExec("INSERT INTO patients").
			WithArgs(anyArgs(13)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	r := NewPatientReplicator(s, mock)
	before := time.Now().UTC()
	newWatermark, count, err := r.Replicate(ctx, watermark)

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.False(t, newWatermark.Before(before), "new watermark is the cycle start, not a row timestamp")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientReplicatorNothingToSync(t *testing.T) {
	s := openReplicatorStore(t)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewPatientReplicator(s, mock)
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newWatermark, count, err := r.Replicate(context.Background(), watermark)

	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, watermark, newWatermark, "empty cycle must not move the watermark")
	assert.NoError(t, mock.ExpectationsWereMet(), "no remote round-trip for an empty cycle")
}

func TestPatientReplicatorRemoteFailureKeepsWatermark(t *testing.T) {
	s := openReplicatorStore(t)

	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.DB().Exec(
		`INSERT INTO patients (id, nom, updated_at) VALUES (1, 'Alami', ?)`,
		store.FormatTime(watermark.Add(time.Hour)))
	require.NoError(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := mock.ExpectBatch()
	b.ExpectExec("INSERT INTO patients").WithArgs(anyArgs(13)...).WillReturnError(assert.AnError)

	r := NewPatientReplicator(s, mock)
	newWatermark, count, err := r.Replicate(context.Background(), watermark)

	assert.Error(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, watermark, newWatermark, "failed cycle must not move the watermark")
}

func TestVisitReplicatorShipsModifiedRows(t *testing.T) {
	s := openReplicatorStore(t)
	ctx := context.Background()

	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.DB().Exec(
		`INSERT INTO visits (id, date, dent, acte, prix, paye, reste, patient_id, updated_at)
		 VALUES (10, ?, '16', 'Detartrage', 300, 100, 200, 1, ?)`,
		store.FormatTime(watermark), store.FormatTime(watermark.Add(time.Hour)))
	require.NoError(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := mock.ExpectBatch()
	b.ExpectExec("INSERT INTO visits").
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := NewVisitReplicator(s, mock)
	newWatermark, count, err := r.Replicate(ctx, watermark)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, newWatermark.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestEngineEndToEnd runs a real cycle: local SQLite rows through the
// coordinator into a mocked remote, advancing the durable cursor.
func TestEngineEndToEnd(t *testing.T) {
	s := openReplicatorStore(t)
	ctx := context.Background()

	cursors := store.NewCursorStore(s)
	require.NoError(t, cursors.EnsureSchema(ctx))
	require.NoError(t, cursors.Set(ctx, "patients", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	for i := 1; i <= 3; i++ {
		_, err := s.DB().Exec(
			`INSERT INTO patients (id, nom, updated_at) VALUES (?, 'Patient', ?)`,
			i, store.FormatTime(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
		require.NoError(t, err)
	}

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := mock.ExpectBatch()
	for range 3 {
		b.ExpectExec("INSERT INTO patients").
			WithArgs(anyArgs(13)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	engine := NewEngine(DefaultConfig(), cursors,
		NewPatientReplicator(s, mock),
		NewVisitReplicator(s, mock),
	)

	before := time.Now().UTC()
	result := engine.SyncNow(ctx, false)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, map[string]int{"patients": 3, "visits": 0}, result.RecordsSynced)
	assert.NoError(t, mock.ExpectationsWereMet())

	cursor, err := cursors.Get(ctx, "patients")
	require.NoError(t, err)
	assert.False(t, cursor.Before(before), "cursor advanced to at least the cycle start")
}
