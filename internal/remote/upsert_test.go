package remote

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUpsertPatients tests the patients batch upsert with pgxmock
func TestUpsertPatients(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	birth := time.Date(1985, 6, 20, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	records := []PatientRecord{
		{
			ID: 1, Nom: "Alami", Prenom: "Yasmine", DateNaissance: &birth,
			Telephone: "0612345678", Assurance: "CNSS",
			CreatedAt: &updated, UpdatedAt: &updated,
		},
		{ID: 2, Nom: "Bennani", Prenom: "Karim", UpdatedAt: &updated},
	}

	b := mock.ExpectBatch()
	b.ExpectExec("INSERT INTO patients").
		WithArgs(int64(1), "Alami", "Yasmine", &birth, "0612345678", "", "CNSS", "", "", "", "", &updated, &updated).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	b.ExpectExec("INSERT INTO patients").
		WithArgs(int64(2), "Bennani", "Karim", (*time.Time)(nil), "", "", "", "", "", "", "", (*time.Time)(nil), &updated).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = UpsertPatients(ctx, mock, records)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpsertPatientsEmpty tests that an empty slice is a no-op without a round-trip
func TestUpsertPatientsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = UpsertPatients(context.Background(), mock, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpsertVisits tests the visits batch upsert with pgxmock
func TestUpsertVisits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx := context.Background()
	visitDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 10, 16, 45, 0, 0, time.UTC)

	records := []VisitRecord{
		{
			ID: 10, Date: &visitDate, Dent: "16", Acte: "Detartrage",
			Prix: 300, Paye: 100, Reste: 200, PatientID: 1, UpdatedAt: &updated,
		},
	}

	b := mock.ExpectBatch()
	b.ExpectExec("INSERT INTO visits").
		WithArgs(int64(10), &visitDate, "16", "Detartrage", 300.0, 100.0, 200.0, int64(1), &updated).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = UpsertVisits(ctx, mock, records)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpsertVisitsBatchError tests that a failed batch surfaces the error
func TestUpsertVisitsBatchError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	updated := time.Date(2024, 1, 10, 16, 45, 0, 0, time.UTC)
	records := []VisitRecord{{ID: 10, PatientID: 99, UpdatedAt: &updated}}

	b := mock.ExpectBatch()
	b.ExpectExec("INSERT INTO visits").
		WithArgs(int64(10), (*time.Time)(nil), "", "", 0.0, 0.0, 0.0, int64(99), &updated).
		WillReturnError(assert.AnError)

	err = UpsertVisits(context.Background(), mock, records)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert visits batch")
}
