package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// PatientRecord is the wire form of one patient row. Every remote column is
// named explicitly; nothing is derived from reflection.
type PatientRecord struct {
	ID                  int64
	Nom                 string
	Prenom              string
	DateNaissance       *time.Time
	Telephone           string
	NumeroCarteNational string
	Assurance           string
	Profession          string
	Maladie             string
	Observation         string
	XrayPhoto           string
	CreatedAt           *time.Time
	UpdatedAt           *time.Time
}

// VisitRecord is the wire form of one visit row.
type VisitRecord struct {
	ID        int64
	Date      *time.Time
	Dent      string
	Acte      string
	Prix      float64
	Paye      float64
	Reste     float64
	PatientID int64
	UpdatedAt *time.Time
}

// UpsertPatients submits one batch upsert keyed by primary key. Re-sending
// the same rows is safe: the conflict clause makes the last write win.
func UpsertPatients(ctx context.Context, pool PgxIface, records []PatientRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO patients (id, nom, prenom, date_naissance, telephone,
			numero_carte_national, assurance, profession, maladie, observation,
			xray_photo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			nom = EXCLUDED.nom, prenom = EXCLUDED.prenom,
			date_naissance = EXCLUDED.date_naissance, telephone = EXCLUDED.telephone,
			numero_carte_national = EXCLUDED.numero_carte_national,
			assurance = EXCLUDED.assurance, profession = EXCLUDED.profession,
			maladie = EXCLUDED.maladie, observation = EXCLUDED.observation,
			xray_photo = EXCLUDED.xray_photo, created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`

	for _, r := range records {
		batch.Queue(query, r.ID, r.Nom, r.Prenom, r.DateNaissance, r.Telephone,
			r.NumeroCarteNational, r.Assurance, r.Profession, r.Maladie,
			r.Observation, r.XrayPhoto, r.CreatedAt, r.UpdatedAt)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert patients batch: %w", err)
	}

	logrus.WithField("count", len(records)).Info("Upserted patients to cloud store")
	return nil
}

// UpsertVisits submits one batch upsert for visits, keyed by primary key.
// Parent patients must already be present on the remote side; the coordinator
// guarantees the table order.
func UpsertVisits(ctx context.Context, pool PgxIface, records []VisitRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO visits (id, date, dent, acte, prix, paye, reste, patient_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date, dent = EXCLUDED.dent, acte = EXCLUDED.acte,
			prix = EXCLUDED.prix, paye = EXCLUDED.paye, reste = EXCLUDED.reste,
			patient_id = EXCLUDED.patient_id, updated_at = EXCLUDED.updated_at`

	for _, r := range records {
		batch.Queue(query, r.ID, r.Date, r.Dent, r.Acte, r.Prix, r.Paye, r.Reste,
			r.PatientID, r.UpdatedAt)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert visits batch: %w", err)
	}

	logrus.WithField("count", len(records)).Info("Upserted visits to cloud store")
	return nil
}
