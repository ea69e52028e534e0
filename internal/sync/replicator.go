package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dentistedb/cloudsync/internal/remote"
	"github.com/dentistedb/cloudsync/internal/store"
)

// Replicator replicates exactly one entity type for one cycle. Replicate
// returns the candidate new watermark, the number of records shipped and an
// error. On failure the returned watermark equals the input, so the same rows
// are retried next cycle; the primary-key upsert keeps that duplicate-free.
type Replicator interface {
	Table() string
	Replicate(ctx context.Context, watermark time.Time) (time.Time, int, error)
}

// PatientReplicator ships locally modified patients to the cloud store.
type PatientReplicator struct {
	store *store.Store
	pool  remote.PgxIface
}

// NewPatientReplicator creates a replicator for the patients table.
func NewPatientReplicator(s *store.Store, pool remote.PgxIface) *PatientReplicator {
	return &PatientReplicator{store: s, pool: pool}
}

func (r *PatientReplicator) Table() string { return "patients" }

func (r *PatientReplicator) Replicate(ctx context.Context, watermark time.Time) (time.Time, int, error) {
	// The cycle start, not the max row timestamp, is the candidate watermark:
	// it covers rows written right at the query snapshot boundary.
	cycleStart := time.Now().UTC()

	patients, err := r.store.PatientsModifiedSince(ctx, watermark)
	if err != nil {
		return watermark, 0, fmt.Errorf("local patients read failed: %w", err)
	}
	if len(patients) == 0 {
		return watermark, 0, nil
	}

	records := make([]remote.PatientRecord, len(patients))
	for i, p := range patients {
		records[i] = patientWire(p)
	}

	err = remote.WithUpsertRetry(ctx, func() error {
		return remote.UpsertPatients(ctx, r.pool, records)
	}, "patients upsert")
	if err != nil {
		return watermark, 0, fmt.Errorf("patients upsert failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"table": r.Table(),
		"count": len(records),
	}).Info("Replicated table to cloud store")
	return cycleStart, len(records), nil
}

// VisitReplicator ships locally modified visits to the cloud store. It must
// run after the patient replicator in a cycle, so the remote side never sees
// a visit before its patient.
type VisitReplicator struct {
	store *store.Store
	pool  remote.PgxIface
}

// NewVisitReplicator creates a replicator for the visits table.
func NewVisitReplicator(s *store.Store, pool remote.PgxIface) *VisitReplicator {
	return &VisitReplicator{store: s, pool: pool}
}

func (r *VisitReplicator) Table() string { return "visits" }

func (r *VisitReplicator) Replicate(ctx context.Context, watermark time.Time) (time.Time, int, error) {
	cycleStart := time.Now().UTC()

	visits, err := r.store.VisitsModifiedSince(ctx, watermark)
	if err != nil {
		return watermark, 0, fmt.Errorf("local visits read failed: %w", err)
	}
	if len(visits) == 0 {
		return watermark, 0, nil
	}

	records := make([]remote.VisitRecord, len(visits))
	for i, v := range visits {
		records[i] = visitWire(v)
	}

	err = remote.WithUpsertRetry(ctx, func() error {
		return remote.UpsertVisits(ctx, r.pool, records)
	}, "visits upsert")
	if err != nil {
		return watermark, 0, fmt.Errorf("visits upsert failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"table": r.Table(),
		"count": len(records),
	}).Info("Replicated table to cloud store")
	return cycleStart, len(records), nil
}

// patientWire maps a local patient row to its wire record, every field named
// explicitly.
func patientWire(p store.Patient) remote.PatientRecord {
	return remote.PatientRecord{
		ID:                  p.ID,
		Nom:                 p.Nom,
		Prenom:              p.Prenom,
		DateNaissance:       timePtr(p.DateNaissance),
		Telephone:           p.Telephone,
		NumeroCarteNational: p.NumeroCarteNational,
		Assurance:           p.Assurance,
		Profession:          p.Profession,
		Maladie:             p.Maladie,
		Observation:         p.Observation,
		XrayPhoto:           p.XrayPhoto,
		CreatedAt:           timePtr(p.CreatedAt),
		UpdatedAt:           timePtr(p.UpdatedAt),
	}
}

// visitWire maps a local visit row to its wire record.
func visitWire(v store.Visit) remote.VisitRecord {
	return remote.VisitRecord{
		ID:        v.ID,
		Date:      timePtr(v.Date),
		Dent:      v.Dent,
		Acte:      v.Acte,
		Prix:      v.Prix,
		Paye:      v.Paye,
		Reste:     v.Reste,
		PatientID: v.PatientID,
		UpdatedAt: timePtr(v.UpdatedAt),
	}
}

// timePtr converts a zero time to SQL NULL.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
