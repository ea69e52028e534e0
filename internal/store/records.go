package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Patient is a row of the local patients table. Optional columns scan to
// their zero value.
type Patient struct {
	ID                  int64
	Nom                 string
	Prenom              string
	DateNaissance       time.Time
	Telephone           string
	NumeroCarteNational string
	Assurance           string
	Profession          string
	Maladie             string
	Observation         string
	XrayPhoto           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Visit is a row of the local visits table.
type Visit struct {
	ID        int64
	Date      time.Time
	Dent      string
	Acte      string
	Prix      float64
	Paye      float64
	Reste     float64
	PatientID int64
	UpdatedAt time.Time
}

// PatientsModifiedSince returns patients with updated_at strictly after the
// given watermark, in primary key order. The query runs in its own
// short-lived transaction, never held across a network round-trip.
func (s *Store) PatientsModifiedSince(ctx context.Context, since time.Time) ([]Patient, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT id, nom, prenom, date_naissance, telephone, numero_carte_national,
		assurance, profession, maladie, observation, xray_photo, created_at, updated_at
		FROM patients
		WHERE updated_at > ?
		ORDER BY id ASC`

	rows, err := tx.QueryContext(ctx, query, FormatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		var naissance, createdAt, updatedAt sql.NullString
		var nom, prenom, telephone, carte, assurance sql.NullString
		var profession, maladie, observation, xray sql.NullString
		err := rows.Scan(&p.ID, &nom, &prenom, &naissance, &telephone, &carte,
			&assurance, &profession, &maladie, &observation, &xray, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning patient row: %w", err)
		}

		p.Nom = nom.String
		p.Prenom = prenom.String
		p.Telephone = telephone.String
		p.NumeroCarteNational = carte.String
		p.Assurance = assurance.String
		p.Profession = profession.String
		p.Maladie = maladie.String
		p.Observation = observation.String
		p.XrayPhoto = xray.String

		if p.DateNaissance, err = parseNullTime(naissance); err != nil {
			return nil, fmt.Errorf("patient %d: %w", p.ID, err)
		}
		if p.CreatedAt, err = parseNullTime(createdAt); err != nil {
			return nil, fmt.Errorf("patient %d: %w", p.ID, err)
		}
		if p.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
			return nil, fmt.Errorf("patient %d: %w", p.ID, err)
		}

		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patient rows: %w", err)
	}

	return patients, nil
}

// VisitsModifiedSince returns visits with updated_at strictly after the given
// watermark, in primary key order.
func (s *Store) VisitsModifiedSince(ctx context.Context, since time.Time) ([]Visit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT id, date, dent, acte, prix, paye, reste, patient_id, updated_at
		FROM visits
		WHERE updated_at > ?
		ORDER BY id ASC`

	rows, err := tx.QueryContext(ctx, query, FormatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var v Visit
		var date, updatedAt, dent, acte sql.NullString
		var prix, paye, reste sql.NullFloat64
		err := rows.Scan(&v.ID, &date, &dent, &acte, &prix, &paye, &reste, &v.PatientID, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning visit row: %w", err)
		}

		v.Dent = dent.String
		v.Acte = acte.String
		v.Prix = prix.Float64
		v.Paye = paye.Float64
		v.Reste = reste.Float64

		if v.Date, err = parseNullTime(date); err != nil {
			return nil, fmt.Errorf("visit %d: %w", v.ID, err)
		}
		if v.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
			return nil, fmt.Errorf("visit %d: %w", v.ID, err)
		}

		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visit rows: %w", err)
	}

	return visits, nil
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid {
		return time.Time{}, nil
	}
	return ParseTime(s.String)
}
