// Package migrations contains schema migration definitions for the cloud
// practice store.
package migrations

import (
	"context"
	"fmt"
	"sync"

	migrator "github.com/cybertec-postgresql/pgx-migrator"
	"github.com/jackc/pgx/v5"
)

// migrations holds function returning all upgrade migrations needed
var migrations func() migrator.Option = func() migrator.Option {
	return migrator.Migrations(
		&migrator.Migration{
			Name: "001_create_tables",
			Func: func(ctx context.Context, tx pgx.Tx) error {
				// Create all tables and indexes in a single transaction
				_, err := tx.Exec(ctx, `
					-- Cloud copy of the local patients table. Primary key is
					-- the local primary key, so upserts are idempotent.
					CREATE TABLE patients (
						id bigint PRIMARY KEY,
						nom text,
						prenom text,
						date_naissance date,
						telephone text,
						numero_carte_national text,
						assurance text,
						profession text,
						maladie text,
						observation text,
						xray_photo text,
						created_at timestamp with time zone,
						updated_at timestamp with time zone
					);

					-- Cloud copy of the local visits table.
					CREATE TABLE visits (
						id bigint PRIMARY KEY,
						date date,
						dent text,
						acte text,
						prix double precision NOT NULL DEFAULT 0,
						paye double precision NOT NULL DEFAULT 0,
						reste double precision NOT NULL DEFAULT 0,
						patient_id bigint NOT NULL REFERENCES patients(id),
						updated_at timestamp with time zone
					);

					-- Performance indexes
					CREATE INDEX idx_patients_updated_at ON patients(updated_at);
					CREATE INDEX idx_visits_updated_at ON visits(updated_at);
					CREATE INDEX idx_visits_patient_id ON visits(patient_id);
				`)
				return err
			},
		},
		// adding new migration here

		// &migrator.Migration{
		// 	Name: "Short description of a migration",
		// 	Func: func(ctx context.Context, tx pgx.Tx) error {
		// 		...
		// 	},
		// },
	)
}

var (
	migratorInstance *migrator.Migrator
	once             sync.Once
)

// getMigrator returns a singleton migrator instance
func getMigrator() (*migrator.Migrator, error) {
	var err error
	once.Do(func() {
		migratorInstance, err = migrator.New(
			migrations(),
			migrator.TableName("cloudsync_migrations"),
		)
	})
	return migratorInstance, err
}

// Apply applies all pending migrations to the database
func Apply(ctx context.Context, conn *pgx.Conn) error {
	m, err := getMigrator()
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Migrate(ctx, conn); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// NeedsUpgrade checks if the database needs migration
func NeedsUpgrade(ctx context.Context, conn *pgx.Conn) (bool, error) {
	m, err := getMigrator()
	if err != nil {
		return false, fmt.Errorf("failed to create migrator: %w", err)
	}

	needUpgrade, err := m.NeedUpgrade(ctx, conn)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}

	return needUpgrade, nil
}
