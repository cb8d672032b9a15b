package storage

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nav-tracker/internal/config"
)

// Migrator applies versioned schema migrations to the tracker database.
type Migrator struct {
	databaseURL string
	sourceURL   string
}

// NewMigrator builds a migrator from Postgres configuration and the
// directory holding the migration files.
func NewMigrator(cfg *config.PostgresConfig, migrationsPath string) *Migrator {
	return &Migrator{
		databaseURL: postgresURL(cfg),
		sourceURL:   fmt.Sprintf("file://%s", migrationsPath),
	}
}

func (mg *Migrator) open() (*migrate.Migrate, error) {
	m, err := migrate.New(mg.sourceURL, mg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations. A database already at the latest
// version is not an error.
func (mg *Migrator) Up() error {
	m, err := mg.open()
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close() // nolint:errcheck // cleanup in defer
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (mg *Migrator) Down() error {
	m, err := mg.open()
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close() // nolint:errcheck // cleanup in defer
	}()

	if err := m.Steps(-1); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// Version reports the current schema version and whether the database is
// in a dirty state. A never-migrated database reports version 0.
func (mg *Migrator) Version() (uint, bool, error) {
	m, err := mg.open()
	if err != nil {
		return 0, false, err
	}
	defer func() {
		_, _ = m.Close() // nolint:errcheck // cleanup in defer
	}()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}
