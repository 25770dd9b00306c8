package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator wraps golang-migrate with logging around schema changes.
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New builds a Migrator over an open postgres connection, reading
// migration pairs from migrationsPath.
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}

	return &Migrator{m: m, log: logger}, nil
}

// apply normalises a migrate call result: (false, nil) means there was
// nothing to do.
func (mg *Migrator) apply(err error) (bool, error) {
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info("No schema changes to apply")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (mg *Migrator) logVersion(msg string) {
	version, dirty, err := mg.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		mg.log.Warn("Could not read migration version", zap.Error(err))
		return
	}
	mg.log.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	mg.log.Info("Running migrations up")
	applied, err := mg.apply(mg.m.Up())
	if err != nil {
		return fmt.Errorf("migration up: %w", err)
	}
	if applied {
		mg.logVersion("Migrations completed")
	}
	return nil
}

// Down rolls back every applied migration.
func (mg *Migrator) Down() error {
	mg.log.Info("Running migrations down")
	applied, err := mg.apply(mg.m.Down())
	if err != nil {
		return fmt.Errorf("migration down: %w", err)
	}
	if applied {
		mg.log.Info("All migrations rolled back")
	}
	return nil
}

// Steps applies n migrations; a negative n rolls back.
func (mg *Migrator) Steps(n int) error {
	mg.log.Info("Running migration steps", zap.Int("steps", n))
	applied, err := mg.apply(mg.m.Steps(n))
	if err != nil {
		return fmt.Errorf("migration steps: %w", err)
	}
	if applied {
		mg.logVersion("Migration steps completed")
	}
	return nil
}

// GoTo migrates up or down to an exact version.
func (mg *Migrator) GoTo(version uint) error {
	mg.log.Info("Migrating to version", zap.Uint("target_version", version))
	applied, err := mg.apply(mg.m.Migrate(version))
	if err != nil {
		return fmt.Errorf("migration to version %d: %w", version, err)
	}
	if applied {
		mg.logVersion("Migration to version completed")
	}
	return nil
}

// Version reports the current schema version. A database with no
// applied migrations reports version 0.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// Force overwrites the recorded version without running migrations.
// Only for repairing a dirty schema state.
func (mg *Migrator) Force(version int) error {
	mg.log.Warn("Forcing migration version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes everything in the database.
func (mg *Migrator) Drop() error {
	mg.log.Warn("Dropping database, all data will be lost")
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	return nil
}

// Close releases the source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return fmt.Errorf("close migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}
