// Package integration exercises the interview engine against a real
// PostgreSQL instance managed by testcontainers. One container serves
// the whole package; tests isolate themselves with CleanTables.
package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	postgresImage    = "postgres:16-alpine"
	testDatabaseName = "genintake_test"
	testDatabaseUser = "genintake"
	testDatabasePass = "genintake"
)

// interviewTables lists every table the engine writes, children before
// parents so truncation respects foreign keys.
var interviewTables = []string{
	"interview_messages",
	"interview_sessions",
	"assessment_records",
	"knowledge_chunks",
}

var (
	containerOnce sync.Once
	containerErr  error
	container     testcontainers.Container
	containerDSN  string
)

// TestDB hands a test a gorm connection to the shared migrated database.
type TestDB struct {
	DB *gorm.DB

	sqlDB *sql.DB
	t     *testing.T
}

// NewTestDB connects to the package's PostgreSQL container, starting it
// and applying the repo's migrations on first use. The connection closes
// with the test; the container lives until CleanupSharedContainer.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	containerOnce.Do(func() {
		containerErr = startContainer()
	})
	require.NoError(t, containerErr, "postgres test container unavailable")

	db, sqlDB := connect(t, containerDSN)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return &TestDB{DB: db, sqlDB: sqlDB, t: t}
}

// CleanupSharedContainer terminates the package's container. Call it
// from TestMain after m.Run.
func CleanupSharedContainer() {
	if container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = container.Terminate(ctx)
	container = nil
	containerDSN = ""
}

// CleanTables empties every engine table between test cases. The
// schema_migrations bookkeeping table is left alone.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	for _, table := range interviewTables {
		err := tdb.DB.Exec("TRUNCATE TABLE " + table + " CASCADE").Error
		require.NoError(tdb.t, err, "truncate %s", table)
	}
}

// CountRows returns the number of rows in a table. Dual-write assertions
// use it to check the analytics projection stays at exactly one record.
func (tdb *TestDB) CountRows(table string) int64 {
	tdb.t.Helper()

	var count int64
	err := tdb.DB.Raw(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count).Error
	require.NoError(tdb.t, err, "count rows in %s", table)
	return count
}

func startContainer() error {
	ctx := context.Background()

	pg, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase(testDatabaseName),
		tcpostgres.WithUsername(testDatabaseUser),
		tcpostgres.WithPassword(testDatabasePass),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return fmt.Errorf("start postgres: %w", err)
	}

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("postgres connection string: %w", err)
	}

	container = pg
	containerDSN = dsn
	return applyMigrations(dsn)
}

// applyMigrations brings the fresh container to the repo's current
// schema using the same migration files the deployment runs.
func applyMigrations(dsn string) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("connect for migrations: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("access connection pool: %w", err)
	}
	defer sqlDB.Close()

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// migrationsDir resolves the repo's migrations directory relative to
// this file, so tests pass regardless of the working directory.
func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("cannot resolve migrations path from caller")
	}
	dir := filepath.Join(filepath.Dir(file), "..", "..", "migrations")
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("migrations directory: %w", err)
	}
	return dir, nil
}

func connect(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormLog := logger.Default.LogMode(logger.Silent)
	if os.Getenv("GENINTAKE_TEST_DB_DEBUG") != "" {
		gormLog = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: gormLog})
	require.NoError(t, err, "connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "access connection pool")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}
