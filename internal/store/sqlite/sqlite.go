// Package sqlite implements the store.Store interface backed by a local
// SQLite file. It mirrors the postgres package for development databases and
// for tests that need real SQL semantics without a server.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements store.Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// New opens the SQLite database at path and runs any pending schema
// migrations.
func New(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps the ledger and
	// chart writes from contending with each other.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListCharts(ctx context.Context) ([]*model.Chart, error) {
	return queryListCharts(ctx, s.db)
}

func (s *SQLiteStore) GetChart(ctx context.Context, id int64) (*model.Chart, error) {
	return queryGetChart(ctx, s.db, id)
}

func (s *SQLiteStore) CreateChart(ctx context.Context, chart *model.Chart) error {
	return queryCreateChart(ctx, s.db, chart)
}

func (s *SQLiteStore) SaveChart(ctx context.Context, chart *model.Chart) error {
	return querySaveChart(ctx, s.db, chart)
}

func (s *SQLiteStore) ListRedirects(ctx context.Context) ([]*model.Redirect, error) {
	return queryListRedirects(ctx, s.db)
}

func (s *SQLiteStore) SaveRedirect(ctx context.Context, redirect *model.Redirect) error {
	return querySaveRedirect(ctx, s.db, redirect)
}

func (s *SQLiteStore) AppliedSteps(ctx context.Context) ([]*model.StepRecord, error) {
	return queryAppliedSteps(ctx, s.db)
}

func (s *SQLiteStore) RecordStep(ctx context.Context, rec *model.StepRecord) error {
	return queryRecordStep(ctx, s.db, rec)
}

func (s *SQLiteStore) SchemaVersion(ctx context.Context) (uint, bool, error) {
	return querySchemaVersion(ctx, s.db)
}
