// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending schema migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ListCharts(ctx context.Context) ([]*model.Chart, error) {
	return queryListCharts(ctx, s.db)
}

func (s *PostgresStore) GetChart(ctx context.Context, id int64) (*model.Chart, error) {
	return queryGetChart(ctx, s.db, id)
}

func (s *PostgresStore) CreateChart(ctx context.Context, chart *model.Chart) error {
	return queryCreateChart(ctx, s.db, chart)
}

func (s *PostgresStore) SaveChart(ctx context.Context, chart *model.Chart) error {
	return querySaveChart(ctx, s.db, chart)
}

func (s *PostgresStore) ListRedirects(ctx context.Context) ([]*model.Redirect, error) {
	return queryListRedirects(ctx, s.db)
}

func (s *PostgresStore) SaveRedirect(ctx context.Context, redirect *model.Redirect) error {
	return querySaveRedirect(ctx, s.db, redirect)
}

func (s *PostgresStore) AppliedSteps(ctx context.Context) ([]*model.StepRecord, error) {
	return queryAppliedSteps(ctx, s.db)
}

func (s *PostgresStore) RecordStep(ctx context.Context, rec *model.StepRecord) error {
	return queryRecordStep(ctx, s.db, rec)
}

func (s *PostgresStore) SchemaVersion(ctx context.Context) (uint, bool, error) {
	return querySchemaVersion(ctx, s.db)
}
