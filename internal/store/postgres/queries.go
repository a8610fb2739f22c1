package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

// chartColumns is the column list used for SELECT statements on the charts table.
const chartColumns = `id, slug, config, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

func queryListCharts(ctx context.Context, db executor) ([]*model.Chart, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+chartColumns+` FROM charts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCharts(rows)
}

func queryGetChart(ctx context.Context, db executor, id int64) (*model.Chart, error) {
	row := db.QueryRowContext(ctx, `SELECT `+chartColumns+` FROM charts WHERE id = $1`, id)
	c, err := scanChart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chart %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func queryCreateChart(ctx context.Context, db executor, c *model.Chart) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	if c.ID != 0 {
		_, err := db.ExecContext(ctx, `
			INSERT INTO charts (id, slug, config, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID,
			nullString(c.Slug),
			jsonbString(c.Config),
			c.CreatedAt,
			c.UpdatedAt,
		)
		return err
	}

	return db.QueryRowContext(ctx, `
		INSERT INTO charts (slug, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		nullString(c.Slug),
		jsonbString(c.Config),
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.ID)
}

// querySaveChart writes the chart's slug and config back, replacing the
// stored values, and bumps updated_at.
func querySaveChart(ctx context.Context, db executor, c *model.Chart) error {
	updatedAt := now()
	result, err := db.ExecContext(ctx, `
		UPDATE charts SET slug = $2, config = $3, updated_at = $4
		WHERE id = $1`,
		c.ID,
		nullString(c.Slug),
		jsonbString(c.Config),
		updatedAt,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("chart %d: %w", c.ID, store.ErrNotFound)
	}
	c.UpdatedAt = updatedAt
	return nil
}

func queryListRedirects(ctx context.Context, db executor) ([]*model.Redirect, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, slug, chart_id FROM chart_slug_redirects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRedirects(rows)
}

// querySaveRedirect upserts a redirect keyed by slug.
func querySaveRedirect(ctx context.Context, db executor, r *model.Redirect) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO chart_slug_redirects (slug, chart_id)
		VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET chart_id = EXCLUDED.chart_id
		RETURNING id`,
		r.Slug,
		r.ChartID,
	).Scan(&r.ID)
}

func queryAppliedSteps(ctx context.Context, db executor) ([]*model.StepRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, run_id, applied_at, rows_affected
		FROM data_migrations
		ORDER BY applied_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStepRecords(rows)
}

func queryRecordStep(ctx context.Context, db executor, rec *model.StepRecord) error {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO data_migrations (name, run_id, applied_at, rows_affected)
		VALUES ($1, $2, $3, $4)`,
		rec.Name,
		rec.RunID,
		rec.AppliedAt,
		rec.Rows,
	)
	return err
}

// querySchemaVersion reads golang-migrate's bookkeeping table. A database
// with no schema row reports version 0.
func querySchemaVersion(ctx context.Context, db executor) (uint, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint(version), dirty, nil
}
