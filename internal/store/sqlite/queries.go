package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

const chartColumns = `id, slug, config, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scannable interface {
	Scan(dest ...any) error
}

var now = func() time.Time { return time.Now().UTC() }

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func queryListCharts(ctx context.Context, db executor) ([]*model.Chart, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+chartColumns+` FROM charts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charts []*model.Chart
	for rows.Next() {
		c, err := scanChart(rows)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return charts, nil
}

func queryGetChart(ctx context.Context, db executor, id int64) (*model.Chart, error) {
	c, err := scanChart(db.QueryRowContext(ctx, `SELECT `+chartColumns+` FROM charts WHERE id = ?`, id))
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

	var id any
	if c.ID != 0 {
		id = c.ID
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO charts (id, slug, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		id,
		nullString(c.Slug),
		configText(c.Config),
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if c.ID == 0 {
		newID, err := result.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = newID
	}
	return nil
}

func querySaveChart(ctx context.Context, db executor, c *model.Chart) error {
	updatedAt := now()
	result, err := db.ExecContext(ctx, `
		UPDATE charts SET slug = ?, config = ?, updated_at = ?
		WHERE id = ?`,
		nullString(c.Slug),
		configText(c.Config),
		toMillis(updatedAt),
		c.ID,
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

	var redirects []*model.Redirect
	for rows.Next() {
		var r model.Redirect
		if err := rows.Scan(&r.ID, &r.Slug, &r.ChartID); err != nil {
			return nil, err
		}
		redirects = append(redirects, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return redirects, nil
}

func querySaveRedirect(ctx context.Context, db executor, r *model.Redirect) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO chart_slug_redirects (slug, chart_id)
		VALUES (?, ?)
		ON CONFLICT (slug) DO UPDATE SET chart_id = excluded.chart_id
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

	var recs []*model.StepRecord
	for rows.Next() {
		var (
			r         model.StepRecord
			appliedAt int64
		)
		if err := rows.Scan(&r.Name, &r.RunID, &appliedAt, &r.Rows); err != nil {
			return nil, err
		}
		r.AppliedAt = fromMillis(appliedAt)
		recs = append(recs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func queryRecordStep(ctx context.Context, db executor, rec *model.StepRecord) error {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO data_migrations (name, run_id, applied_at, rows_affected)
		VALUES (?, ?, ?, ?)`,
		rec.Name,
		rec.RunID,
		toMillis(rec.AppliedAt),
		rec.Rows,
	)
	return err
}

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

func scanChart(row scannable) (*model.Chart, error) {
	var (
		c         model.Chart
		slug      sql.NullString
		config    sql.NullString
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&c.ID, &slug, &config, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Slug = slug.String
	if config.Valid && config.String != "" {
		c.Config = json.RawMessage(config.String)
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func configText(m json.RawMessage) sql.NullString {
	if len(m) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(m), Valid: true}
}
