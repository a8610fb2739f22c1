package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/grapher/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanChart scans a single row into a model.Chart.
// The row must contain columns in the order defined by chartColumns.
func scanChart(row scannable) (*model.Chart, error) {
	var c model.Chart
	var (
		slug   sql.NullString
		config []byte
	)

	err := row.Scan(
		&c.ID,
		&slug,
		&config,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Slug = slug.String
	if len(config) > 0 {
		c.Config = json.RawMessage(config)
	}

	return &c, nil
}

// scanCharts scans multiple rows into a slice of model.Chart pointers.
func scanCharts(rows *sql.Rows) ([]*model.Chart, error) {
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

// scanRedirects scans multiple rows into a slice of model.Redirect pointers.
func scanRedirects(rows *sql.Rows) ([]*model.Redirect, error) {
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

// scanStepRecords scans multiple rows into a slice of model.StepRecord pointers.
func scanStepRecords(rows *sql.Rows) ([]*model.StepRecord, error) {
	var recs []*model.StepRecord
	for rows.Next() {
		var r model.StepRecord
		if err := rows.Scan(&r.Name, &r.RunID, &r.AppliedAt, &r.Rows); err != nil {
			return nil, err
		}
		recs = append(recs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbString converts json.RawMessage to a text parameter for a JSONB
// column; empty input is SQL NULL.
func jsonbString(m json.RawMessage) sql.NullString {
	if len(m) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(m), Valid: true}
}
