package model

import (
	"encoding/json"
	"time"
)

// Chart is a stored visualization. Config holds the chart's settings as a
// JSON object; it is kept raw here and decoded with DecodeChartConfig by the
// code that needs to inspect or rewrite it.
type Chart struct {
	ID        int64           `json:"id"`
	Slug      string          `json:"slug,omitempty"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Redirect maps a public slug to the chart that currently serves it.
type Redirect struct {
	ID      int64  `json:"id"`
	Slug    string `json:"slug"`
	ChartID int64  `json:"chart_id"`
}
