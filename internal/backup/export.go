package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	ChartCount int       `json:"chart_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var now = func() time.Time { return time.Now().UTC() }

// ExportJSONL writes every chart in the store as JSONL to w and returns the
// number of charts written. Charts are sorted by ID. Configs are written as
// stored, including malformed ones.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) (int, error) {
	charts, err := s.ListCharts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list charts: %w", err)
	}
	sort.Slice(charts, func(i, j int) bool {
		return charts[i].ID < charts[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  now(),
		ChartCount: len(charts),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, c := range charts {
		if err := enc.Encode(record{Type: "chart", Data: exportChart(c)}); err != nil {
			return 0, fmt.Errorf("encode chart %d: %w", c.ID, err)
		}
	}
	return len(charts), nil
}

// exportedChart keeps an invalid config exportable by falling back to a JSON
// string of its raw bytes.
type exportedChart struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug,omitempty"`
	Config    any       `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func exportChart(c *model.Chart) exportedChart {
	out := exportedChart{ID: c.ID, Slug: c.Slug, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	switch {
	case len(c.Config) == 0:
		out.Config = nil
	case json.Valid(c.Config):
		out.Config = c.Config
	default:
		out.Config = string(c.Config)
	}
	return out
}
