// Package backup snapshots every chart to one or more destinations before a
// migration run touches them.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/grapher/internal/store"
)

// Destination is a place a snapshot can be written to (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs and events.
	Name() string
	// Write stores the JSONL payload for runID and returns where it landed.
	// Snapshots of different runs never overwrite each other.
	Write(ctx context.Context, runID string, data []byte) (string, error)
}

// Summary describes a completed snapshot. Locations holds one entry per
// destination, in the order the destinations were given.
type Summary struct {
	RunID     string
	Charts    int
	Bytes     int
	Locations []string
}

// Snapshot exports the store once and writes the payload to every
// destination. Every destination is attempted; the joined errors of those
// that failed are returned.
func Snapshot(ctx context.Context, s store.Store, runID string, dests []Destination, logger *slog.Logger) (*Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if runID == "" {
		return nil, errors.New("backup requires a run id")
	}
	if len(dests) == 0 {
		return nil, errors.New("no backup destinations configured")
	}

	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, s, &buf)
	if err != nil {
		return nil, fmt.Errorf("export charts: %w", err)
	}
	data := buf.Bytes()

	sum := &Summary{RunID: runID, Charts: n, Bytes: len(data)}
	var errs []error
	for _, dest := range dests {
		loc, err := dest.Write(ctx, runID, data)
		if err != nil {
			logger.Error("backup destination write failed", "destination", dest.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", dest.Name(), err))
			continue
		}
		sum.Locations = append(sum.Locations, loc)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	logger.Info("backup completed", "run_id", runID, "charts", n, "locations", sum.Locations, "bytes", len(data))
	return sum, nil
}
