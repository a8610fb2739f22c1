package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/grapher/internal/model"
)

// ErrNotFound is returned when a chart or redirect does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for charts and the data
// migration ledger.
type Store interface {
	// Charts
	ListCharts(ctx context.Context) ([]*model.Chart, error) // ascending ID
	GetChart(ctx context.Context, id int64) (*model.Chart, error)
	CreateChart(ctx context.Context, chart *model.Chart) error
	SaveChart(ctx context.Context, chart *model.Chart) error

	// Slug redirects
	ListRedirects(ctx context.Context) ([]*model.Redirect, error)
	SaveRedirect(ctx context.Context, redirect *model.Redirect) error

	// Data migration ledger
	AppliedSteps(ctx context.Context) ([]*model.StepRecord, error)
	RecordStep(ctx context.Context, rec *model.StepRecord) error

	// SchemaVersion reports the schema migration version and whether the
	// last schema migration left the database dirty.
	SchemaVersion(ctx context.Context) (uint, bool, error)

	// Lifecycle
	Close() error
}
