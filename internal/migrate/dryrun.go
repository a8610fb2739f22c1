package migrate

import (
	"context"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

// dryRunStore reads through to the wrapped store and turns every write into
// a counted no-op.
type dryRunStore struct {
	store.Store
	writes int
}

func (d *dryRunStore) CreateChart(_ context.Context, _ *model.Chart) error {
	d.writes++
	return nil
}

func (d *dryRunStore) SaveChart(_ context.Context, _ *model.Chart) error {
	d.writes++
	return nil
}

func (d *dryRunStore) SaveRedirect(_ context.Context, _ *model.Redirect) error {
	d.writes++
	return nil
}

func (d *dryRunStore) RecordStep(_ context.Context, _ *model.StepRecord) error {
	return nil
}

func (d *dryRunStore) Close() error { return nil }
