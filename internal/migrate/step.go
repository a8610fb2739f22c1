// Package migrate orders named data migration steps by their declared
// predecessors, runs the pending ones against a store and records each
// successful step in the store's ledger.
package migrate

import (
	"context"

	"github.com/alfredjeanlab/grapher/internal/store"
)

// Step is a named, ordered data migration.
type Step struct {
	Name        string
	DependsOn   []string
	Description string

	// Schema is the minimum golang-migrate schema version the step needs.
	Schema uint

	// Up applies the step and returns the number of records it wrote.
	Up func(ctx context.Context, s store.Store) (int, error)
}
