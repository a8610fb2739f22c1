// Package steps holds the registered data migration steps for charts.
package steps

import "github.com/alfredjeanlab/grapher/internal/migrate"

// All returns every registered step. The runner orders them by DependsOn.
func All() []migrate.Step {
	return []migrate.Step{
		ChartSlugRedirects(),
		ChartConfigVersion(),
	}
}
