package steps

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/grapher/internal/migrate"
	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

const ChartConfigVersionName = "0028_chart_config_version"

// CurrentConfigVersion is the config version every chart carries after
// BackfillConfigVersion.
const CurrentConfigVersion = 1

func ChartConfigVersion() migrate.Step {
	return migrate.Step{
		Name:        ChartConfigVersionName,
		DependsOn:   []string{ChartSlugRedirectsName},
		Description: fmt.Sprintf("set config.version = %d on every chart", CurrentConfigVersion),
		Schema:      1,
		Up:          BackfillConfigVersion,
	}
}

// BackfillConfigVersion sets the version key of every chart's config to
// CurrentConfigVersion, overwriting any previous value, and saves each chart
// on its own. It stops at the first chart whose config cannot be decoded or
// saved; charts before it stay updated and charts after it are untouched.
// The returned count is the number of charts saved.
func BackfillConfigVersion(ctx context.Context, s store.Store) (int, error) {
	charts, err := s.ListCharts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list charts: %w", err)
	}

	saved := 0
	for _, c := range charts {
		cfg, err := model.DecodeChartConfig(c.Config)
		if err != nil {
			return saved, fmt.Errorf("chart %d: %w", c.ID, err)
		}
		cfg.SetVersion(CurrentConfigVersion)
		raw, err := cfg.Encode()
		if err != nil {
			return saved, fmt.Errorf("chart %d: encode config: %w", c.ID, err)
		}
		c.Config = raw
		if err := s.SaveChart(ctx, c); err != nil {
			return saved, fmt.Errorf("save chart %d: %w", c.ID, err)
		}
		saved++
	}
	return saved, nil
}
