package steps

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/grapher/internal/migrate"
	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

const ChartSlugRedirectsName = "0027_chart_slug_redirects"

func ChartSlugRedirects() migrate.Step {
	return migrate.Step{
		Name:        ChartSlugRedirectsName,
		Description: "add a slug redirect for every chart's current slug",
		Schema:      2,
		Up:          EnsureSlugRedirects,
	}
}

// EnsureSlugRedirects makes sure every chart with a slug has a redirect row
// pointing that slug at the chart. Existing correct rows are left alone, so
// running it twice writes nothing the second time.
func EnsureSlugRedirects(ctx context.Context, s store.Store) (int, error) {
	charts, err := s.ListCharts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list charts: %w", err)
	}
	redirects, err := s.ListRedirects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list redirects: %w", err)
	}
	bySlug := make(map[string]int64, len(redirects))
	for _, r := range redirects {
		bySlug[r.Slug] = r.ChartID
	}

	written := 0
	for _, c := range charts {
		if c.Slug == "" {
			continue
		}
		if id, ok := bySlug[c.Slug]; ok && id == c.ID {
			continue
		}
		if err := s.SaveRedirect(ctx, &model.Redirect{Slug: c.Slug, ChartID: c.ID}); err != nil {
			return written, fmt.Errorf("save redirect %q: %w", c.Slug, err)
		}
		bySlug[c.Slug] = c.ID
		written++
	}
	return written, nil
}
