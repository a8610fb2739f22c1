package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store/storetest"
)

func TestEnsureSlugRedirects(t *testing.T) {
	ms := storetest.NewMemory()
	ms.AddChart(1, "life-expectancy", `{}`)
	ms.AddChart(2, "", `{}`)
	ms.AddChart(3, "gdp", `{}`)
	ctx := context.Background()
	// Stale redirect pointing gdp at another chart.
	if err := ms.SaveRedirect(ctx, &model.Redirect{Slug: "gdp", ChartID: 1}); err != nil {
		t.Fatalf("SaveRedirect: %v", err)
	}

	n, err := EnsureSlugRedirects(ctx, ms)
	if err != nil {
		t.Fatalf("EnsureSlugRedirects: %v", err)
	}
	if n != 2 {
		t.Errorf("wrote %d redirects, want 2", n)
	}

	redirects, _ := ms.ListRedirects(ctx)
	got := map[string]int64{}
	for _, r := range redirects {
		got[r.Slug] = r.ChartID
	}
	if len(got) != 2 || got["life-expectancy"] != 1 || got["gdp"] != 3 {
		t.Errorf("redirects = %v", got)
	}

	n, err = EnsureSlugRedirects(ctx, ms)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if n != 0 {
		t.Errorf("second pass wrote %d redirects, want 0", n)
	}
}

type redirectErrStore struct{ *storetest.Memory }

func (redirectErrStore) SaveRedirect(context.Context, *model.Redirect) error {
	return errors.New("unique violation")
}

func TestEnsureSlugRedirects_Error(t *testing.T) {
	ms := storetest.NewMemory()
	ms.AddChart(1, "a", `{}`)
	if _, err := EnsureSlugRedirects(context.Background(), redirectErrStore{ms}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAll(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range All() {
		if seen[s.Name] {
			t.Errorf("duplicate step %s", s.Name)
		}
		seen[s.Name] = true
		if s.Up == nil {
			t.Errorf("step %s has no Up", s.Name)
		}
	}
	if !seen[ChartConfigVersionName] || !seen[ChartSlugRedirectsName] {
		t.Errorf("registry missing steps: %v", seen)
	}
}
