// Package storetest provides an in-memory store.Store for tests, with hooks
// for injecting failures.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

// Memory is an in-memory store.Store. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu        sync.Mutex
	charts    map[int64]*model.Chart
	redirects map[string]*model.Redirect
	steps     map[string]*model.StepRecord
	nextID    int64

	// Schema and Dirty are returned by SchemaVersion.
	Schema uint
	Dirty  bool

	// SaveErr, when set, is consulted before every SaveChart. A non-nil
	// result fails the save without modifying the stored chart.
	SaveErr func(chart *model.Chart) error

	// Saves counts successful SaveChart calls.
	Saves int
}

var _ store.Store = (*Memory)(nil)

// NewMemory returns an empty store reporting schema version 3.
func NewMemory() *Memory {
	return &Memory{
		charts:    make(map[int64]*model.Chart),
		redirects: make(map[string]*model.Redirect),
		steps:     make(map[string]*model.StepRecord),
		Schema:    3,
	}
}

// AddChart stores a chart with the given ID and raw config, bypassing any
// injected failures.
func (m *Memory) AddChart(id int64, slug, config string) *model.Chart {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &model.Chart{ID: id, Slug: slug, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if config != "" {
		c.Config = json.RawMessage(config)
	}
	m.charts[id] = c
	if id > m.nextID {
		m.nextID = id
	}
	return clone(c)
}

// Config returns the stored raw config for id.
func (m *Memory) Config(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charts[id]
	if !ok {
		return ""
	}
	return string(c.Config)
}

func (m *Memory) ListCharts(_ context.Context) ([]*model.Chart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Chart, 0, len(m.charts))
	for _, c := range m.charts {
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetChart(_ context.Context, id int64) (*model.Chart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charts[id]
	if !ok {
		return nil, fmt.Errorf("chart %d: %w", id, store.ErrNotFound)
	}
	return clone(c), nil
}

func (m *Memory) CreateChart(_ context.Context, chart *model.Chart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chart.ID == 0 {
		m.nextID++
		chart.ID = m.nextID
	} else if _, exists := m.charts[chart.ID]; exists {
		return fmt.Errorf("chart %d already exists", chart.ID)
	}
	if chart.ID > m.nextID {
		m.nextID = chart.ID
	}
	m.charts[chart.ID] = clone(chart)
	return nil
}

func (m *Memory) SaveChart(_ context.Context, chart *model.Chart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		if err := m.SaveErr(chart); err != nil {
			return err
		}
	}
	if _, ok := m.charts[chart.ID]; !ok {
		return fmt.Errorf("chart %d: %w", chart.ID, store.ErrNotFound)
	}
	chart.UpdatedAt = time.Now().UTC()
	m.charts[chart.ID] = clone(chart)
	m.Saves++
	return nil
}

func (m *Memory) ListRedirects(_ context.Context) ([]*model.Redirect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Redirect, 0, len(m.redirects))
	for _, r := range m.redirects {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveRedirect(_ context.Context, redirect *model.Redirect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.redirects[redirect.Slug]; ok {
		existing.ChartID = redirect.ChartID
		redirect.ID = existing.ID
		return nil
	}
	redirect.ID = int64(len(m.redirects) + 1)
	cp := *redirect
	m.redirects[redirect.Slug] = &cp
	return nil
}

func (m *Memory) AppliedSteps(_ context.Context) ([]*model.StepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.StepRecord, 0, len(m.steps))
	for _, r := range m.steps {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.Before(out[j].AppliedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) RecordStep(_ context.Context, rec *model.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.steps[rec.Name]; ok {
		return fmt.Errorf("step %s already recorded", rec.Name)
	}
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now().UTC()
	}
	cp := *rec
	m.steps[rec.Name] = &cp
	return nil
}

func (m *Memory) SchemaVersion(_ context.Context) (uint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Schema, m.Dirty, nil
}

func (m *Memory) Close() error { return nil }

func clone(c *model.Chart) *model.Chart {
	cp := *c
	if c.Config != nil {
		cp.Config = append(json.RawMessage(nil), c.Config...)
	}
	return &cp
}
