package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/grapher/internal/backup"
	"github.com/alfredjeanlab/grapher/internal/events"
	"github.com/alfredjeanlab/grapher/internal/idgen"
	"github.com/alfredjeanlab/grapher/internal/model"
	"github.com/alfredjeanlab/grapher/internal/store"
)

var (
	ErrDirtySchema  = errors.New("schema is dirty")
	ErrSchemaTooOld = errors.New("schema version too old")
)

// Runner applies pending steps against a store.
type Runner struct {
	store     store.Store
	steps     []Step
	publisher events.Publisher
	logger    *slog.Logger

	newRunID func() (string, error)
	now      func() time.Time
}

// NewRunner returns a runner over steps. A nil publisher disables events
// and a nil logger uses slog.Default.
func NewRunner(s store.Store, steps []Step, publisher events.Publisher, logger *slog.Logger) *Runner {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:     s,
		steps:     steps,
		publisher: publisher,
		logger:    logger,
		newRunID:  idgen.NewRunID,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Status is a step together with its ledger state.
type Status struct {
	Step    Step
	Applied bool
	Record  *model.StepRecord
}

// Options controls a call to Up.
type Options struct {
	// Target limits the run to this step and its dependencies.
	Target string
	// DryRun executes steps against a view of the store that discards writes.
	DryRun bool
	// Backup, when set, runs after all checks pass and before the first
	// step. It is skipped on dry runs. A failed backup aborts the run.
	// It receives the run ID so each run's snapshot is kept separately.
	Backup func(ctx context.Context, runID string) (*backup.Summary, error)
}

// StepResult reports one executed step. Writes counts the store writes a
// dry run discarded and is zero otherwise.
type StepResult struct {
	Name     string
	Rows     int
	Writes   int
	Duration time.Duration
}

// Result reports a call to Up. RunID is empty when nothing was pending.
type Result struct {
	RunID   string
	DryRun  bool
	Backup  *backup.Summary
	Applied []StepResult
}

// Plan returns every step in execution order with its ledger state.
func (r *Runner) Plan(ctx context.Context) ([]Status, error) {
	ordered, err := Order(r.steps)
	if err != nil {
		return nil, err
	}
	applied, err := r.appliedByName(ctx)
	if err != nil {
		return nil, err
	}

	plan := make([]Status, 0, len(ordered))
	for _, s := range ordered {
		rec, ok := applied[s.Name]
		plan = append(plan, Status{Step: s, Applied: ok, Record: rec})
	}
	return plan, nil
}

// Up runs every pending step in order. The first failing step aborts the
// run; it is not recorded and the steps after it do not run.
func (r *Runner) Up(ctx context.Context, opts Options) (*Result, error) {
	pending, err := r.pending(ctx, opts.Target)
	if err != nil {
		return nil, err
	}
	res := &Result{DryRun: opts.DryRun}
	if len(pending) == 0 {
		r.logger.Info("no pending steps")
		return res, nil
	}
	if err := r.checkSchema(ctx, pending); err != nil {
		return nil, err
	}

	runID, err := r.newRunID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	res.RunID = runID
	logger := r.logger.With("run_id", runID)

	if opts.Backup != nil && !opts.DryRun {
		sum, err := opts.Backup(ctx, runID)
		if err != nil {
			return res, fmt.Errorf("backup: %w", err)
		}
		res.Backup = sum
		if sum != nil {
			r.publish(ctx, logger, events.TopicBackupCompleted, events.BackupCompleted{
				RunID:     runID,
				Charts:    sum.Charts,
				Locations: sum.Locations,
			})
		}
	}

	for _, s := range pending {
		sr, err := r.runStep(ctx, logger, runID, s, opts.DryRun)
		if err != nil {
			return res, err
		}
		res.Applied = append(res.Applied, sr)
	}
	logger.Info("run complete", "steps", len(res.Applied), "dry_run", opts.DryRun)
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, logger *slog.Logger, runID string, s Step, dryRun bool) (StepResult, error) {
	logger = logger.With("step", s.Name)
	r.publish(ctx, logger, events.TopicMigrationStarted, events.MigrationStarted{RunID: runID, Step: s.Name, DryRun: dryRun})
	logger.Info("applying step", "dry_run", dryRun)

	var (
		target store.Store = r.store
		dry    *dryRunStore
	)
	if dryRun {
		dry = &dryRunStore{Store: r.store}
		target = dry
	}

	start := r.now()
	rows, err := s.Up(ctx, target)
	elapsed := r.now().Sub(start)
	if err != nil {
		logger.Error("step failed", "rows", rows, "err", err)
		r.publish(ctx, logger, events.TopicMigrationFailed, events.MigrationFailed{RunID: runID, Step: s.Name, Error: err.Error()})
		return StepResult{}, fmt.Errorf("step %s: %w", s.Name, err)
	}

	if !dryRun {
		rec := &model.StepRecord{Name: s.Name, RunID: runID, AppliedAt: r.now(), Rows: rows}
		if err := r.store.RecordStep(ctx, rec); err != nil {
			r.publish(ctx, logger, events.TopicMigrationFailed, events.MigrationFailed{RunID: runID, Step: s.Name, Error: err.Error()})
			return StepResult{}, fmt.Errorf("record step %s: %w", s.Name, err)
		}
	}

	logger.Info("step applied", "rows", rows, "duration", elapsed)
	r.publish(ctx, logger, events.TopicMigrationApplied, events.MigrationApplied{
		RunID:      runID,
		Step:       s.Name,
		Rows:       rows,
		DurationMS: elapsed.Milliseconds(),
		DryRun:     dryRun,
	})
	sr := StepResult{Name: s.Name, Rows: rows, Duration: elapsed}
	if dry != nil {
		sr.Writes = dry.writes
	}
	return sr, nil
}

func (r *Runner) pending(ctx context.Context, target string) ([]Step, error) {
	ordered, err := Order(r.steps)
	if err != nil {
		return nil, err
	}
	var want map[string]bool
	if target != "" {
		if want, err = closure(ordered, target); err != nil {
			return nil, err
		}
	}
	applied, err := r.appliedByName(ctx)
	if err != nil {
		return nil, err
	}

	var out []Step
	for _, s := range ordered {
		if want != nil && !want[s.Name] {
			continue
		}
		if _, ok := applied[s.Name]; ok {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Runner) checkSchema(ctx context.Context, pending []Step) error {
	version, dirty, err := r.store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("version %d: %w", version, ErrDirtySchema)
	}
	for _, s := range pending {
		if version < s.Schema {
			return fmt.Errorf("step %s needs schema %d, have %d: %w", s.Name, s.Schema, version, ErrSchemaTooOld)
		}
	}
	return nil
}

func (r *Runner) appliedByName(ctx context.Context) (map[string]*model.StepRecord, error) {
	recs, err := r.store.AppliedSteps(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	out := make(map[string]*model.StepRecord, len(recs))
	for _, rec := range recs {
		out[rec.Name] = rec
	}
	return out, nil
}

func (r *Runner) publish(ctx context.Context, logger *slog.Logger, topic string, event any) {
	if err := r.publisher.Publish(ctx, topic, event); err != nil {
		logger.Warn("publish event failed", "topic", topic, "err", err)
	}
}
