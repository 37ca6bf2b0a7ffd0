package migration

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.hackfix.me/dbshift/provider"
)

// State is the lifecycle state of a Runner.
type State int

// Runner states.
const (
	StateIdle State = iota
	StatePlanning
	StateExecuting
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateExecuting:
		return "executing"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Runner moves the database schema to a target version by applying or
// reverting the migrations of a Catalog. It's not safe for concurrent use;
// concurrent runs against the same database are excluded by the run lock.
type Runner struct {
	p            provider.TransformationProvider
	catalog      *Catalog
	tracker      *VersionTracker
	logger       Logger
	txMode       TxMode
	versionTable string
	lockKey      string
	newRunID     func() string
	state        State
}

// NewRunner returns a new Runner.
func NewRunner(p provider.TransformationProvider, catalog *Catalog, opts ...Option) (*Runner, error) {
	if p == nil {
		return nil, errors.New("provider is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}

	r := &Runner{p: p, catalog: catalog}
	opts = append(DefaultOptions(), opts...)
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.lockKey == "" {
		r.lockKey = r.versionTable
	}
	r.tracker = NewVersionTracker(p, r.versionTable)

	return r, nil
}

// State returns the state of the last run.
func (r *Runner) State() State {
	return r.state
}

// Tracker returns the version tracker of the runner.
func (r *Runner) Tracker() *VersionTracker {
	return r.tracker
}

// MigrateToLast applies all migrations newer than the current version.
func (r *Runner) MigrateToLast(ctx context.Context) error {
	return r.MigrateTo(ctx, r.catalog.Max())
}

// MigrateTo moves the schema to the target version. Migrations newer than the
// current version up to target are applied in ascending order. If target is
// lower than the current version, applied migrations newer than target are
// reverted in descending order.
//
// A step that fails is rolled back, and the run stops with a
// *MigrationFailedError. With TxPerMigration, the steps that succeeded before
// remain applied.
func (r *Runner) MigrateTo(ctx context.Context, target int64) (err error) {
	if target < 0 {
		return ErrInvalidTarget
	}

	runID := r.newRunID()
	r.state = StatePlanning
	defer func() {
		if err != nil {
			r.state = StateFailed
		} else {
			r.state = StateCommitted
		}
	}()

	r.logger.Trace("acquiring migration lock", "run_id", runID, "lock_key", r.lockKey)
	unlock, err := r.p.Lock(ctx, r.lockKey, runID)
	if err != nil {
		return err //nolint:wrapcheck // Contention errors are returned as is.
	}
	defer func() {
		if uerr := unlock(ctx); uerr != nil {
			err = errors.Join(err, uerr)
		}
		r.logger.Trace("released migration lock", "run_id", runID)
	}()

	plan, err := r.plan(ctx, target)
	if err != nil {
		return err
	}
	if plan.Empty() {
		r.logger.Trace("schema is up to date", "run_id", runID, "version", plan.Current)
		return nil
	}
	r.logger.Trace("planned run", "run_id", runID, "current", plan.Current,
		"target", plan.Target, "direction", plan.Direction.String(), "steps", len(plan.Steps))

	r.state = StateExecuting
	return r.execute(ctx, plan)
}

// Plan returns the steps that MigrateTo would run, without running them. It
// creates the metadata table if it doesn't exist.
func (r *Runner) Plan(ctx context.Context, target int64) (*Plan, error) {
	if target < 0 {
		return nil, ErrInvalidTarget
	}
	return r.plan(ctx, target)
}

func (r *Runner) plan(ctx context.Context, target int64) (*Plan, error) {
	if err := r.tracker.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := r.tracker.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var current int64
	if len(applied) > 0 {
		current = applied[len(applied)-1]
	}
	plan := &Plan{Current: current, Target: target}

	switch {
	case target > current:
		plan.Direction = Forward
		plan.migrations = r.catalog.Between(current, target)
	case target < current:
		plan.Direction = Backward
		for i := len(applied) - 1; i >= 0 && applied[i] > target; i-- {
			m, ok := r.catalog.Get(applied[i])
			if !ok {
				return nil, &MissingMigrationError{Version: applied[i]}
			}
			plan.migrations = append(plan.migrations, m)
		}
	}

	for _, m := range plan.migrations {
		plan.Steps = append(plan.Steps, Step{
			Version: m.Version(), Name: m.Name(), Direction: plan.Direction,
		})
	}

	return plan, nil
}

func (r *Runner) execute(ctx context.Context, plan *Plan) error {
	// Cancellation is only checked between steps.
	stepCtx := context.WithoutCancel(ctx)

	if r.txMode == TxPerRun {
		if err := r.p.BeginTransaction(stepCtx); err != nil {
			return err //nolint:wrapcheck // Already descriptive.
		}
	}

	for i, m := range plan.migrations {
		step := plan.Steps[i]
		if err := ctx.Err(); err != nil {
			return r.fail(stepCtx, step, err)
		}
		if err := r.runStep(stepCtx, m, step); err != nil {
			return r.fail(stepCtx, step, err)
		}
		if r.txMode != TxPerRun {
			r.logger.Finished(step)
		}
	}

	if r.txMode == TxPerRun {
		// Steps only finish once the run transaction is committed.
		if err := r.p.Commit(stepCtx); err != nil {
			last := plan.Steps[len(plan.Steps)-1]
			r.logger.Error(last, err)
			return &MigrationFailedError{
				Version: last.Version, Name: last.Name, Direction: last.Direction,
				Err: fmt.Errorf("failed committing run: %w", err),
			}
		}
		for _, step := range plan.Steps {
			r.logger.Finished(step)
		}
	}

	return nil
}

func (r *Runner) runStep(ctx context.Context, m Migration, step Step) error {
	r.logger.Started(step)

	if err := r.p.BeginTransaction(ctx); err != nil {
		return err //nolint:wrapcheck // Already descriptive.
	}
	if err := r.applyStep(ctx, m, step); err != nil {
		if rerr := r.p.Rollback(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}
	if err := r.p.Commit(ctx); err != nil {
		return err //nolint:wrapcheck // Already descriptive.
	}

	return nil
}

// applyStep runs the migration and updates its version record.
func (r *Runner) applyStep(ctx context.Context, m Migration, step Step) error {
	if step.Direction == Backward {
		if err := m.Revert(ctx, r.p); err != nil {
			return err
		}
		return r.tracker.MarkReverted(ctx, step.Version)
	}
	if err := m.Apply(ctx, r.p); err != nil {
		return err
	}
	return r.tracker.MarkApplied(ctx, step.Version)
}

// fail reports the failed step, rolls back the run transaction if there is
// one, and returns the step's error.
func (r *Runner) fail(ctx context.Context, step Step, err error) error {
	r.logger.Error(step, err)
	if r.txMode == TxPerRun {
		if rerr := r.p.Rollback(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}
	return &MigrationFailedError{
		Version: step.Version, Name: step.Name, Direction: step.Direction, Err: err,
	}
}

// Pending returns the versions in the catalog newer than the current version,
// in ascending order. These are the versions MigrateToLast applies.
func (r *Runner) Pending(ctx context.Context) ([]int64, error) {
	current, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	var pending []int64
	for _, m := range r.catalog.Between(current, r.catalog.Max()) {
		pending = append(pending, m.Version())
	}
	return pending, nil
}

// Skipped returns the versions in the catalog that aren't applied but are
// older than the current version. Forward runs never apply them, e.g. when a
// migration was added on a branch after newer ones were applied.
func (r *Runner) Skipped(ctx context.Context) ([]int64, error) {
	current, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := r.tracker.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	var skipped []int64
	for _, v := range r.catalog.Versions() {
		if v < current && !slices.Contains(applied, v) {
			skipped = append(skipped, v)
		}
	}
	return skipped, nil
}

func (r *Runner) current(ctx context.Context) (int64, error) {
	if err := r.tracker.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	return r.tracker.CurrentVersion(ctx)
}
