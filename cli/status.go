package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	actx "go.hackfix.me/dbshift/app/context"
	aerrors "go.hackfix.me/dbshift/app/errors"
	"go.hackfix.me/dbshift/migration"
)

// Status shows the applied and pending migrations, and the steps needed to
// reach a target version.
type Status struct {
	To int64 `kong:"type='target',default='latest',help='Target version used to plan the next run, or latest.'"`
}

// Run the status command.
func (c *Status) Run(appCtx *actx.Context, g *Globals) (err error) {
	task, err := newTask(appCtx, g)
	if err != nil {
		return err
	}

	catalog, err := migration.LoadCatalog(task.Sources...)
	if err != nil {
		return aerrors.NewRuntimeError("failed loading migrations", err, "")
	}
	r, closeFn, err := task.Runner(appCtx.Ctx, catalog)
	if err != nil {
		return err //nolint:wrapcheck // Already descriptive.
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = fmt.Errorf("failed closing database connection: %w", cerr)
		}
	}()

	target := c.To
	if target == migration.Latest {
		target = catalog.Max()
	}
	plan, err := r.Plan(appCtx.Ctx, target)
	if err != nil {
		return runError(err)
	}
	applied, err := r.Tracker().AppliedVersions(appCtx.Ctx)
	if err != nil {
		return runError(err)
	}
	skipped, err := r.Skipped(appCtx.Ctx)
	if err != nil {
		return runError(err)
	}

	actions := make(map[int64]string, len(plan.Steps))
	for _, step := range plan.Steps {
		if step.Direction == migration.Forward {
			actions[step.Version] = "apply"
		} else {
			actions[step.Version] = "revert"
		}
	}
	for _, v := range skipped {
		actions[v] = "skipped"
	}

	versions := map[int64]bool{}
	for _, v := range catalog.Versions() {
		versions[v] = false
	}
	for _, v := range applied {
		versions[v] = true
	}

	rows := make([][]string, 0, len(versions))
	for _, v := range slices.Sorted(maps.Keys(versions)) {
		name := "(missing)"
		if m, ok := catalog.Get(v); ok {
			name = m.Name()
		}
		isApplied := "no"
		if versions[v] {
			isApplied = "yes"
		}
		rows = append(rows, []string{strconv.FormatInt(v, 10), name, isApplied, actions[v]})
	}

	if len(rows) > 0 {
		if err = renderTable(appCtx.Stdout, []string{"Version", "Name", "Applied", "Next Run"}, rows); err != nil {
			return fmt.Errorf("failed rendering table: %w", err)
		}
		fmt.Fprintln(appCtx.Stdout)
	}

	fmt.Fprintf(appCtx.Stdout, "Current version: %d\n", plan.Current)
	if len(skipped) > 0 {
		fmt.Fprintf(appCtx.Stdout, "%d migration(s) older than the current version aren't applied "+
			"and will be skipped.\n", len(skipped))
	}
	if plan.Empty() {
		fmt.Fprintln(appCtx.Stdout, "Schema is up to date.")
	} else {
		action := "apply"
		if plan.Direction == migration.Backward {
			action = "revert"
		}
		fmt.Fprintf(appCtx.Stdout, "%d migration(s) to %s to reach version %d.\n",
			len(plan.Steps), action, target)
	}

	return nil
}
