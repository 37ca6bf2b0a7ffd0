package cli

import (
	"strconv"

	actx "go.hackfix.me/dbshift/app/context"
	"go.hackfix.me/dbshift/migration"
)

// Migrate moves the database schema to a target version, applying or
// reverting migrations as needed.
type Migrate struct {
	To     int64  `kong:"type='target',default='latest',help='Target version, or latest.'"`
	Trace  bool   `kong:"help='Log planning and locking details of the run.'"`
	TxMode string `kong:"name='tx-mode',placeholder='migration|run',help='Commit each migration separately (migration), or all of them at once (run).'"`
}

// Run the migrate command.
func (c *Migrate) Run(appCtx *actx.Context, g *Globals) error {
	task, err := newTask(appCtx, g)
	if err != nil {
		return err
	}
	task.To = c.To
	task.Trace = c.Trace
	if c.TxMode != "" {
		if task.TxMode, err = migration.TxModeFromString(c.TxMode); err != nil {
			return err //nolint:wrapcheck // Already descriptive.
		}
	}

	if err = task.Execute(appCtx.Ctx); err != nil {
		return runError(err)
	}

	appCtx.Logger.Info("migration run finished", "target", targetString(c.To))

	return nil
}

func targetString(target int64) string {
	if target == migration.Latest {
		return "latest"
	}
	return strconv.FormatInt(target, 10)
}
