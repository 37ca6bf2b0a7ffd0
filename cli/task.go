package cli

import (
	"errors"
	"fmt"

	"github.com/mandelsoft/vfs/pkg/vfs"

	actx "go.hackfix.me/dbshift/app/context"
	aerrors "go.hackfix.me/dbshift/app/errors"
	"go.hackfix.me/dbshift/migration"
	"go.hackfix.me/dbshift/migration/sqlfile"
	"go.hackfix.me/dbshift/provider"
)

// newTask returns a migration task configured from the global options. The
// target version defaults to the latest one.
func newTask(appCtx *actx.Context, g *Globals) (*migration.Task, error) {
	if g.Provider == "" {
		return nil, aerrors.NewRuntimeError("no database provider is set", nil,
			"Set it with --provider, the DBSHIFT_PROVIDER environment variable, or in the configuration file.")
	}
	if g.Connection == "" {
		return nil, aerrors.NewRuntimeError("no database connection string is set", nil,
			"Set it with --connection, the DBSHIFT_CONNECTION environment variable, or in the configuration file.")
	}

	task := &migration.Task{
		Provider:         g.Provider,
		ConnectionString: g.Connection,
		Sources:          sources(appCtx, g),
		To:               migration.Latest,
		VersionTable:     g.Table,
		ConnectTimeout:   g.ConnectTimeout,
		SlogLogger:       appCtx.Logger,
		Registry:         appCtx.Providers,
	}
	if appCtx.TimeNow != nil {
		task.ProviderOptions = append(task.ProviderOptions, provider.WithTimeNow(appCtx.TimeNow))
	}
	if appCtx.Config != nil && appCtx.Config.Run.LockKey.Valid {
		task.LockKey = appCtx.Config.Run.LockKey.V
	}

	return task, nil
}

// sources returns the migrations registered in Go code, and the SQL files in
// the migration directories. Missing directories are skipped.
func sources(appCtx *actx.Context, g *Globals) []migration.Source {
	srcs := []migration.Source{migration.DefaultRegistry()}
	for _, dir := range g.Dir {
		if _, err := appCtx.FS.Stat(dir); vfs.IsErrNotExist(err) {
			appCtx.Logger.Warn("migrations directory doesn't exist", "dir", dir)
			continue
		}
		srcs = append(srcs, sqlfile.New(appCtx.FS, dir))
	}

	return srcs
}

// runError converts errors of migration runs into errors with details for the
// user.
func runError(err error) error {
	var (
		lerr *provider.LockContentionError
		ferr *migration.MigrationFailedError
		serr *provider.SQLExecutionError
	)

	switch {
	case errors.As(err, &lerr):
		hint := "Wait for the other run to finish."
		if lerr.Owner != "" {
			hint = fmt.Sprintf("Wait for the other run to finish. If it crashed, delete the "+
				"row of run %s from the table '%s'.", lerr.Owner, provider.LockTable(lerr.Key))
		}
		return aerrors.NewRuntimeError("another migration run is in progress", err, hint)
	case errors.As(err, &ferr):
		fields := []any{
			"version", ferr.Version, "name", ferr.Name, "direction", ferr.Direction.String(),
		}
		if errors.As(err, &serr) {
			fields = append(fields, "query", serr.Query)
			if serr.Code != "" {
				fields = append(fields, "code", serr.Code)
			}
		}
		return aerrors.NewWithCause("migration failed", ferr.Err, fields...)
	case errors.As(err, &serr):
		return aerrors.WithCause(errors.New("failed executing query"), serr.Err,
			"query", serr.Query, "code", serr.Code)
	}

	return err
}
