package cli

import (
	"database/sql"
	"fmt"
	"time"

	actx "go.hackfix.me/dbshift/app/context"
	aerrors "go.hackfix.me/dbshift/app/errors"
	"go.hackfix.me/dbshift/dialect"
)

// The Init command writes the current database and migration options to the
// configuration file, and creates the migrations directories.
type Init struct {
	Force bool `kong:"help='Overwrite an existing configuration file.'"`
}

// Run the init command.
func (c *Init) Run(appCtx *actx.Context, g *Globals) error {
	cfg := appCtx.Config
	if _, err := appCtx.FS.Stat(cfg.Path()); err == nil && !c.Force {
		return aerrors.NewRuntimeError(
			fmt.Sprintf("configuration file '%s' already exists", cfg.Path()), nil,
			"Use --force to overwrite it.")
	}

	if g.Provider != "" {
		name, err := dialect.ParseName(g.Provider)
		if err != nil {
			return aerrors.NewRuntimeError("invalid database provider", err, "")
		}
		cfg.Database.Provider = sql.Null[dialect.Name]{V: name, Valid: true}
	}
	if g.Connection != "" {
		cfg.Database.Connection = sql.Null[string]{V: g.Connection, Valid: true}
	}
	if g.ConnectTimeout > 0 {
		cfg.Database.ConnectTimeout = sql.Null[time.Duration]{V: g.ConnectTimeout, Valid: true}
	}
	if g.Table != "" {
		cfg.Migrations.Table = sql.Null[string]{V: g.Table, Valid: true}
	}
	if len(g.Dir) > 0 {
		cfg.Migrations.Dirs = g.Dir
	}

	if err := cfg.Save(); err != nil {
		return aerrors.NewRuntimeError("failed saving configuration", err, "")
	}
	appCtx.Logger.Info("wrote configuration file", "path", cfg.Path())

	for _, dir := range cfg.Migrations.Dirs {
		if err := appCtx.FS.MkdirAll(dir, 0o755); err != nil {
			return aerrors.NewRuntimeError(
				fmt.Sprintf("failed creating migrations directory '%s'", dir), err, "")
		}
	}

	return nil
}
