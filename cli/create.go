package cli

import (
	"fmt"

	actx "go.hackfix.me/dbshift/app/context"
	aerrors "go.hackfix.me/dbshift/app/errors"
	"go.hackfix.me/dbshift/migration"
	"go.hackfix.me/dbshift/migration/sqlfile"
)

// Create writes a new pair of empty SQL migration files to the first
// migrations directory.
type Create struct {
	Name string `kong:"arg,help='Migration name, e.g. add_users.'"`
}

// Run the create command.
func (c *Create) Run(appCtx *actx.Context, g *Globals) error {
	if len(g.Dir) == 0 {
		return aerrors.NewRuntimeError("no migrations directory is set", nil,
			"Set it with --dir, the DBSHIFT_DIR environment variable, or in the configuration file.")
	}

	// The new version must follow the migrations of all sources, not only the
	// ones in the target directory.
	catalog, err := migration.LoadCatalog(sources(appCtx, g)...)
	if err != nil {
		return aerrors.NewRuntimeError("failed loading migrations", err, "")
	}

	src := sqlfile.New(appCtx.FS, g.Dir[0])
	version, upPath, downPath, err := src.Create(c.Name, catalog.Max())
	if err != nil {
		return aerrors.NewRuntimeError("failed creating migration", err, "")
	}

	fmt.Fprintf(appCtx.Stdout, "Created migration %d:\n  %s\n  %s\n", version, upPath, downPath)

	return nil
}
