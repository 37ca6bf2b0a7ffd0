package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"go.hackfix.me/dbshift/app/config"
	actx "go.hackfix.me/dbshift/app/context"
	"go.hackfix.me/dbshift/dialect"
)

// CLI is the command line interface of dbshift.
type CLI struct {
	Init    Init    `kong:"cmd,help='Write the configuration file and create the migrations directory.'"`
	Migrate Migrate `kong:"cmd,help='Apply or revert migrations up to a target version.'"`
	Status  Status  `kong:"cmd,help='Show applied and pending migrations.'"`
	Create  Create  `kong:"cmd,help='Create a new pair of SQL migration files.'"`

	Globals `embed:""`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	// NOTE: kong.ConfigFlag isn't used, since the configuration is managed
	// independently from the CLI, and also written by the init command.
	ConfigFile string           `kong:"default='${configFile}',help='Path to the dbshift configuration file.'"`
	Version    kong.VersionFlag `kong:"help='Output version and exit.'"`

	kong *kong.Kong
	kctx *kong.Context
}

// Globals are the database and migration options shared by all commands.
// Unset values are filled from the environment, and then from the
// configuration file.
type Globals struct {
	Provider       string        `kong:"help='Database provider. One of: ${providers}.'"`
	Connection     string        `kong:"help='Database connection string.'"`
	Dir            []string      `kong:"help='Directory of SQL migration files. Can be repeated.',placeholder='PATH'"`
	Table          string        `kong:"help='Name of the table that records applied versions.'"`
	ConnectTimeout time.Duration `kong:"type='xduration',help='Maximum time to wait for the database connection, e.g. 30s or 2m.'"`
}

// New initializes the command-line interface.
func New(configFilePath, version string) (*CLI, error) {
	c := &CLI{}

	providers := make([]string, 0, len(dialect.Names()))
	for _, n := range dialect.Names() {
		providers = append(providers, string(n))
	}

	kparser, err := kong.New(c,
		kong.Name("dbshift"),
		kong.Description("Versioned database schema migrations."),
		kong.UsageOnError(),
		kong.NamedMapper("target", TargetMapper{}),
		kong.NamedMapper("xduration", DurationMapper{}),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"configFile": configFilePath,
			"providers":  strings.Join(providers, ", "),
			"version":    version,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *actx.Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	c.kong.Stdout = appCtx.Stdout
	c.kong.Stderr = appCtx.Stderr

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(appCtx, &c.Globals)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}

// ApplyEnv applies values from the process environment to the CLI, but only
// if they weren't already set.
func (c *CLI) ApplyEnv(env actx.Environment) {
	if env == nil {
		return
	}
	if v := env.Get(actx.EnvProvider); c.Provider == "" && v != "" {
		c.Provider = v
	}
	if v := env.Get(actx.EnvConnection); c.Connection == "" && v != "" {
		c.Connection = v
	}
	if v := env.Get(actx.EnvDir); len(c.Dir) == 0 && v != "" {
		c.Dir = filepath.SplitList(v)
	}
	if v := env.Get(actx.EnvTable); c.Table == "" && v != "" {
		c.Table = v
	}
}

// ApplyConfig applies configuration values to the CLI, but only if they weren't
// already set.
func (c *CLI) ApplyConfig(cfg *config.Config) {
	if c.Provider == "" && cfg.Database.Provider.Valid {
		c.Provider = string(cfg.Database.Provider.V)
	}
	if c.Connection == "" && cfg.Database.Connection.Valid {
		c.Connection = cfg.Database.Connection.V
	}
	if c.ConnectTimeout == 0 && cfg.Database.ConnectTimeout.Valid {
		c.ConnectTimeout = cfg.Database.ConnectTimeout.V
	}
	if len(c.Dir) == 0 {
		c.Dir = cfg.Migrations.Dirs
	}
	if c.Table == "" && cfg.Migrations.Table.Valid {
		c.Table = cfg.Migrations.Table.V
	}
	if c.Migrate.TxMode == "" && cfg.Run.TransactionMode.Valid {
		c.Migrate.TxMode = string(cfg.Run.TransactionMode.V)
	}
}
