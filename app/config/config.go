package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/dbshift/dialect"
	"go.hackfix.me/dbshift/migration"
	"go.hackfix.me/dbshift/xtime"
)

// Config represents the application configuration, backed by a filesystem for
// persistence.
type Config struct {
	Database   Database
	Migrations Migrations
	Run        Run

	fs   vfs.FileSystem
	path string
}

// NewConfig creates a new Config instance with the specified filesystem
// and configuration file path.
func NewConfig(fs vfs.FileSystem, path string) *Config {
	return &Config{fs: fs, path: path}
}

// Load reads and parses the configuration file from the filesystem.
// If the file doesn't exist, it initializes with an empty configuration.
func (c *Config) Load() error {
	configJSON, err := vfs.ReadFile(c.fs, c.path)
	if err != nil && !vfs.IsErrNotExist(err) {
		return fmt.Errorf("failed reading configuration file: %w", err)
	}

	// Ensure that unmarshalling JSON doesn't fail if the file doesn't exist or is empty.
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}

	if err = json.Unmarshal(configJSON, c); err != nil {
		return fmt.Errorf("failed parsing configuration file: %w", err)
	}

	return nil
}

// Path returns the filesystem path where the configuration is stored.
func (c *Config) Path() string {
	return c.path
}

// Save writes the current configuration to the filesystem as JSON.
func (c *Config) Save() error {
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed creating configuration directory: %w", err)
	}
	configJSON, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed serializing configuration data: %w", err)
	}
	if err = vfs.WriteFile(c.fs, c.path, configJSON, 0o600); err != nil {
		return fmt.Errorf("failed writing configuration file: %w", err)
	}

	return nil
}

// Database defines the connection to the migrated database.
type Database struct {
	// Provider is the database backend, e.g. "postgresql".
	Provider sql.Null[dialect.Name] `json:"provider"`
	// Connection is the driver-specific connection string.
	Connection sql.Null[string] `json:"connection"`
	// ConnectTimeout is the maximum time to wait for the connection to be
	// established. It serializes from/to xtime.Duration string values.
	ConnectTimeout sql.Null[time.Duration] `json:"connect_timeout"`
}

// Migrations defines where migrations are loaded from, and where their state
// is stored.
type Migrations struct {
	// Dirs are the directories of SQL migration files.
	Dirs []string `json:"dirs"`
	// Table is the name of the table that records applied versions.
	Table sql.Null[string] `json:"table"`
}

// Run defines options of migration runs.
type Run struct {
	// TransactionMode is either "migration" or "run".
	TransactionMode sql.Null[migration.TxMode] `json:"transaction_mode"`
	// LockKey identifies the run lock. It defaults to the version table name.
	LockKey sql.Null[string] `json:"lock_key"`
}

type cfgWrapper struct {
	Database   dbCfgWrapper         `json:"database"`
	Migrations migrationsCfgWrapper `json:"migrations"`
	Run        runCfgWrapper        `json:"run"`
}
type dbCfgWrapper struct {
	Provider       string `json:"provider,omitempty"`
	Connection     string `json:"connection,omitempty"`
	ConnectTimeout string `json:"connect_timeout,omitempty"`
}
type migrationsCfgWrapper struct {
	Dirs  []string `json:"dirs,omitempty"`
	Table string   `json:"table,omitempty"`
}
type runCfgWrapper struct {
	TransactionMode string `json:"transaction_mode,omitempty"`
	LockKey         string `json:"lock_key,omitempty"`
}

// MarshalJSON implements custom JSON marshaling to convert sql.Null values
// to their underlying types, omitting invalid/null fields from the output.
func (c Config) MarshalJSON() ([]byte, error) {
	w := cfgWrapper{}

	if c.Database.Provider.Valid {
		w.Database.Provider = string(c.Database.Provider.V)
	}
	if c.Database.Connection.Valid {
		w.Database.Connection = c.Database.Connection.V
	}
	if c.Database.ConnectTimeout.Valid {
		w.Database.ConnectTimeout = xtime.FormatDuration(c.Database.ConnectTimeout.V, time.Second)
	}

	w.Migrations.Dirs = c.Migrations.Dirs
	if c.Migrations.Table.Valid {
		w.Migrations.Table = c.Migrations.Table.V
	}

	if c.Run.TransactionMode.Valid {
		w.Run.TransactionMode = string(c.Run.TransactionMode.V)
	}
	if c.Run.LockKey.Valid {
		w.Run.LockKey = c.Run.LockKey.V
	}

	//nolint:wrapcheck // This is fine.
	return json.Marshal(w)
}

// UnmarshalJSON implements custom JSON unmarshaling to convert plain values
// into sql.Null types and parse duration strings into time.Duration values.
func (c *Config) UnmarshalJSON(data []byte) error {
	var w cfgWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	if w.Database.Provider != "" {
		name, err := dialect.ParseName(w.Database.Provider)
		if err != nil {
			return err //nolint:wrapcheck // Already descriptive.
		}
		c.Database.Provider = sql.Null[dialect.Name]{V: name, Valid: true}
	}
	if w.Database.Connection != "" {
		c.Database.Connection = sql.Null[string]{V: w.Database.Connection, Valid: true}
	}
	if w.Database.ConnectTimeout != "" {
		dur, err := xtime.ParseDuration(w.Database.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("failed parsing database connect timeout: %w", err)
		}
		c.Database.ConnectTimeout = sql.Null[time.Duration]{V: dur, Valid: true}
	}

	if len(w.Migrations.Dirs) > 0 {
		c.Migrations.Dirs = w.Migrations.Dirs
	}
	if w.Migrations.Table != "" {
		c.Migrations.Table = sql.Null[string]{V: w.Migrations.Table, Valid: true}
	}

	if w.Run.TransactionMode != "" {
		mode, err := migration.TxModeFromString(w.Run.TransactionMode)
		if err != nil {
			return err //nolint:wrapcheck // Already descriptive.
		}
		c.Run.TransactionMode = sql.Null[migration.TxMode]{V: mode, Valid: true}
	}
	if w.Run.LockKey != "" {
		c.Run.LockKey = sql.Null[string]{V: w.Run.LockKey, Valid: true}
	}

	return nil
}

// SetDefaults sets default configuration values if they weren't set already.
func (c *Config) SetDefaults() {
	if !c.Database.ConnectTimeout.Valid {
		c.Database.ConnectTimeout = sql.Null[time.Duration]{V: 30 * time.Second, Valid: true}
	}
	if len(c.Migrations.Dirs) == 0 {
		c.Migrations.Dirs = []string{"migrations"}
	}
	if !c.Migrations.Table.Valid {
		c.Migrations.Table = sql.Null[string]{V: migration.DefaultVersionTable, Valid: true}
	}
	if !c.Run.TransactionMode.Valid {
		c.Run.TransactionMode = sql.Null[migration.TxMode]{V: migration.TxPerMigration, Valid: true}
	}
}
