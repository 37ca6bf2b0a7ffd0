package config

import (
	"database/sql"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbshift/dialect"
	"go.hackfix.me/dbshift/migration"
)

func TestConfigLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfgJSON  string
		expCfg   func(*Config)
		expErrRx string
	}{
		{
			name:    "ok/missing_file",
			cfgJSON: "",
			expCfg:  func(*Config) {},
		},
		{
			name: "ok/full",
			cfgJSON: `{
				"database": {"provider": "Postgres", "connection": "postgres://localhost/app", "connect_timeout": "1m30s"},
				"migrations": {"dirs": ["db/a", "db/b"], "table": "versions"},
				"run": {"transaction_mode": "RUN", "lock_key": "app"}
			}`,
			expCfg: func(c *Config) {
				c.Database.Provider = sql.Null[dialect.Name]{V: dialect.PostgreSQL, Valid: true}
				c.Database.Connection = sql.Null[string]{V: "postgres://localhost/app", Valid: true}
				c.Database.ConnectTimeout = sql.Null[time.Duration]{V: 90 * time.Second, Valid: true}
				c.Migrations.Dirs = []string{"db/a", "db/b"}
				c.Migrations.Table = sql.Null[string]{V: "versions", Valid: true}
				c.Run.TransactionMode = sql.Null[migration.TxMode]{V: migration.TxPerRun, Valid: true}
				c.Run.LockKey = sql.Null[string]{V: "app", Valid: true}
			},
		},
		{
			name:    "ok/day_timeout",
			cfgJSON: `{"database": {"connect_timeout": "1d"}}`,
			expCfg: func(c *Config) {
				c.Database.ConnectTimeout = sql.Null[time.Duration]{V: 24 * time.Hour, Valid: true}
			},
		},
		{
			name:     "err/provider",
			cfgJSON:  `{"database": {"provider": "db2"}}`,
			expErrRx: `^failed parsing configuration file: unsupported database provider 'db2'$`,
		},
		{
			name:     "err/timeout",
			cfgJSON:  `{"database": {"connect_timeout": "soon"}}`,
			expErrRx: `^failed parsing configuration file: failed parsing database connect timeout: invalid duration`,
		},
		{
			name:     "err/tx_mode",
			cfgJSON:  `{"run": {"transaction_mode": "never"}}`,
			expErrRx: `invalid transaction mode 'never'$`,
		},
		{
			name:     "err/json",
			cfgJSON:  `{"database": `,
			expErrRx: `^failed parsing configuration file: `,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := memoryfs.New()
			if tt.cfgJSON != "" {
				require.NoError(t, vfs.WriteFile(fs, "/config.json", []byte(tt.cfgJSON), 0o644))
			}

			cfg := NewConfig(fs, "/config.json")
			err := cfg.Load()
			if tt.expErrRx != "" {
				require.Error(t, err)
				assert.Regexp(t, tt.expErrRx, err.Error())
				return
			}
			require.NoError(t, err)

			exp := NewConfig(fs, "/config.json")
			tt.expCfg(exp)
			assert.Equal(t, exp, cfg)
		})
	}
}

func TestConfigSaveLoad(t *testing.T) {
	t.Parallel()

	fs := memoryfs.New()
	cfg := NewConfig(fs, "/home/user/.config/dbshift/config.json")
	cfg.SetDefaults()
	cfg.Database.Provider = sql.Null[dialect.Name]{V: dialect.SQLite, Valid: true}
	cfg.Database.Connection = sql.Null[string]{V: "file:app.db", Valid: true}
	cfg.Database.ConnectTimeout = sql.Null[time.Duration]{V: 36 * time.Hour, Valid: true}
	require.NoError(t, cfg.Save())

	data, err := vfs.ReadFile(fs, cfg.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"database": {"provider": "sqlite", "connection": "file:app.db", "connect_timeout": "1d12h"},
		"migrations": {"dirs": ["migrations"], "table": "schema_info"},
		"run": {"transaction_mode": "migration"}
	}`, string(data))

	loaded := NewConfig(fs, cfg.Path())
	require.NoError(t, loaded.Load())
	assert.Equal(t, cfg, loaded)
}

func TestConfigSetDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(memoryfs.New(), "/config.json")
	cfg.Migrations.Table = sql.Null[string]{V: "versions", Valid: true}
	cfg.SetDefaults()

	assert.Equal(t, 30*time.Second, cfg.Database.ConnectTimeout.V)
	assert.Equal(t, []string{"migrations"}, cfg.Migrations.Dirs)
	assert.Equal(t, "versions", cfg.Migrations.Table.V)
	assert.Equal(t, migration.TxPerMigration, cfg.Run.TransactionMode.V)
	assert.False(t, cfg.Database.Provider.Valid)
	assert.False(t, cfg.Run.LockKey.Valid)
}
