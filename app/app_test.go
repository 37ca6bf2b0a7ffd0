package app

import (
	"encoding/json"
	"testing"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbshift/app/config"
	aerrors "go.hackfix.me/dbshift/app/errors"
	"go.hackfix.me/dbshift/provider"
)

var testMigrations = map[string]string{
	"1-users.up.sql":   "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);",
	"1-users.down.sql": "DROP TABLE users;",
	"2-posts.up.sql": `
		CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users (id));
		CREATE INDEX ix_posts_user_id ON posts (user_id);`,
	"2-posts.down.sql":       "DROP TABLE posts;",
	"3-tags.up.sql":          "CREATE TABLE tags (name TEXT NOT NULL);",
	"3-tags.down.sql":        "DROP TABLE tags;",
	"3-tags.up.sqlite.sql":   "CREATE TABLE tags (name TEXT NOT NULL) STRICT;",
	"3-tags.down.sqlite.sql": "DROP TABLE tags;",
}

func writeConfig(t *testing.T, app *testApp, cfgJSON string) {
	t.Helper()
	require.NoError(t, vfs.WriteFile(app.fs, "/config.json", []byte(cfgJSON), 0o644))
}

func TestAppMigrate(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.writeFiles(t, "/migrations", testMigrations)
	writeConfig(t, app, `{
		"database": {"provider": "sqlite", "connection": "`+app.dsn+`"},
		"migrations": {"dirs": ["/migrations"]}
	}`)

	// The steps share the database, so they run in order.
	tests := []struct {
		name      string
		args      []string
		files     map[string]string
		expStdout []string
		expStderr []string
		expTables map[string]bool
		expErr    string
	}{
		{
			name: "ok/status_empty",
			args: []string{"status"},
			expStdout: []string{
				"Current version: 0",
				"3 migration(s) to apply to reach version 3.",
			},
		},
		{
			name: "ok/latest",
			args: []string{"migrate"},
			expStderr: []string{
				"running migration", "finished migration", "name=posts",
				"migration run finished", "target=latest",
			},
			expTables: map[string]bool{"users": true, "posts": true, "tags": true},
		},
		{
			name:      "ok/status_up_to_date",
			args:      []string{"status"},
			expStdout: []string{"users", "posts", "tags", "Current version: 3", "Schema is up to date."},
		},
		{
			name:      "ok/status_plan",
			args:      []string{"status", "--to", "1"},
			expStdout: []string{"revert", "2 migration(s) to revert to reach version 1."},
		},
		{
			name:      "ok/revert_run_tx",
			args:      []string{"migrate", "--to", "1", "--tx-mode", "run", "--trace"},
			expStderr: []string{"planned run", "direction=backward", "target=1"},
			expTables: map[string]bool{"users": true, "posts": false, "tags": false},
		},
		{
			name:      "ok/noop",
			args:      []string{"migrate", "--to", "1"},
			expTables: map[string]bool{"users": true, "posts": false},
		},
		{
			name: "err/failed_migration",
			args: []string{"migrate"},
			files: map[string]string{
				"4-broken.up.sql":   "CREATE TABLE audit (id INTEGER); CREATE TABLE users (id INTEGER);",
				"4-broken.down.sql": "DROP TABLE audit;",
			},
			expErr:    "migration failed",
			expTables: map[string]bool{"users": true, "posts": true, "tags": true, "audit": false},
		},
		{
			name:   "err/invalid_target",
			args:   []string{"migrate", "--to", "next"},
			expErr: "invalid target version 'next': expected 'latest' or a non-negative integer",
		},
		{
			name:   "err/invalid_tx_mode",
			args:   []string{"migrate", "--tx-mode", "bulk"},
			expErr: "invalid transaction mode 'bulk'",
		},
		{
			name:   "err/unknown_provider",
			args:   []string{"migrate", "--provider", "informix"},
			expErr: "unknown database provider 'informix'",
		},
	}

	for _, tt := range tests {
		if !t.Run(tt.name, func(t *testing.T) {
			app.writeFiles(t, "/migrations", tt.files)

			err := app.Run(tt.args...)
			if tt.expErr != "" {
				assert.ErrorContains(t, err, tt.expErr)
			} else {
				require.NoError(t, err)
			}

			stdout, stderr := app.stdout.String(), app.stderr.String()
			for _, exp := range tt.expStdout {
				assert.Contains(t, stdout, exp)
			}
			for _, exp := range tt.expStderr {
				assert.Contains(t, stderr, exp)
			}
			for table, exp := range tt.expTables {
				assert.Equal(t, exp, app.tableExists(t, table), "table %s", table)
			}
		}) {
			return
		}
	}
}

func TestAppMigrateFailureDetails(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.writeFiles(t, "/migrations", map[string]string{
		"1-users.up.sql":   "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		"1-users.down.sql": "DROP TABLE users;",
		"2-dup.up.sql":     "INSERT INTO users (id) VALUES (1); INSERT INTO users (id) VALUES (1);",
		"2-dup.down.sql":   "DELETE FROM users;",
	})
	require.NoError(t, app.env.Set("DBSHIFT_PROVIDER", "sqlite"))
	require.NoError(t, app.env.Set("DBSHIFT_CONNECTION", app.dsn))
	require.NoError(t, app.env.Set("DBSHIFT_DIR", "/migrations"))

	err := app.Run("migrate")
	var serr *aerrors.StructuredError
	require.ErrorAs(t, err, &serr)
	assert.EqualError(t, serr, "migration failed")

	md := serr.Metadata()
	assert.Equal(t, int64(2), md["version"])
	assert.Equal(t, "dup", md["name"])
	assert.Equal(t, "forward", md["direction"])
	assert.Equal(t, "INSERT INTO users (id) VALUES (1)", md["query"])
	// SQLITE_CONSTRAINT_PRIMARYKEY
	assert.Equal(t, "1555", md["code"])

	var xerr *provider.SQLExecutionError
	require.ErrorAs(t, serr.Cause(), &xerr)

	// Version 1 stays applied.
	assert.True(t, app.tableExists(t, "users"))
	count, err := app.db.ExecuteScalar(t.Context(), "SELECT COUNT(*) FROM users")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestAppSettings(t *testing.T) {
	t.Parallel()

	t.Run("ok/env_over_config", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t)
		app.writeFiles(t, "/sql", testMigrations)
		writeConfig(t, app, `{"database": {"provider": "mysql", "connection": "nope"}}`)
		require.NoError(t, app.env.Set("DBSHIFT_PROVIDER", "SQLite"))
		require.NoError(t, app.env.Set("DBSHIFT_CONNECTION", app.dsn))
		require.NoError(t, app.env.Set("DBSHIFT_DIR", "/sql"))
		require.NoError(t, app.env.Set("DBSHIFT_TABLE", "versions"))

		require.NoError(t, app.Run("migrate", "--to", "2"))
		assert.True(t, app.tableExists(t, "posts"))
		assert.True(t, app.tableExists(t, "versions"))
		assert.False(t, app.tableExists(t, "schema_info"))
	})

	t.Run("ok/flags_over_env", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t)
		app.writeFiles(t, "/sql", testMigrations)
		require.NoError(t, app.env.Set("DBSHIFT_PROVIDER", "oracle"))
		require.NoError(t, app.env.Set("DBSHIFT_DIR", "/nope"))

		require.NoError(t, app.Run("migrate", "--provider", "sqlite3", "--connection", app.dsn,
			"--dir", "/sql", "--connect-timeout", "1m"))
		assert.True(t, app.tableExists(t, "tags"))
		assert.Contains(t, app.stderr.String(), "target=latest")
	})

	t.Run("ok/missing_dir", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t)
		require.NoError(t, app.Run("migrate", "--provider", "sqlite", "--connection", app.dsn))
		assert.Contains(t, app.stderr.String(), "migrations directory doesn't exist")
		assert.True(t, app.tableExists(t, "schema_info"))
	})

	t.Run("err/no_provider", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t)
		err := app.Run("migrate")
		assert.EqualError(t, err, "no database provider is set")
		var rerr *aerrors.RuntimeError
		require.ErrorAs(t, err, &rerr)
		assert.Contains(t, rerr.Hint(), "DBSHIFT_PROVIDER")
	})

	t.Run("err/no_connection", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t)
		err := app.Run("status", "--provider", "sqlite")
		assert.EqualError(t, err, "no database connection string is set")
	})

	t.Run("err/invalid_config", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t)
		writeConfig(t, app, `{"run": {"transaction_mode": "sometimes"}}`)
		err := app.Run("status")
		assert.EqualError(t, err, "failed parsing configuration file: invalid transaction mode 'sometimes'")
	})

	t.Run("err/invalid_timeout", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t)
		err := app.Run("migrate", "--connect-timeout", "soon")
		assert.ErrorContains(t, err, "invalid duration 'soon'")
	})
}

func TestAppCreate(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	require.NoError(t, app.env.Set("DBSHIFT_DIR", "/db/migrations"))

	require.NoError(t, app.Run("create", "add_users"))
	assert.Equal(t, "Created migration 1:\n"+
		"  /db/migrations/1-add_users.up.sql\n"+
		"  /db/migrations/1-add_users.down.sql\n", app.stdout.String())

	require.NoError(t, app.Run("create", "add_posts"))
	assert.Contains(t, app.stdout.String(), "Created migration 2:")
	_, err := app.fs.Stat("/db/migrations/2-add_posts.down.sql")
	require.NoError(t, err)

	err = app.Run("create", "bad/name")
	assert.EqualError(t, err, "failed creating migration: invalid migration name 'bad/name'")

	err = app.Run("create")
	assert.ErrorContains(t, err, `failed parsing CLI arguments: expected "<name>"`)
}

func TestAppInit(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	require.NoError(t, app.Run("init", "--provider", "pg", "--connection", "postgres://localhost/app",
		"--dir", "/db/migrations", "--table", "versions"))
	assert.Contains(t, app.stderr.String(), "wrote configuration file")

	data, err := vfs.ReadFile(app.fs, "/config.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"database": {
			"provider": "postgresql",
			"connection": "postgres://localhost/app",
			"connect_timeout": "30s"
		},
		"migrations": {"dirs": ["/db/migrations"], "table": "versions"},
		"run": {"transaction_mode": "migration"}
	}`, string(data))

	var cfg config.Config
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, "postgres://localhost/app", cfg.Database.Connection.V)

	fi, err := app.fs.Stat("/db/migrations")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	err = app.Run("init")
	assert.EqualError(t, err, "configuration file '/config.json' already exists")

	require.NoError(t, app.Run("init", "--force", "--provider", "sqlite", "--connection", app.dsn))
	data, err = vfs.ReadFile(app.fs, "/config.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"provider": "sqlite"`)
	// Values not given on the command line are kept from the loaded file.
	assert.Contains(t, string(data), `"table": "versions"`)

	err = app.Run("init", "--force", "--provider", "db2")
	assert.ErrorContains(t, err, "invalid database provider: unsupported database provider 'db2'")
}

func TestAppStatusSkipped(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.writeFiles(t, "/migrations", map[string]string{
		"1-users.up.sql":   "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		"1-users.down.sql": "DROP TABLE users;",
		"3-tags.up.sql":    "CREATE TABLE tags (name TEXT);",
		"3-tags.down.sql":  "DROP TABLE tags;",
	})
	writeConfig(t, app, `{
		"database": {"provider": "sqlite", "connection": "`+app.dsn+`"},
		"migrations": {"dirs": ["/migrations"]}
	}`)
	require.NoError(t, app.Run("migrate"))

	app.writeFiles(t, "/migrations", map[string]string{
		"2-posts.up.sql":   "CREATE TABLE posts (id INTEGER PRIMARY KEY);",
		"2-posts.down.sql": "DROP TABLE posts;",
	})
	require.NoError(t, app.Run("status"))

	stdout := app.stdout.String()
	assert.Contains(t, stdout, "skipped")
	assert.Contains(t, stdout, "Current version: 3")
	assert.Contains(t, stdout,
		"1 migration(s) older than the current version aren't applied and will be skipped.")
	assert.Contains(t, stdout, "Schema is up to date.")

	require.NoError(t, app.Run("migrate"))
	assert.False(t, app.tableExists(t, "posts"))
}
