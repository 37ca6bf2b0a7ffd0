package sqlfile_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbshift/migration"
	"go.hackfix.me/dbshift/migration/sqlfile"
	"go.hackfix.me/dbshift/provider"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		exp    []string
	}{
		{name: "ok/empty", script: " \n ", exp: nil},
		{
			name:   "ok/multiple",
			script: "CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);\n",
			exp:    []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
		{
			name:   "ok/no_trailing_semicolon",
			script: "DROP TABLE a",
			exp:    []string{"DROP TABLE a"},
		},
		{
			name:   "ok/quoted_semicolons",
			script: `INSERT INTO a VALUES ('x;y', 'it''s;'); SELECT "a;b", ` + "`c;d`" + ` FROM t;`,
			exp: []string{
				`INSERT INTO a VALUES ('x;y', 'it''s;')`,
				`SELECT "a;b", ` + "`c;d`" + ` FROM t`,
			},
		},
		{
			name:   "ok/comments",
			script: "-- first; statement\nCREATE TABLE a (id INT); /* drop; it */ DROP TABLE b;\n-- trailing",
			exp:    []string{"CREATE TABLE a (id INT)", "DROP TABLE b"},
		},
		{
			name: "ok/dollar_quoted",
			script: "CREATE FUNCTION f() RETURNS INT AS $body$ BEGIN RETURN 1; END; $body$ LANGUAGE plpgsql;" +
				"SELECT $$a;b$$, $1;",
			exp: []string{
				"CREATE FUNCTION f() RETURNS INT AS $body$ BEGIN RETURN 1; END; $body$ LANGUAGE plpgsql",
				"SELECT $$a;b$$, $1",
			},
		},
		{
			name:   "ok/unterminated_quote",
			script: "SELECT 'a; b",
			exp:    []string{"SELECT 'a; b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.exp, sqlfile.Split(tt.script))
		})
	}
}

func newFS(t *testing.T, files map[string]string) vfs.FileSystem {
	t.Helper()
	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll("migrations", 0o755))
	for name, content := range files {
		require.NoError(t, vfs.WriteFile(fs, vfs.Join(fs, "migrations", name), []byte(content), 0o644))
	}
	return fs
}

func TestSourceMigrations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		files    map[string]string
		expNames []string
		expErr   string
	}{
		{
			name: "ok/sorted",
			files: map[string]string{
				"10-ten.up.sql":           "SELECT 1;",
				"10-ten.down.sql":         "SELECT 1;",
				"2-two.up.sql":            "SELECT 1;",
				"2-two.down.sql":          "SELECT 1;",
				"3-three.up.sqlite.sql":   "SELECT 1;",
				"3-three.down.sqlite.sql": "SELECT 1;",
				"README.md":               "ignored",
			},
			expNames: []string{"two", "three", "ten"},
		},
		{
			name: "ok/variant_alias",
			files: map[string]string{
				"1-a.up.sql":          "",
				"1-a.down.sql":        "",
				"1-a.up.postgres.sql": "",
				"1-a.down.pg.sql":     "",
			},
			expNames: []string{"a"},
		},
		{
			name:   "err/missing_down",
			files:  map[string]string{"1-a.up.sql": ""},
			expErr: "failed loading migration 1 from migrations: missing down file for migration 'a'",
		},
		{
			name:   "err/missing_up",
			files:  map[string]string{"1-a.down.sql": ""},
			expErr: "failed loading migration 1 from migrations: missing up file for migration 'a'",
		},
		{
			name: "err/missing_variant_down",
			files: map[string]string{
				"1-a.up.sql": "", "1-a.down.sql": "", "1-a.up.mysql.sql": "",
			},
			expErr: "failed loading migration 1 from migrations: missing down file for migration 'a' on mysql",
		},
		{
			name:   "err/invalid_version",
			files:  map[string]string{"one-a.up.sql": ""},
			expErr: "failed loading migrations from migrations: invalid version 'one' in file name 'one-a.up.sql'",
		},
		{
			name:  "err/invalid_name",
			files: map[string]string{"1_a.sql": ""},
			expErr: "failed loading migrations from migrations: invalid migration file name '1_a.sql', " +
				"expected '{version}-{name}.{up|down}.sql'",
		},
		{
			name:   "err/unknown_provider",
			files:  map[string]string{"1-a.up.db2.sql": ""},
			expErr: "failed loading migration 1 from migrations: invalid file name '1-a.up.db2.sql': unsupported database provider 'db2'",
		},
		{
			name:   "err/duplicate_variant",
			files:  map[string]string{"1-a.up.sqlite.sql": "", "1-a.up.sqlite3.sql": ""},
			expErr: "failed loading migration 1 from migrations: files '1-a.up.sqlite.sql' and '1-a.up.sqlite3.sql' are both up scripts for sqlite",
		},
		{
			name:   "err/conflicting_names",
			files:  map[string]string{"1-a.up.sql": "", "1-b.down.sql": ""},
			expErr: "duplicate migration version 1: 'a' and 'b'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := sqlfile.New(newFS(t, tt.files), "migrations")
			migrations, err := src.Migrations()
			if tt.expErr != "" {
				require.Error(t, err)
				assert.EqualError(t, err, tt.expErr)
				return
			}

			require.NoError(t, err)
			names := make([]string, 0, len(migrations))
			for _, m := range migrations {
				names = append(names, m.Name())
			}
			assert.Equal(t, tt.expNames, names)
		})
	}

	t.Run("err/missing_dir", func(t *testing.T) {
		t.Parallel()
		_, err := sqlfile.New(memoryfs.New(), "nope").Migrations()
		require.Error(t, err)
		assert.True(t, sqlfile.IsNotExist(err))
	})
}

func newTestProvider(t *testing.T) *provider.Provider {
	t.Helper()
	rndName := make([]byte, 12)
	_, err := rand.Read(rndName)
	require.NoError(t, err)
	dsn := fmt.Sprintf("file:dbshift-%x?mode=memory&cache=shared", rndName)

	p, _, err := provider.DefaultRegistry().Resolve(context.Background(), "sqlite", dsn,
		provider.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestSourceRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := newFS(t, map[string]string{
		"1-users.up.sql": `
			CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
			INSERT INTO users (id, name) VALUES (1, 'semi;colon');`,
		"1-users.down.sql": "DROP TABLE users;",
		// The generic script would fail on SQLite.
		"2-audit.up.sql":             "CREATE TABLE audit (at TIMESTAMPTZ) WITH (fillfactor = 70);",
		"2-audit.down.sql":           "DROP TABLE audit;",
		"2-audit.up.sqlite.sql":      "CREATE TABLE audit (at TEXT);",
		"2-audit.down.sqlite.sql":    "DROP TABLE audit;",
		"3-tags.up.postgresql.sql":   "CREATE TABLE tags (id SERIAL PRIMARY KEY);",
		"3-tags.down.postgresql.sql": "DROP TABLE tags;",
		"4-broken.up.sql":            "CREATE TABLE broken (id INT); CREATE TABLE broken (id INT);",
		"4-broken.down.sql":          "",
	})

	catalog, err := migration.LoadCatalog(sqlfile.New(fs, "migrations"))
	require.NoError(t, err)

	p := newTestProvider(t)
	r, err := migration.NewRunner(p, catalog)
	require.NoError(t, err)

	require.NoError(t, r.MigrateTo(ctx, 3))
	for table, exp := range map[string]bool{"users": true, "audit": true, "tags": false} {
		exists, err := p.TableExists(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, exp, exists, "table %s", table)
	}
	name, err := p.ExecuteScalar(ctx, "SELECT name FROM users WHERE id = 1")
	require.NoError(t, err)
	assert.Equal(t, "semi;colon", name)

	err = r.MigrateToLast(ctx)
	var merr *migration.MigrationFailedError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, int64(4), merr.Version)
	assert.ErrorContains(t, err, "failed executing statement 2 of '4-broken.up.sql'")
	var serr *provider.SQLExecutionError
	require.ErrorAs(t, err, &serr)
	exists, err := p.TableExists(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, r.MigrateTo(ctx, 0))
	for _, table := range []string{"users", "audit", "tags"} {
		exists, err := p.TableExists(ctx, table)
		require.NoError(t, err)
		assert.False(t, exists, "table %s", table)
	}
}

func TestSourceCreate(t *testing.T) {
	t.Parallel()

	t.Run("ok/new_dir", func(t *testing.T) {
		t.Parallel()
		fs := memoryfs.New()
		src := sqlfile.New(fs, "db/migrations")

		version, up, down, err := src.Create("add_users", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), version)
		assert.Equal(t, "db/migrations/1-add_users.up.sql", up)
		assert.Equal(t, "db/migrations/1-add_users.down.sql", down)

		data, err := vfs.ReadFile(fs, up)
		require.NoError(t, err)
		assert.Equal(t, "-- Apply add_users\n", string(data))

		version, _, down, err = src.Create("add_roles", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), version)
		assert.Equal(t, "db/migrations/2-add_roles.down.sql", down)

		migrations, err := src.Migrations()
		require.NoError(t, err)
		assert.Len(t, migrations, 2)
	})

	t.Run("ok/after_highest", func(t *testing.T) {
		t.Parallel()
		src := sqlfile.New(newFS(t, map[string]string{
			"20-a.up.sql": "", "20-a.down.sql": "", "3-b.up.sql": "", "3-b.down.sql": "",
		}), "migrations")
		version, _, _, err := src.Create("c", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(21), version)

		version, _, _, err = src.Create("d", 40)
		require.NoError(t, err)
		assert.Equal(t, int64(41), version)
	})

	t.Run("err/invalid_name", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := sqlfile.New(memoryfs.New(), "migrations").Create(" ", 0)
		assert.EqualError(t, err, "invalid migration name ''")
		_, _, _, err = sqlfile.New(memoryfs.New(), "migrations").Create("a/b", 0)
		assert.EqualError(t, err, "invalid migration name 'a/b'")
	})

	t.Run("err/invalid_dir", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := sqlfile.New(newFS(t, map[string]string{"1-a.up.sql": ""}), "migrations").Create("b", 0)
		assert.EqualError(t, err, "failed loading migration 1 from migrations: missing down file for migration 'a'")
	})
}
