package migration_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbshift/dialect"
	"go.hackfix.me/dbshift/migration"
	"go.hackfix.me/dbshift/provider"
)

func TestTaskExecute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ok/latest_then_target", func(t *testing.T) {
		t.Parallel()
		dsn := memDSN(t)
		// Keeps the in-memory database alive between tasks.
		verifier := newTestProvider(t, dsn)

		rec := &recorder{}
		reg := migration.NewRegistry()
		for _, m := range tableMigrations(rec, 1, 2) {
			reg.RegisterFactory(m.Version(), func() migration.Migration { return m })
		}
		src := migration.List(tableMigrations(rec, 3))

		var buf bytes.Buffer
		task := &migration.Task{
			Provider:         "SQLite",
			ConnectionString: dsn,
			Sources:          []migration.Source{reg, src},
			To:               migration.Latest,
			Trace:            true,
			SlogLogger:       slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		}
		require.NoError(t, task.Execute(ctx))
		requireTables(t, verifier, map[string]bool{"t1": true, "t2": true, "t3": true})
		assert.Contains(t, buf.String(), "finished migration")
		assert.Contains(t, buf.String(), "planned run")

		task.To = 1
		task.TxMode = migration.TxPerRun
		require.NoError(t, task.Execute(ctx))
		requireTables(t, verifier, map[string]bool{"t1": true, "t2": false, "t3": false})
		assert.Equal(t, []string{"apply 1", "apply 2", "apply 3", "revert 3", "revert 2"}, rec.get())
	})

	t.Run("err/catalog_before_connection", func(t *testing.T) {
		t.Parallel()
		var calls int
		registry := provider.NewRegistry()
		registry.Register(dialect.SQLite, func(context.Context, string) (*sql.DB, error) {
			calls++
			return nil, errors.New("unexpected")
		})
		task := &migration.Task{
			Provider: "sqlite",
			Sources: []migration.Source{migration.List{
				migration.New(1, "a", noop, noop), migration.New(1, "b", noop, noop),
			}},
			Registry: registry,
			To:       migration.Latest,
		}
		var derr *migration.DuplicateVersionError
		require.ErrorAs(t, task.Execute(ctx), &derr)
		assert.Equal(t, 0, calls)
	})

	t.Run("err/unknown_provider", func(t *testing.T) {
		t.Parallel()
		task := &migration.Task{Provider: "informix", To: migration.Latest}
		var uerr *provider.UnknownProviderError
		require.ErrorAs(t, task.Execute(ctx), &uerr)
		assert.Equal(t, "informix", uerr.Identity)
	})

	t.Run("err/invalid_target", func(t *testing.T) {
		t.Parallel()
		task := &migration.Task{
			Provider: "sqlite", ConnectionString: memDSN(t), To: -3,
			SlogLogger: slog.New(slog.DiscardHandler),
		}
		assert.ErrorIs(t, task.Execute(ctx), migration.ErrInvalidTarget)
	})
}

func TestSlogLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	step := migration.Step{Version: 7, Name: "add_users", Direction: migration.Forward}

	quiet := migration.NewSlogLogger(logger, false)
	quiet.Trace("hidden")
	quiet.Started(step)
	quiet.Finished(step)
	quiet.Error(step, errors.New("nope"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `level=INFO msg="running migration" version=7 name=add_users direction=forward`)
	assert.Contains(t, out, `msg="finished migration"`)
	assert.Contains(t, out, `level=ERROR msg="migration failed" version=7 name=add_users direction=forward error=nope`)

	buf.Reset()
	migration.NewSlogLogger(logger, true).Trace("shown", "key", 1)
	assert.Contains(t, buf.String(), `level=DEBUG msg=shown key=1`)
}
