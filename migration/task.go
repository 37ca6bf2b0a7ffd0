package migration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.hackfix.me/dbshift/provider"
)

// Latest is the Task target that selects the highest loaded version.
const Latest int64 = -1

// Task is a complete migration run, as requested by a command line or build
// tool. It resolves the provider, loads the catalog, and runs it to the target
// version.
type Task struct {
	// Provider is the backend identity, e.g. "postgresql".
	Provider         string
	ConnectionString string
	Sources          []Source
	// To is the target version, or Latest.
	To int64
	// Trace enables the diagnostic messages of the run.
	Trace bool
	// TxMode defaults to TxPerMigration.
	TxMode TxMode
	// VersionTable defaults to DefaultVersionTable.
	VersionTable string
	// LockKey defaults to the version table name.
	LockKey string
	// ConnectTimeout limits the time spent connecting to the database. Zero
	// means no limit.
	ConnectTimeout time.Duration
	// Logger receives the run events. If nil, they're written to SlogLogger.
	Logger Logger
	// SlogLogger is used for run events if Logger is nil, and for provider
	// statements. It defaults to slog.Default().
	SlogLogger *slog.Logger
	// Registry defaults to provider.DefaultRegistry().
	Registry *provider.Registry
	// ProviderOptions are applied to the resolved provider, after its logger
	// is set.
	ProviderOptions []provider.Option
}

// Execute runs the task. Catalog and provider errors are returned before any
// connection or transaction is made.
func (t *Task) Execute(ctx context.Context) error {
	catalog, err := LoadCatalog(t.Sources...)
	if err != nil {
		return err
	}

	r, closeFn, err := t.Runner(ctx, catalog)
	if err != nil {
		return err
	}

	err = t.run(ctx, r, catalog)
	if cerr := closeFn(); cerr != nil {
		return errors.Join(err, cerr)
	}

	return err
}

func (t *Task) run(ctx context.Context, r *Runner, catalog *Catalog) error {
	if t.To == Latest {
		return r.MigrateToLast(ctx)
	}
	if t.To < 0 {
		return ErrInvalidTarget
	}
	if t.To > catalog.Max() {
		r.logger.Trace("target version is above the latest migration",
			"target", t.To, "latest", catalog.Max())
	}
	return r.MigrateTo(ctx, t.To)
}

// Runner resolves the provider and returns a Runner configured by the task
// for the catalog. The returned function closes the provider.
func (t *Task) Runner(ctx context.Context, catalog *Catalog) (*Runner, func() error, error) {
	registry := t.Registry
	if registry == nil {
		registry = provider.DefaultRegistry()
	}
	slogger := t.SlogLogger
	if slogger == nil {
		slogger = slog.Default()
	}

	connCtx := ctx
	if t.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, t.ConnectTimeout)
		defer cancel()
	}
	popts := append([]provider.Option{provider.WithLogger(slogger)}, t.ProviderOptions...)
	p, _, err := registry.Resolve(connCtx, t.Provider, t.ConnectionString, popts...)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // Already descriptive.
	}

	logger := t.Logger
	if logger == nil {
		logger = NewSlogLogger(slogger.With("component", "runner"), t.Trace)
	}
	opts := []Option{WithLogger(logger)}
	if t.TxMode != "" {
		opts = append(opts, WithTransactionMode(t.TxMode))
	}
	if t.VersionTable != "" {
		opts = append(opts, WithVersionTable(t.VersionTable))
	}
	if t.LockKey != "" {
		opts = append(opts, WithLockKey(t.LockKey))
	}

	r, err := NewRunner(p, catalog, opts...)
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}

	return r, p.Close, nil
}
