package migration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nrednav/cuid2"
)

// TxMode determines the scope of transactions in a run.
type TxMode string

// Transaction modes.
const (
	// TxPerMigration commits each migration separately. A failed run keeps
	// the migrations that succeeded before the failure.
	TxPerMigration TxMode = "migration"
	// TxPerRun runs all migrations in a single transaction. A failed run
	// leaves the schema unchanged.
	TxPerRun TxMode = "run"
)

// TxModeFromString returns a valid TxMode from a string value.
func TxModeFromString(s string) (TxMode, error) {
	switch TxMode(strings.ToLower(s)) {
	case TxPerMigration:
		return TxPerMigration, nil
	case TxPerRun:
		return TxPerRun, nil
	}
	return "", fmt.Errorf("invalid transaction mode '%s'", s)
}

// Option is a function that allows configuring the Runner.
type Option func(*Runner) error

// WithLogger sets the sink of run events.
func WithLogger(logger Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			return errors.New("logger is required")
		}
		r.logger = logger
		return nil
	}
}

// WithTransactionMode sets the transaction mode.
func WithTransactionMode(mode TxMode) Option {
	return func(r *Runner) error {
		if _, err := TxModeFromString(string(mode)); err != nil {
			return err
		}
		r.txMode = mode
		return nil
	}
}

// WithVersionTable sets the name of the metadata table.
func WithVersionTable(table string) Option {
	return func(r *Runner) error {
		if table == "" {
			return errors.New("version table name is required")
		}
		r.versionTable = table
		return nil
	}
}

// WithLockKey sets the key of the run lock. It defaults to the name of the
// metadata table, so that runs sharing it exclude each other.
func WithLockKey(key string) Option {
	return func(r *Runner) error {
		r.lockKey = key
		return nil
	}
}

// WithRunIDGenerator sets the function that generates the ID of each run,
// which is logged and recorded as the owner of the run lock.
func WithRunIDGenerator(gen func() string) Option {
	return func(r *Runner) error {
		r.newRunID = gen
		return nil
	}
}

// DefaultOptions returns the default Runner options.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(NopLogger{}),
		WithTransactionMode(TxPerMigration),
		WithVersionTable(DefaultVersionTable),
		WithRunIDGenerator(cuid2.Generate),
	}
}
