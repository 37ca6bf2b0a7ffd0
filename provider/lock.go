package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"go.hackfix.me/dbshift/schema"
)

// Lock acquires the run lock identified by key without waiting. Backends with
// advisory locks hold a session lock on the dedicated connection. Otherwise
// the lock is a row in the table "<key>_lock", which is created if needed.
// The returned function releases the lock, and must be called even if ctx is
// canceled.
func (p *Provider) Lock(ctx context.Context, key, owner string) (func(context.Context) error, error) {
	if p.tx != nil {
		return nil, errors.New("can't acquire the run lock within a transaction")
	}

	logger := p.logger.With("lock_key", key, "owner", owner)

	acquire, release, ok := p.dialect.LockStatements()
	if !ok {
		return p.lockRow(ctx, key, owner)
	}

	id := hashLockKey(key)
	var res int64
	if err := p.conn.QueryRowContext(ctx, acquire, id).Scan(&res); err != nil {
		return nil, sqlErr(acquire, err)
	}
	if res != 1 {
		return nil, &LockContentionError{Key: key}
	}
	logger.Debug("acquired advisory lock", "lock_id", id)

	unlock := func(ctx context.Context) error {
		ctx = context.WithoutCancel(ctx)
		if err := p.conn.QueryRowContext(ctx, release, id).Scan(&res); err != nil {
			return sqlErr(release, err)
		}
		if res != 1 {
			return fmt.Errorf("migration lock '%s' wasn't held", key)
		}
		logger.Debug("released advisory lock", "lock_id", id)
		return nil
	}

	return unlock, nil
}

// LockTable returns the name of the table used for the run lock identified by
// key on backends without advisory locks.
func LockTable(key string) string {
	return key + "_lock"
}

func (p *Provider) lockRow(ctx context.Context, key, owner string) (func(context.Context) error, error) {
	table := LockTable(key)
	logger := p.logger.With("lock_table", table, "owner", owner)

	exists, err := p.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		err = p.AddTable(ctx, schema.NewTable(table,
			schema.NewColumn("id", schema.Int32, schema.PrimaryKey),
			schema.NewColumn("owner", schema.AnsiString, schema.NotNull).WithSize(64),
			schema.NewColumn("acquired_at", schema.AnsiString, schema.NotNull).WithSize(64),
		))
		if err != nil && !isAlreadyExists(ctx, p, table) {
			return nil, fmt.Errorf("failed creating lock table: %w", err)
		}
	}

	err = p.Insert(ctx, table, []string{"id", "owner", "acquired_at"},
		[]any{1, owner, p.timeNow().UTC().Format(time.RFC3339)})
	if err != nil {
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("failed acquiring migration lock: %w", err)
		}
		holder, qerr := p.lockOwner(ctx, table)
		if qerr != nil {
			return nil, qerr
		}
		return nil, &LockContentionError{Key: key, Owner: holder}
	}
	logger.Debug("acquired lock row")

	d := p.dialect
	where := fmt.Sprintf("%s = %s AND %s = %s",
		d.QuoteIdentifier("id"), d.Placeholder(1), d.QuoteIdentifier("owner"), d.Placeholder(2))

	unlock := func(ctx context.Context) error {
		if err := p.Delete(context.WithoutCancel(ctx), table, where, 1, owner); err != nil {
			return fmt.Errorf("failed releasing migration lock: %w", err)
		}
		logger.Debug("released lock row")
		return nil
	}

	return unlock, nil
}

func (p *Provider) lockOwner(ctx context.Context, table string) (string, error) {
	d := p.dialect
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		d.QuoteIdentifier("owner"), d.QuoteIdentifier(table), d.QuoteIdentifier("id"), d.Placeholder(1))
	var owner string
	err := p.conn.QueryRowContext(ctx, query, 1).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		// Released in the meantime.
		return "", nil
	}
	if err != nil {
		return "", sqlErr(query, err)
	}
	return owner, nil
}

// isAlreadyExists reports whether the table was created concurrently.
func isAlreadyExists(ctx context.Context, p *Provider, table string) bool {
	exists, err := p.TableExists(ctx, table)
	return err == nil && exists
}

// hashLockKey produces a stable int64 hash from a string key for use with
// advisory locks. Uses FNV-1a, with the sign bit cleared.
func hashLockKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // Intentional truncation.
}
