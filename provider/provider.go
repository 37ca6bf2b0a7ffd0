// Package provider executes abstract schema and data operations against a
// database backend, rendering SQL through a dialect.
package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.hackfix.me/dbshift/dialect"
	"go.hackfix.me/dbshift/schema"
)

// TransformationProvider is the operation surface available to migrations.
type TransformationProvider interface {
	// Name returns the identity of the backend. It's empty for the NoOp provider.
	Name() dialect.Name
	// Dialect returns the SQL dialect of the backend, or nil for NoOp.
	Dialect() dialect.Dialect
	// For returns the provider itself if name identifies its backend, or NoOp
	// otherwise. It allows backend-specific statements within a migration.
	For(name string) TransformationProvider

	AddTable(ctx context.Context, table schema.Table) error
	RemoveTable(ctx context.Context, name string) error
	RenameTable(ctx context.Context, oldName, newName string) error
	AddColumn(ctx context.Context, table string, col schema.Column) error
	RemoveColumn(ctx context.Context, table, column string) error
	RenameColumn(ctx context.Context, table, oldName, newName string) error
	AddIndex(ctx context.Context, idx schema.Index) error
	RemoveIndex(ctx context.Context, table, name string) error
	AddForeignKey(ctx context.Context, table string, fk schema.ForeignKey) error
	RemoveForeignKey(ctx context.Context, table, name string) error
	AddPrimaryKey(ctx context.Context, name, table string, columns ...string) error
	RemovePrimaryKey(ctx context.Context, table, name string) error
	AddUniqueConstraint(ctx context.Context, name, table string, columns ...string) error
	RemoveConstraint(ctx context.Context, table, name string) error

	Insert(ctx context.Context, table string, columns []string, values []any) error
	// Update sets columns to values in rows matching where. Placeholders in
	// where are bound to args, and must be numbered after the column values.
	Update(ctx context.Context, table string, columns []string, values []any, where string, args ...any) error
	Delete(ctx context.Context, table, where string, args ...any) error
	ExecuteNonQuery(ctx context.Context, query string, args ...any) (int64, error)
	// ExecuteScalar returns the first column of the first row, or nil if the
	// query returned no rows.
	ExecuteScalar(ctx context.Context, query string, args ...any) (any, error)
	Select(ctx context.Context, query string, args ...any) ([]Row, error)

	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	IndexExists(ctx context.Context, table, index string) (bool, error)
	ConstraintExists(ctx context.Context, table, name string) (bool, error)

	// BeginTransaction starts a transaction, or joins the active one.
	BeginTransaction(ctx context.Context) error
	// Commit ends the current transaction scope. Only the outermost scope
	// commits.
	Commit(ctx context.Context) error
	// Rollback ends the current transaction scope. A nested rollback marks the
	// transaction as rollback-only.
	Rollback(ctx context.Context) error

	// Lock acquires the run lock identified by key on behalf of owner. It fails
	// with a *LockContentionError if the lock is held.
	Lock(ctx context.Context, key, owner string) (unlock func(context.Context) error, err error)

	Close() error
}

// Row is a single result row keyed by column name.
type Row map[string]any

// querier is the subset of methods shared by *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Provider is the TransformationProvider of a live database. All statements
// run on a single dedicated connection, within the active transaction if
// there is one. It's not safe for concurrent use.
type Provider struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect dialect.Dialect
	timeNow func() time.Time
	logger  *slog.Logger

	tx           *sql.Tx
	txDepth      int
	rollbackOnly bool
}

var _ TransformationProvider = (*Provider)(nil)

// sessionSetup are statements run once on the dedicated connection.
var sessionSetup = map[dialect.Name][]string{
	dialect.SQLite: {"PRAGMA foreign_keys = ON"},
}

// New returns a Provider that takes ownership of db, and reserves a single
// connection from it for all operations. Closing the Provider closes db.
func New(ctx context.Context, db *sql.DB, d dialect.Dialect, opts ...Option) (*Provider, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if d == nil {
		return nil, errors.New("dialect is required")
	}

	p := &Provider{db: db, dialect: d}
	opts = append(DefaultOptions(), opts...)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("provider", d.Name())

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed reserving database connection: %w", err)
	}
	p.conn = conn

	for _, stmt := range sessionSetup[d.Name()] {
		if _, err = conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, sqlErr(stmt, err)
		}
	}

	return p, nil
}

// Name returns the identity of the backend.
func (p *Provider) Name() dialect.Name { return p.dialect.Name() }

// Dialect returns the SQL dialect of the backend.
//
//nolint:ireturn // Intentional, dialects are only exposed by interface.
func (p *Provider) Dialect() dialect.Dialect { return p.dialect }

// For returns p if name identifies its backend, or NoOp otherwise.
//
//nolint:ireturn // Intentional, NoOp is a different type.
func (p *Provider) For(name string) TransformationProvider {
	if n, err := dialect.ParseName(name); err == nil && n == p.Name() {
		return p
	}
	return NoOp
}

func (p *Provider) q() querier {
	if p.tx != nil {
		return p.tx
	}
	return p.conn
}

func (p *Provider) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	p.logger.Debug("executing statement", "query", query, "in_tx", p.tx != nil)
	res, err := p.q().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, sqlErr(query, err)
	}
	return res, nil
}

// execAll renders statements and executes them in order.
func (p *Provider) execAll(ctx context.Context, render func() ([]string, error)) error {
	stmts, err := render()
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err = p.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) execOne(ctx context.Context, stmt string, err error) error {
	if err != nil {
		return err
	}
	_, err = p.exec(ctx, stmt)
	return err
}

// AddTable creates the table and its indexes.
func (p *Provider) AddTable(ctx context.Context, table schema.Table) error {
	return p.execAll(ctx, func() ([]string, error) { return p.dialect.CreateTable(table) })
}

func (p *Provider) RemoveTable(ctx context.Context, name string) error {
	stmt, err := p.dialect.DropTable(name)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) RenameTable(ctx context.Context, oldName, newName string) error {
	stmt, err := p.dialect.RenameTable(oldName, newName)
	return p.execOne(ctx, stmt, err)
}

// AddColumn adds the column to an existing table, and creates its index if
// the column is flagged as Indexed.
func (p *Provider) AddColumn(ctx context.Context, table string, col schema.Column) error {
	stmt, err := p.dialect.AddColumn(table, col)
	if err = p.execOne(ctx, stmt, err); err != nil {
		return err
	}
	if col.Properties.Has(schema.Indexed) {
		return p.AddIndex(ctx, dialect.ColumnIndex(table, col.Name))
	}
	return nil
}

func (p *Provider) RemoveColumn(ctx context.Context, table, column string) error {
	stmt, err := p.dialect.DropColumn(table, column)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) RenameColumn(ctx context.Context, table, oldName, newName string) error {
	stmt, err := p.dialect.RenameColumn(table, oldName, newName)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) AddIndex(ctx context.Context, idx schema.Index) error {
	stmt, err := p.dialect.CreateIndex(idx)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) RemoveIndex(ctx context.Context, table, name string) error {
	stmt, err := p.dialect.DropIndex(table, name)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) AddForeignKey(ctx context.Context, table string, fk schema.ForeignKey) error {
	stmt, err := p.dialect.AddForeignKey(table, fk)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) RemoveForeignKey(ctx context.Context, table, name string) error {
	stmt, err := p.dialect.DropForeignKey(table, name)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) AddPrimaryKey(ctx context.Context, name, table string, columns ...string) error {
	stmt, err := p.dialect.AddPrimaryKey(name, table, columns)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) RemovePrimaryKey(ctx context.Context, table, name string) error {
	stmt, err := p.dialect.DropPrimaryKey(table, name)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) AddUniqueConstraint(ctx context.Context, name, table string, columns ...string) error {
	stmt, err := p.dialect.AddUnique(name, table, columns)
	return p.execOne(ctx, stmt, err)
}

func (p *Provider) RemoveConstraint(ctx context.Context, table, name string) error {
	stmt, err := p.dialect.DropConstraint(table, name)
	return p.execOne(ctx, stmt, err)
}

// Insert inserts a single row.
func (p *Provider) Insert(ctx context.Context, table string, columns []string, values []any) error {
	if len(columns) != len(values) {
		return fmt.Errorf("insert into '%s' has %d columns and %d values",
			table, len(columns), len(values))
	}
	stmt, err := p.dialect.Insert(table, columns)
	if err != nil {
		return err
	}
	_, err = p.exec(ctx, stmt, values...)
	return err
}

func (p *Provider) Update(
	ctx context.Context, table string, columns []string, values []any, where string, args ...any,
) error {
	if len(columns) != len(values) {
		return fmt.Errorf("update of '%s' has %d columns and %d values",
			table, len(columns), len(values))
	}
	stmt, err := p.dialect.Update(table, columns, where)
	if err != nil {
		return err
	}
	_, err = p.exec(ctx, stmt, slices.Concat(values, args)...)
	return err
}

func (p *Provider) Delete(ctx context.Context, table, where string, args ...any) error {
	stmt, err := p.dialect.Delete(table, where)
	if err != nil {
		return err
	}
	_, err = p.exec(ctx, stmt, args...)
	return err
}

// ExecuteNonQuery executes the statement and returns the number of affected
// rows, or -1 if the driver doesn't report it.
func (p *Provider) ExecuteNonQuery(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := p.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil //nolint:nilerr // Not all drivers support it.
	}
	return n, nil
}

func (p *Provider) ExecuteScalar(ctx context.Context, query string, args ...any) (any, error) {
	p.logger.Debug("executing query", "query", query, "in_tx", p.tx != nil)
	var val any
	err := p.q().QueryRowContext(ctx, query, args...).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // No result isn't an error.
	}
	if err != nil {
		return nil, sqlErr(query, err)
	}
	return val, nil
}

func (p *Provider) Select(ctx context.Context, query string, args ...any) ([]Row, error) {
	p.logger.Debug("executing query", "query", query, "in_tx", p.tx != nil)
	rows, err := p.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlErr(query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, sqlErr(query, err)
	}

	var result []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err = rows.Scan(ptrs...); err != nil {
			return nil, sqlErr(query, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		result = append(result, row)
	}
	if err = rows.Err(); err != nil {
		return nil, sqlErr(query, err)
	}

	return result, nil
}

func (p *Provider) count(ctx context.Context, query string, args []any) (bool, error) {
	var n int64
	if err := p.q().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, sqlErr(query, err)
	}
	return n > 0, nil
}

func (p *Provider) TableExists(ctx context.Context, table string) (bool, error) {
	query, args := p.dialect.TableExistsQuery(table)
	return p.count(ctx, query, args)
}

func (p *Provider) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	query, args := p.dialect.ColumnExistsQuery(table, column)
	return p.count(ctx, query, args)
}

func (p *Provider) IndexExists(ctx context.Context, table, index string) (bool, error) {
	query, args := p.dialect.IndexExistsQuery(table, index)
	return p.count(ctx, query, args)
}

func (p *Provider) ConstraintExists(ctx context.Context, table, name string) (bool, error) {
	query, args := p.dialect.ConstraintExistsQuery(table, name)
	return p.count(ctx, query, args)
}

// Close rolls back any active transaction and releases the connection.
func (p *Provider) Close() error {
	var errs []error
	if p.tx != nil {
		p.logger.Warn("rolling back unfinished transaction")
		if err := p.tx.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("failed rolling back transaction: %w", err))
		}
		p.resetTx()
	}
	if err := p.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed releasing connection: %w", err))
	}
	if err := p.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed closing database: %w", err))
	}
	return errors.Join(errs...)
}
