package provider

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/sijms/go-ora/v2/network"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNoTransaction is returned by Commit and Rollback when no transaction
	// is active.
	ErrNoTransaction = errors.New("no active transaction")
	// ErrRollbackOnly is returned by the outermost Commit when a nested scope
	// rolled back. The transaction is rolled back instead.
	ErrRollbackOnly = errors.New("transaction was marked rollback-only by a nested scope and has been rolled back")
)

// UnknownProviderError is returned when a provider identity isn't registered.
type UnknownProviderError struct {
	Identity string
}

// Error returns a string representation of the error.
func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown database provider '%s'", e.Identity)
}

// SQLExecutionError is returned when the backend rejects a statement.
type SQLExecutionError struct {
	Query string
	// Code is the backend specific error code, if the driver exposes one.
	Code string
	Err  error
}

// Error returns a string representation of the error.
func (e *SQLExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("failed executing '%s' (code %s): %s", e.Query, e.Code, e.Err)
	}
	return fmt.Sprintf("failed executing '%s': %s", e.Query, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *SQLExecutionError) Unwrap() error {
	return e.Err
}

// LockContentionError is returned when the run lock is held by another run.
type LockContentionError struct {
	Key string
	// Owner is the run ID of the lock holder, when the backend records it.
	Owner string
}

// Error returns a string representation of the error.
func (e *LockContentionError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("migration lock '%s' is held by run %s", e.Key, e.Owner)
	}
	return fmt.Sprintf("migration lock '%s' is held by another run", e.Key)
}

func sqlErr(query string, err error) error {
	return &SQLExecutionError{Query: query, Code: errCode(err), Err: err}
}

// errCode extracts the native error code from the driver errors.
func errCode(err error) string {
	var (
		sqliteErr *sqlite.Error
		pgErr     *pgconn.PgError
		mysqlErr  *mysql.MySQLError
		mssqlErr  mssql.Error
		oraErr    *network.OracleError
	)
	switch {
	case errors.As(err, &sqliteErr):
		return strconv.Itoa(sqliteErr.Code())
	case errors.As(err, &pgErr):
		return pgErr.Code
	case errors.As(err, &mysqlErr):
		return strconv.Itoa(int(mysqlErr.Number))
	case errors.As(err, &mssqlErr):
		return strconv.Itoa(int(mssqlErr.Number))
	case errors.As(err, &oraErr):
		return fmt.Sprintf("ORA-%05d", oraErr.ErrCode)
	}
	return ""
}

// isUniqueViolation reports whether err was caused by a primary key or unique
// constraint violation.
func isUniqueViolation(err error) bool {
	var (
		sqliteErr *sqlite.Error
		pgErr     *pgconn.PgError
		mysqlErr  *mysql.MySQLError
		mssqlErr  mssql.Error
		oraErr    *network.OracleError
	)
	switch {
	case errors.As(err, &sqliteErr):
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	case errors.As(err, &pgErr):
		return pgErr.Code == "23505"
	case errors.As(err, &mysqlErr):
		return mysqlErr.Number == 1062
	case errors.As(err, &mssqlErr):
		return mssqlErr.Number == 2627 || mssqlErr.Number == 2601
	case errors.As(err, &oraErr):
		return oraErr.ErrCode == 1
	}
	return false
}
