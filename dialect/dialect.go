// Package dialect renders backend-specific SQL from the abstract schema
// description in package schema. Dialects are stateless and safe to share.
package dialect

import (
	"fmt"
	"strings"

	"go.hackfix.me/dbshift/schema"
)

// Name is the identity of a supported database backend.
type Name string

// All supported backends.
const (
	SQLServer  Name = "sqlserver"
	PostgreSQL Name = "postgresql"
	MySQL      Name = "mysql"
	SQLite     Name = "sqlite"
	Oracle     Name = "oracle"
)

var aliases = map[string]Name{
	"sqlserver":  SQLServer,
	"mssql":      SQLServer,
	"postgresql": PostgreSQL,
	"postgres":   PostgreSQL,
	"pg":         PostgreSQL,
	"pgx":        PostgreSQL,
	"mysql":      MySQL,
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"oracle":     Oracle,
}

// Names returns all supported backend names.
func Names() []Name {
	return []Name{SQLServer, PostgreSQL, MySQL, SQLite, Oracle}
}

// ParseName returns the backend Name for the given string. The match is
// case-insensitive and accepts common aliases, e.g. "Postgres" or "mssql".
func ParseName(val string) (Name, error) {
	if n, ok := aliases[strings.ToLower(strings.TrimSpace(val))]; ok {
		return n, nil
	}
	return "", fmt.Errorf("unsupported database provider '%s'", val)
}

// Dialect maps abstract schema operations to SQL for a single backend.
// Statement methods only render SQL; they never touch a connection.
type Dialect interface {
	Name() Name

	// QuoteIdentifier wraps the identifier in the backend's quote characters.
	QuoteIdentifier(name string) string
	// Placeholder returns the bind parameter marker for the n-th (1-based)
	// argument of a statement.
	Placeholder(n int) string
	// MapType returns the native type for t. For Decimal, size is the
	// precision and scale the number of fractional digits.
	MapType(t schema.Type, size, scale int) (string, error)
	// ColumnPropertyClause returns the property clauses of the column in the
	// order required by the backend grammar. If inlinePK is false, primary key
	// columns are declared by a table constraint and get no PRIMARY KEY clause.
	ColumnPropertyClause(col schema.Column, inlinePK bool) ([]string, error)
	// ColumnDefinition renders the full column definition.
	ColumnDefinition(col schema.Column, inlinePK bool) (string, error)
	// ForeignKeyClause renders a CONSTRAINT ... FOREIGN KEY clause.
	ForeignKeyClause(fk schema.ForeignKey) (string, error)
	// Literal renders a Go value as a SQL literal.
	Literal(val any) (string, error)
	// AllowsIdentityWithoutPrimaryKey reports whether an identity column may
	// exist outside the primary key.
	AllowsIdentityWithoutPrimaryKey() bool

	CreateTable(t schema.Table) ([]string, error)
	DropTable(name string) (string, error)
	RenameTable(oldName, newName string) (string, error)
	AddColumn(table string, col schema.Column) (string, error)
	DropColumn(table, column string) (string, error)
	RenameColumn(table, oldName, newName string) (string, error)
	CreateIndex(idx schema.Index) (string, error)
	DropIndex(table, name string) (string, error)
	AddForeignKey(table string, fk schema.ForeignKey) (string, error)
	DropForeignKey(table, name string) (string, error)
	AddPrimaryKey(name, table string, columns []string) (string, error)
	DropPrimaryKey(table, name string) (string, error)
	AddUnique(name, table string, columns []string) (string, error)
	DropConstraint(table, name string) (string, error)

	// Insert renders an INSERT with one placeholder per column.
	Insert(table string, columns []string) (string, error)
	// Update renders an UPDATE with one placeholder per column. Placeholders
	// in where must be numbered after the column placeholders.
	Update(table string, columns []string, where string) (string, error)
	Delete(table, where string) (string, error)

	// Catalog queries return a single integer count and compare names
	// case-insensitively.
	TableExistsQuery(table string) (string, []any)
	ColumnExistsQuery(table, column string) (string, []any)
	IndexExistsQuery(table, index string) (string, []any)
	ConstraintExistsQuery(table, name string) (string, []any)

	// LockStatements returns queries that take the lock key as their only
	// argument and return 1 on success. If ok is false the backend has no
	// advisory locks.
	LockStatements() (acquire, release string, ok bool)
}

// ForName returns the Dialect of the named backend.
//
//nolint:ireturn // Intentional, the concrete type depends on the name.
func ForName(name Name) (Dialect, error) {
	switch name {
	case SQLServer:
		return NewSQLServer(), nil
	case PostgreSQL:
		return NewPostgreSQL(), nil
	case MySQL:
		return NewMySQL(), nil
	case SQLite:
		return NewSQLite(), nil
	case Oracle:
		return NewOracle(), nil
	}
	return nil, fmt.Errorf("unsupported database provider '%s'", name)
}

// TranslationError is returned when an operation can't be expressed in the
// grammar of the target backend.
type TranslationError struct {
	Dialect   Name
	Operation string
	Reason    string
}

// Error returns a string representation of the error.
func (e *TranslationError) Error() string {
	return fmt.Sprintf("%s: can't translate %s: %s", e.Dialect, e.Operation, e.Reason)
}

func unsupported(d Name, op, reason string) *TranslationError {
	return &TranslationError{Dialect: d, Operation: op, Reason: reason}
}
