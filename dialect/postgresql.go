package dialect

import (
	"fmt"
	"strings"

	"go.hackfix.me/dbshift/schema"
)

// PostgreSQLDialect renders SQL for PostgreSQL.
type PostgreSQLDialect struct {
	base
}

var _ Dialect = &PostgreSQLDialect{}

// NewPostgreSQL returns the PostgreSQL dialect.
func NewPostgreSQL() *PostgreSQLDialect {
	d := &PostgreSQLDialect{}
	d.base = base{self: d}
	return d
}

func (d *PostgreSQLDialect) Name() Name { return PostgreSQL }

func (d *PostgreSQLDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *PostgreSQLDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d *PostgreSQLDialect) AllowsIdentityWithoutPrimaryKey() bool { return true }

func (d *PostgreSQLDialect) MapType(t schema.Type, size, scale int) (string, error) {
	switch t {
	case schema.AnsiString, schema.String:
		return fmt.Sprintf("VARCHAR(%d)", sizeOr(size, 255)), nil
	case schema.AnsiStringFixedLength, schema.StringFixedLength:
		return fmt.Sprintf("CHAR(%d)", sizeOr(size, 255)), nil
	case schema.Text:
		return "TEXT", nil
	case schema.Binary:
		return "BYTEA", nil
	case schema.Boolean:
		return "BOOLEAN", nil
	case schema.Byte, schema.Int16:
		return "SMALLINT", nil
	case schema.Int32:
		return "INTEGER", nil
	case schema.Int64:
		return "BIGINT", nil
	case schema.Decimal:
		return decimal(PostgreSQL, "NUMERIC", size, scale)
	case schema.Currency:
		return "MONEY", nil
	case schema.Single:
		return "REAL", nil
	case schema.Double:
		return "DOUBLE PRECISION", nil
	case schema.Date:
		return "DATE", nil
	case schema.DateTime:
		return "TIMESTAMP", nil
	case schema.DateTimeOffset:
		return "TIMESTAMPTZ", nil
	case schema.Time:
		return "TIME", nil
	case schema.GUID:
		return "UUID", nil
	}
	return "", unsupported(PostgreSQL, "type "+t.String(), "no native type")
}

func (d *PostgreSQLDialect) ColumnPropertyClause(col schema.Column, inlinePK bool) ([]string, error) {
	if err := d.checkIdentity(col); err != nil {
		return nil, err
	}
	def, err := d.defaultClause(col)
	if err != nil {
		return nil, err
	}
	var identity, pk, unique string
	if col.IsIdentity() {
		switch col.Type {
		case schema.Byte, schema.Int16, schema.Int32, schema.Int64:
		default:
			return nil, unsupported(PostgreSQL, "column "+col.Name,
				"identity columns must have an integer type")
		}
		identity = "GENERATED BY DEFAULT AS IDENTITY"
	}
	if col.IsPrimaryKey() && inlinePK {
		pk = "PRIMARY KEY"
	}
	if col.Properties.Has(schema.Unique) {
		unique = "UNIQUE"
	}
	return compact(identity, nullClause(col), def, pk, unique), nil
}

func (d *PostgreSQLDialect) Literal(val any) (string, error) {
	if v, ok := val.(bool); ok {
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	return d.base.Literal(val)
}

func (d *PostgreSQLDialect) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND LOWER(table_name) = LOWER($1)`,
		[]any{table}
}

func (d *PostgreSQLDialect) ColumnExistsQuery(table, column string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = current_schema() AND LOWER(table_name) = LOWER($1)
		AND LOWER(column_name) = LOWER($2)`, []any{table, column}
}

func (d *PostgreSQLDialect) IndexExistsQuery(table, index string) (string, []any) {
	return `SELECT COUNT(*) FROM pg_indexes
		WHERE schemaname = current_schema() AND LOWER(tablename) = LOWER($1)
		AND LOWER(indexname) = LOWER($2)`, []any{table, index}
}

func (d *PostgreSQLDialect) ConstraintExistsQuery(table, name string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.table_constraints
		WHERE table_schema = current_schema() AND LOWER(table_name) = LOWER($1)
		AND LOWER(constraint_name) = LOWER($2)`, []any{table, name}
}

func (d *PostgreSQLDialect) LockStatements() (acquire, release string, ok bool) {
	return "SELECT CASE WHEN pg_try_advisory_lock($1) THEN 1 ELSE 0 END",
		"SELECT CASE WHEN pg_advisory_unlock($1) THEN 1 ELSE 0 END",
		true
}
