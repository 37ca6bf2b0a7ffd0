package dialect

import (
	"fmt"
	"strings"

	"go.hackfix.me/dbshift/schema"
)

// SQLiteDialect renders SQL for SQLite. SQLite can't alter table constraints,
// so adding or dropping keys and constraints on existing tables isn't
// supported.
type SQLiteDialect struct {
	base
}

var _ Dialect = &SQLiteDialect{}

// NewSQLite returns the SQLite dialect.
func NewSQLite() *SQLiteDialect {
	d := &SQLiteDialect{}
	d.base = base{self: d}
	return d
}

func (d *SQLiteDialect) Name() Name { return SQLite }

func (d *SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *SQLiteDialect) Placeholder(int) string { return "?" }

func (d *SQLiteDialect) AllowsIdentityWithoutPrimaryKey() bool { return false }

func (d *SQLiteDialect) MapType(t schema.Type, _, _ int) (string, error) {
	switch t {
	case schema.AnsiString, schema.AnsiStringFixedLength, schema.String,
		schema.StringFixedLength, schema.Text, schema.GUID,
		schema.Date, schema.DateTime, schema.DateTimeOffset, schema.Time:
		return "TEXT", nil
	case schema.Binary:
		return "BLOB", nil
	case schema.Boolean, schema.Byte, schema.Int16, schema.Int32, schema.Int64:
		return "INTEGER", nil
	case schema.Decimal, schema.Currency:
		return "NUMERIC", nil
	case schema.Single, schema.Double:
		return "REAL", nil
	}
	return "", unsupported(SQLite, "type "+t.String(), "no native type")
}

func (d *SQLiteDialect) ColumnPropertyClause(col schema.Column, inlinePK bool) ([]string, error) {
	if err := d.checkIdentity(col); err != nil {
		return nil, err
	}
	def, err := d.defaultClause(col)
	if err != nil {
		return nil, err
	}
	var pk, identity, unique string
	if col.IsIdentity() {
		if !inlinePK {
			return nil, unsupported(SQLite, "column "+col.Name,
				"identity columns can't be part of a composite primary key")
		}
		if typ, _ := d.MapType(col.Type, 0, 0); typ != "INTEGER" {
			return nil, unsupported(SQLite, "column "+col.Name,
				"identity columns must have an integer type")
		}
		identity = "AUTOINCREMENT"
	}
	if col.IsPrimaryKey() && inlinePK {
		pk = "PRIMARY KEY"
	}
	if col.Properties.Has(schema.Unique) {
		unique = "UNIQUE"
	}
	return compact(pk, identity, nullClause(col), unique, def), nil
}

// AddColumn renders ALTER TABLE ADD COLUMN, which in SQLite can't add key
// columns, and can only add NOT NULL columns that have a default value.
func (d *SQLiteDialect) AddColumn(table string, col schema.Column) (string, error) {
	op := fmt.Sprintf("add column %s.%s", table, col.Name)
	switch {
	case col.IsPrimaryKey():
		return "", unsupported(SQLite, op, "can't add a primary key column")
	case col.Properties.Has(schema.Unique):
		return "", unsupported(SQLite, op, "can't add a unique column")
	case col.Properties.Has(schema.NotNull) && col.Default == nil:
		return "", unsupported(SQLite, op, "a NOT NULL column requires a default value")
	}
	return d.base.AddColumn(table, col)
}

func (d *SQLiteDialect) AddForeignKey(table string, fk schema.ForeignKey) (string, error) {
	return "", unsupported(SQLite, "add foreign key "+fk.Name+" on "+table, alterConstraintReason)
}

func (d *SQLiteDialect) DropForeignKey(table, name string) (string, error) {
	return "", unsupported(SQLite, "drop foreign key "+name+" on "+table, alterConstraintReason)
}

func (d *SQLiteDialect) AddPrimaryKey(name, table string, _ []string) (string, error) {
	return "", unsupported(SQLite, "add primary key "+name+" on "+table, alterConstraintReason)
}

func (d *SQLiteDialect) DropPrimaryKey(table, name string) (string, error) {
	return "", unsupported(SQLite, "drop primary key "+name+" on "+table, alterConstraintReason)
}

func (d *SQLiteDialect) AddUnique(name, table string, _ []string) (string, error) {
	return "", unsupported(SQLite, "add unique constraint "+name+" on "+table,
		"use a unique index instead")
}

func (d *SQLiteDialect) DropConstraint(table, name string) (string, error) {
	return "", unsupported(SQLite, "drop constraint "+name+" on "+table, alterConstraintReason)
}

const alterConstraintReason = "ALTER TABLE can't change table constraints"

func (d *SQLiteDialect) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND lower(name) = lower(?)`, []any{table}
}

func (d *SQLiteDialect) ColumnExistsQuery(table, column string) (string, []any) {
	return `SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE lower(name) = lower(?)`, []any{table, column}
}

func (d *SQLiteDialect) IndexExistsQuery(table, index string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'index' AND lower(tbl_name) = lower(?) AND lower(name) = lower(?)`,
		[]any{table, index}
}

// ConstraintExistsQuery matches named constraints in the table definition,
// since SQLite has no constraint catalog.
func (d *SQLiteDialect) ConstraintExistsQuery(table, name string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND lower(name) = lower(?)
		AND instr(lower(sql), 'constraint "' || lower(?) || '"') > 0`, []any{table, name}
}

func (d *SQLiteDialect) LockStatements() (acquire, release string, ok bool) {
	return "", "", false
}
