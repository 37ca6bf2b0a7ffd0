package dialect

import (
	"fmt"
	"strings"

	"go.hackfix.me/dbshift/schema"
)

// MySQLDialect renders SQL for MySQL and MariaDB.
type MySQLDialect struct {
	base
}

var _ Dialect = &MySQLDialect{}

// NewMySQL returns the MySQL dialect.
func NewMySQL() *MySQLDialect {
	d := &MySQLDialect{}
	d.base = base{self: d}
	return d
}

func (d *MySQLDialect) Name() Name { return MySQL }

func (d *MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MySQLDialect) Placeholder(int) string { return "?" }

// AllowsIdentityWithoutPrimaryKey returns false. MySQL requires an
// AUTO_INCREMENT column to be a key, and unique keys aren't modelled as such.
func (d *MySQLDialect) AllowsIdentityWithoutPrimaryKey() bool { return false }

func (d *MySQLDialect) MapType(t schema.Type, size, scale int) (string, error) {
	switch t {
	case schema.AnsiString, schema.String:
		return fmt.Sprintf("VARCHAR(%d)", sizeOr(size, 255)), nil
	case schema.AnsiStringFixedLength, schema.StringFixedLength:
		return fmt.Sprintf("CHAR(%d)", sizeOr(size, 255)), nil
	case schema.Text:
		return "LONGTEXT", nil
	case schema.Binary:
		if size > 0 {
			return fmt.Sprintf("VARBINARY(%d)", size), nil
		}
		return "LONGBLOB", nil
	case schema.Boolean:
		return "TINYINT(1)", nil
	case schema.Byte:
		return "TINYINT UNSIGNED", nil
	case schema.Int16:
		return "SMALLINT", nil
	case schema.Int32:
		return "INT", nil
	case schema.Int64:
		return "BIGINT", nil
	case schema.Decimal:
		return decimal(MySQL, "DECIMAL", size, scale)
	case schema.Currency:
		return "DECIMAL(19, 4)", nil
	case schema.Single:
		return "FLOAT", nil
	case schema.Double:
		return "DOUBLE", nil
	case schema.Date:
		return "DATE", nil
	case schema.DateTime:
		return "DATETIME", nil
	case schema.Time:
		return "TIME", nil
	case schema.GUID:
		return "CHAR(36)", nil
	case schema.DateTimeOffset:
		return "", unsupported(MySQL, "type "+t.String(), "no time zone aware type")
	}
	return "", unsupported(MySQL, "type "+t.String(), "no native type")
}

func (d *MySQLDialect) ColumnPropertyClause(col schema.Column, inlinePK bool) ([]string, error) {
	if err := d.checkIdentity(col); err != nil {
		return nil, err
	}
	def, err := d.defaultClause(col)
	if err != nil {
		return nil, err
	}
	var unsigned, identity, pk, unique string
	if col.Properties.Has(schema.Unsigned) && col.Type != schema.Byte {
		unsigned = "UNSIGNED"
	}
	if col.IsIdentity() {
		identity = "AUTO_INCREMENT"
	}
	if col.IsPrimaryKey() && inlinePK {
		pk = "PRIMARY KEY"
	}
	if col.Properties.Has(schema.Unique) {
		unique = "UNIQUE"
	}
	return compact(unsigned, nullClause(col), def, identity, pk, unique), nil
}

func (d *MySQLDialect) RenameTable(oldName, newName string) (string, error) {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.q(oldName), d.q(newName)), nil
}

func (d *MySQLDialect) DropIndex(table, name string) (string, error) {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.q(name), d.q(table)), nil
}

func (d *MySQLDialect) DropForeignKey(table, name string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", d.q(table), d.q(name)), nil
}

// DropPrimaryKey ignores the name, MySQL primary keys are always named PRIMARY.
func (d *MySQLDialect) DropPrimaryKey(table, _ string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", d.q(table)), nil
}

func (d *MySQLDialect) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND LOWER(table_name) = LOWER(?)`,
		[]any{table}
}

func (d *MySQLDialect) ColumnExistsQuery(table, column string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = DATABASE() AND LOWER(table_name) = LOWER(?)
		AND LOWER(column_name) = LOWER(?)`, []any{table, column}
}

func (d *MySQLDialect) IndexExistsQuery(table, index string) (string, []any) {
	return `SELECT COUNT(DISTINCT index_name) FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND LOWER(table_name) = LOWER(?)
		AND LOWER(index_name) = LOWER(?)`, []any{table, index}
}

func (d *MySQLDialect) ConstraintExistsQuery(table, name string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.table_constraints
		WHERE table_schema = DATABASE() AND LOWER(table_name) = LOWER(?)
		AND LOWER(constraint_name) = LOWER(?)`, []any{table, name}
}

func (d *MySQLDialect) LockStatements() (acquire, release string, ok bool) {
	return "SELECT COALESCE(GET_LOCK(CONCAT('dbshift_', ?), 0), 0)",
		"SELECT COALESCE(RELEASE_LOCK(CONCAT('dbshift_', ?)), 0)",
		true
}
