package dialect

import (
	"fmt"
	"strings"

	"go.hackfix.me/dbshift/schema"
)

// sqlServerMaxSize is the largest size of (N)VARCHAR and VARBINARY columns
// before they switch to the MAX variant.
const sqlServerMaxSize = 4000

// SQLServerDialect renders SQL for Microsoft SQL Server.
type SQLServerDialect struct {
	base
}

var _ Dialect = &SQLServerDialect{}

// NewSQLServer returns the SQL Server dialect.
func NewSQLServer() *SQLServerDialect {
	d := &SQLServerDialect{}
	d.base = base{self: d}
	return d
}

func (d *SQLServerDialect) Name() Name { return SQLServer }

func (d *SQLServerDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *SQLServerDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (d *SQLServerDialect) AllowsIdentityWithoutPrimaryKey() bool { return true }

func (d *SQLServerDialect) MapType(t schema.Type, size, scale int) (string, error) {
	sized := func(name string, def int) string {
		if size > sqlServerMaxSize {
			return name + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", name, sizeOr(size, def))
	}
	switch t {
	case schema.AnsiString:
		return sized("VARCHAR", 255), nil
	case schema.AnsiStringFixedLength:
		return fmt.Sprintf("CHAR(%d)", sizeOr(size, 255)), nil
	case schema.String:
		return sized("NVARCHAR", 255), nil
	case schema.StringFixedLength:
		return fmt.Sprintf("NCHAR(%d)", sizeOr(size, 255)), nil
	case schema.Text:
		return "NVARCHAR(MAX)", nil
	case schema.Binary:
		if size == 0 {
			return "VARBINARY(MAX)", nil
		}
		return sized("VARBINARY", size), nil
	case schema.Boolean:
		return "BIT", nil
	case schema.Byte:
		return "TINYINT", nil
	case schema.Int16:
		return "SMALLINT", nil
	case schema.Int32:
		return "INT", nil
	case schema.Int64:
		return "BIGINT", nil
	case schema.Decimal:
		return decimal(SQLServer, "DECIMAL", size, scale)
	case schema.Currency:
		return "MONEY", nil
	case schema.Single:
		return "REAL", nil
	case schema.Double:
		return "FLOAT", nil
	case schema.Date:
		return "DATE", nil
	case schema.DateTime:
		return "DATETIME2", nil
	case schema.DateTimeOffset:
		return "DATETIMEOFFSET", nil
	case schema.Time:
		return "TIME", nil
	case schema.GUID:
		return "UNIQUEIDENTIFIER", nil
	}
	return "", unsupported(SQLServer, "type "+t.String(), "no native type")
}

func (d *SQLServerDialect) ColumnPropertyClause(col schema.Column, inlinePK bool) ([]string, error) {
	if err := d.checkIdentity(col); err != nil {
		return nil, err
	}
	def, err := d.defaultClause(col)
	if err != nil {
		return nil, err
	}
	var identity, pk, unique string
	if col.IsIdentity() {
		identity = "IDENTITY(1,1)"
	}
	if col.IsPrimaryKey() && inlinePK {
		pk = "PRIMARY KEY"
	}
	if col.Properties.Has(schema.Unique) {
		unique = "UNIQUE"
	}
	return compact(identity, nullClause(col), def, pk, unique), nil
}

func (d *SQLServerDialect) AddColumn(table string, col schema.Column) (string, error) {
	def, err := d.ColumnDefinition(col, true)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s", d.q(table), def), nil
}

func (d *SQLServerDialect) RenameTable(oldName, newName string) (string, error) {
	return fmt.Sprintf("EXEC sp_rename %s, %s", quoteString(oldName), quoteString(newName)), nil
}

func (d *SQLServerDialect) RenameColumn(table, oldName, newName string) (string, error) {
	return fmt.Sprintf("EXEC sp_rename %s, %s, 'COLUMN'",
		quoteString(table+"."+oldName), quoteString(newName)), nil
}

func (d *SQLServerDialect) DropIndex(table, name string) (string, error) {
	return fmt.Sprintf("DROP INDEX %s ON %s", d.q(name), d.q(table)), nil
}

func (d *SQLServerDialect) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE LOWER(TABLE_NAME) = LOWER(@p1)`, []any{table}
}

func (d *SQLServerDialect) ColumnExistsQuery(table, column string) (string, []any) {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS
		WHERE LOWER(TABLE_NAME) = LOWER(@p1) AND LOWER(COLUMN_NAME) = LOWER(@p2)`,
		[]any{table, column}
}

func (d *SQLServerDialect) IndexExistsQuery(table, index string) (string, []any) {
	return `SELECT COUNT(*) FROM sys.indexes
		WHERE object_id = OBJECT_ID(@p1) AND LOWER(name) = LOWER(@p2)`,
		[]any{table, index}
}

func (d *SQLServerDialect) ConstraintExistsQuery(table, name string) (string, []any) {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS
		WHERE LOWER(TABLE_NAME) = LOWER(@p1) AND LOWER(CONSTRAINT_NAME) = LOWER(@p2)`,
		[]any{table, name}
}

func (d *SQLServerDialect) LockStatements() (acquire, release string, ok bool) {
	acquire = `DECLARE @r INT, @res NVARCHAR(255) = CONCAT(N'dbshift_', @p1);
EXEC @r = sp_getapplock @Resource = @res, @LockMode = 'Exclusive', @LockOwner = 'Session', @LockTimeout = 0;
SELECT CASE WHEN @r >= 0 THEN 1 ELSE 0 END`
	release = `DECLARE @r INT, @res NVARCHAR(255) = CONCAT(N'dbshift_', @p1);
EXEC @r = sp_releaseapplock @Resource = @res, @LockOwner = 'Session';
SELECT CASE WHEN @r >= 0 THEN 1 ELSE 0 END`
	return acquire, release, true
}
