package dialect

import (
	"fmt"
	"strings"
	"time"

	"go.hackfix.me/dbshift/schema"
)

// OracleDialect renders SQL for Oracle Database 12c and later.
type OracleDialect struct {
	base
}

var _ Dialect = &OracleDialect{}

// NewOracle returns the Oracle dialect.
func NewOracle() *OracleDialect {
	d := &OracleDialect{}
	d.base = base{self: d}
	return d
}

func (d *OracleDialect) Name() Name { return Oracle }

func (d *OracleDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *OracleDialect) Placeholder(n int) string { return fmt.Sprintf(":%d", n) }

func (d *OracleDialect) AllowsIdentityWithoutPrimaryKey() bool { return true }

func (d *OracleDialect) MapType(t schema.Type, size, scale int) (string, error) {
	switch t {
	case schema.AnsiString:
		return fmt.Sprintf("VARCHAR2(%d)", sizeOr(size, 255)), nil
	case schema.AnsiStringFixedLength:
		return fmt.Sprintf("CHAR(%d)", sizeOr(size, 255)), nil
	case schema.String:
		return fmt.Sprintf("NVARCHAR2(%d)", sizeOr(size, 255)), nil
	case schema.StringFixedLength:
		return fmt.Sprintf("NCHAR(%d)", sizeOr(size, 255)), nil
	case schema.Text:
		return "NCLOB", nil
	case schema.Binary:
		if size > 0 && size <= 2000 {
			return fmt.Sprintf("RAW(%d)", size), nil
		}
		return "BLOB", nil
	case schema.Boolean:
		return "NUMBER(1)", nil
	case schema.Byte:
		return "NUMBER(3)", nil
	case schema.Int16:
		return "NUMBER(5)", nil
	case schema.Int32:
		return "NUMBER(10)", nil
	case schema.Int64:
		return "NUMBER(19)", nil
	case schema.Decimal:
		return decimal(Oracle, "NUMBER", size, scale)
	case schema.Currency:
		return "NUMBER(19, 4)", nil
	case schema.Single:
		return "BINARY_FLOAT", nil
	case schema.Double:
		return "BINARY_DOUBLE", nil
	case schema.Date:
		return "DATE", nil
	case schema.DateTime:
		return "TIMESTAMP", nil
	case schema.DateTimeOffset:
		return "TIMESTAMP WITH TIME ZONE", nil
	case schema.GUID:
		return "RAW(16)", nil
	case schema.Time:
		return "", unsupported(Oracle, "type "+t.String(), "no time of day type")
	}
	return "", unsupported(Oracle, "type "+t.String(), "no native type")
}

// ColumnPropertyClause renders the clauses in Oracle's order, where DEFAULT
// precedes the constraints.
func (d *OracleDialect) ColumnPropertyClause(col schema.Column, inlinePK bool) ([]string, error) {
	if err := d.checkIdentity(col); err != nil {
		return nil, err
	}
	def, err := d.defaultClause(col)
	if err != nil {
		return nil, err
	}
	var identity, pk, unique string
	if col.IsIdentity() {
		identity = "GENERATED BY DEFAULT AS IDENTITY"
	}
	if col.IsPrimaryKey() && inlinePK {
		pk = "PRIMARY KEY"
	}
	if col.Properties.Has(schema.Unique) {
		unique = "UNIQUE"
	}
	return compact(identity, def, nullClause(col), pk, unique), nil
}

// ForeignKeyClause supports only the ON DELETE CASCADE and SET NULL actions.
func (d *OracleDialect) ForeignKeyClause(fk schema.ForeignKey) (string, error) {
	op := "foreign key " + fk.Name
	if fk.OnUpdate != schema.NoAction {
		return "", unsupported(Oracle, op, "ON UPDATE actions aren't supported")
	}
	switch fk.OnDelete {
	case schema.NoAction, schema.Cascade, schema.SetNull:
	default:
		return "", unsupported(Oracle, op,
			fmt.Sprintf("ON DELETE %s isn't supported", fk.OnDelete.SQL()))
	}
	return d.base.ForeignKeyClause(fk)
}

func (d *OracleDialect) Literal(val any) (string, error) {
	if v, ok := val.(time.Time); ok {
		return "TIMESTAMP " + quoteString(v.UTC().Format("2006-01-02 15:04:05")), nil
	}
	return d.base.Literal(val)
}

func (d *OracleDialect) AddColumn(table string, col schema.Column) (string, error) {
	def, err := d.ColumnDefinition(col, true)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", d.q(table), def), nil
}

func (d *OracleDialect) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM user_tables WHERE UPPER(table_name) = UPPER(:1)`,
		[]any{table}
}

func (d *OracleDialect) ColumnExistsQuery(table, column string) (string, []any) {
	return `SELECT COUNT(*) FROM user_tab_columns
		WHERE UPPER(table_name) = UPPER(:1) AND UPPER(column_name) = UPPER(:2)`,
		[]any{table, column}
}

func (d *OracleDialect) IndexExistsQuery(table, index string) (string, []any) {
	return `SELECT COUNT(*) FROM user_indexes
		WHERE UPPER(table_name) = UPPER(:1) AND UPPER(index_name) = UPPER(:2)`,
		[]any{table, index}
}

func (d *OracleDialect) ConstraintExistsQuery(table, name string) (string, []any) {
	return `SELECT COUNT(*) FROM user_constraints
		WHERE UPPER(table_name) = UPPER(:1) AND UPPER(constraint_name) = UPPER(:2)`,
		[]any{table, name}
}

func (d *OracleDialect) LockStatements() (acquire, release string, ok bool) {
	return "", "", false
}
