package dialect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.hackfix.me/dbshift/schema"
)

// base implements the statements that are identical across most backends.
// self is the embedding dialect, so that base methods use its overrides.
type base struct {
	self Dialect
}

func (b base) name() Name { return b.self.Name() }

func (b base) q(name string) string { return b.self.QuoteIdentifier(name) }

func (b base) qlist(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = b.q(n)
	}
	return strings.Join(quoted, ", ")
}

func (b base) placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range n {
		ph[i] = b.self.Placeholder(from + i)
	}
	return strings.Join(ph, ", ")
}

// checkIdentity enforces that identity columns are primary keys, unless the
// backend allows otherwise.
func (b base) checkIdentity(col schema.Column) error {
	if col.IsIdentity() && !col.IsPrimaryKey() && !b.self.AllowsIdentityWithoutPrimaryKey() {
		return unsupported(b.name(), "column "+col.Name,
			"identity columns must be part of the primary key")
	}
	return nil
}

// nullClause returns the nullability clause of the column, if any.
func nullClause(col schema.Column) string {
	switch {
	case col.Properties.Has(schema.NotNull), col.IsPrimaryKey():
		return "NOT NULL"
	case col.Properties.Has(schema.Null):
		return "NULL"
	}
	return ""
}

func (b base) defaultClause(col schema.Column) (string, error) {
	if col.Default == nil {
		return "", nil
	}
	lit, err := b.self.Literal(col.Default)
	if err != nil {
		return "", fmt.Errorf("invalid default of column '%s': %w", col.Name, err)
	}
	return "DEFAULT " + lit, nil
}

func compact(clauses ...string) []string {
	out := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// ColumnDefinition renders the quoted name, type and property clauses.
func (b base) ColumnDefinition(col schema.Column, inlinePK bool) (string, error) {
	if err := col.Validate(); err != nil {
		return "", err //nolint:wrapcheck // Already descriptive.
	}
	typ, err := b.self.MapType(col.Type, col.Size, col.Scale)
	if err != nil {
		return "", err
	}
	clauses, err := b.self.ColumnPropertyClause(col, inlinePK)
	if err != nil {
		return "", err
	}
	parts := append([]string{b.q(col.Name), typ}, clauses...)
	return strings.Join(parts, " "), nil
}

// ForeignKeyClause renders the table constraint of a foreign key.
func (b base) ForeignKeyClause(fk schema.ForeignKey) (string, error) {
	if err := fk.Validate(); err != nil {
		return "", err //nolint:wrapcheck // Already descriptive.
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		b.q(fk.Name), b.qlist(fk.Columns), b.q(fk.RefTable), b.qlist(fk.RefColumns))
	if fk.OnDelete != schema.NoAction {
		sb.WriteString(" ON DELETE " + fk.OnDelete.SQL())
	}
	if fk.OnUpdate != schema.NoAction {
		sb.WriteString(" ON UPDATE " + fk.OnUpdate.SQL())
	}
	return sb.String(), nil
}

// Literal renders strings, numbers, booleans (as 1/0), times and RawSQL.
func (b base) Literal(val any) (string, error) {
	switch v := val.(type) {
	case nil:
		return "NULL", nil
	case schema.RawSQL:
		return string(v), nil
	case string:
		return quoteString(v), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return quoteString(v.UTC().Format("2006-01-02 15:04:05")), nil
	}
	return "", unsupported(b.name(), "literal", fmt.Sprintf("unsupported value type %T", val))
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CreateTable renders the CREATE TABLE statement followed by the statements
// creating its indexes.
func (b base) CreateTable(t schema.Table) ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // Already descriptive.
	}

	pk := t.PrimaryKey()
	inlinePK := len(pk) == 1
	defs := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	for _, col := range t.Columns {
		def, err := b.self.ColumnDefinition(col, inlinePK)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(pk) > 1 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", b.qlist(pk)))
	}
	for _, fk := range t.ForeignKeys {
		clause, err := b.self.ForeignKeyClause(fk)
		if err != nil {
			return nil, err
		}
		defs = append(defs, clause)
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (%s)", b.q(t.Name), strings.Join(defs, ", "))}
	for _, idx := range tableIndexes(t) {
		stmt, err := b.self.CreateIndex(idx)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

// tableIndexes returns the explicit indexes of the table and one index per
// column flagged as Indexed.
func tableIndexes(t schema.Table) []schema.Index {
	idxs := make([]schema.Index, 0, len(t.Indexes))
	for _, idx := range t.Indexes {
		if idx.Table == "" {
			idx.Table = t.Name
		}
		idxs = append(idxs, idx)
	}
	for _, col := range t.Columns {
		if col.Properties.Has(schema.Indexed) {
			idxs = append(idxs, ColumnIndex(t.Name, col.Name))
		}
	}
	return idxs
}

// ColumnIndex returns the index created for a column flagged as Indexed.
func ColumnIndex(table, column string) schema.Index {
	return schema.Index{
		Name:    fmt.Sprintf("ix_%s_%s", table, column),
		Table:   table,
		Columns: []string{column},
	}
}

func (b base) DropTable(name string) (string, error) {
	return "DROP TABLE " + b.q(name), nil
}

func (b base) RenameTable(oldName, newName string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", b.q(oldName), b.q(newName)), nil
}

func (b base) AddColumn(table string, col schema.Column) (string, error) {
	def, err := b.self.ColumnDefinition(col, true)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", b.q(table), def), nil
}

func (b base) DropColumn(table, column string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", b.q(table), b.q(column)), nil
}

func (b base) RenameColumn(table, oldName, newName string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		b.q(table), b.q(oldName), b.q(newName)), nil
}

func (b base) CreateIndex(idx schema.Index) (string, error) {
	if err := idx.Validate(); err != nil {
		return "", err //nolint:wrapcheck // Already descriptive.
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, b.q(idx.Name), b.q(idx.Table), b.qlist(idx.Columns)), nil
}

func (b base) DropIndex(_, name string) (string, error) {
	return "DROP INDEX " + b.q(name), nil
}

func (b base) AddForeignKey(table string, fk schema.ForeignKey) (string, error) {
	clause, err := b.self.ForeignKeyClause(fk)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD %s", b.q(table), clause), nil
}

func (b base) DropForeignKey(table, name string) (string, error) {
	return b.self.DropConstraint(table, name)
}

func (b base) AddPrimaryKey(name, table string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("primary key '%s' has no columns", name)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		b.q(table), b.q(name), b.qlist(columns)), nil
}

func (b base) DropPrimaryKey(table, name string) (string, error) {
	return b.self.DropConstraint(table, name)
}

func (b base) AddUnique(name, table string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("unique constraint '%s' has no columns", name)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
		b.q(table), b.q(name), b.qlist(columns)), nil
}

func (b base) DropConstraint(table, name string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", b.q(table), b.q(name)), nil
}

func (b base) Insert(table string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("insert into '%s' has no columns", table)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.q(table), b.qlist(columns), b.placeholders(1, len(columns))), nil
}

func (b base) Update(table string, columns []string, where string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("update of '%s' has no columns", table)
	}
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = %s", b.q(c), b.self.Placeholder(i+1))
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s", b.q(table), strings.Join(sets, ", "))
	if where != "" {
		stmt += " WHERE " + where
	}
	return stmt, nil
}

func (b base) Delete(table, where string) (string, error) {
	stmt := "DELETE FROM " + b.q(table)
	if where != "" {
		stmt += " WHERE " + where
	}
	return stmt, nil
}

// decimal renders a fixed-point type. Without a precision it defaults to
// (19, 5), otherwise the scale is used as given, including 0.
func decimal(d Name, typeName string, precision, scale int) (string, error) {
	if precision <= 0 {
		return typeName + "(19, 5)", nil
	}
	if scale < 0 || scale > precision {
		return "", unsupported(d, "type "+schema.Decimal.String(),
			fmt.Sprintf("scale %d is out of range for precision %d", scale, precision))
	}
	return fmt.Sprintf("%s(%d, %d)", typeName, precision, scale), nil
}

// sizeOr returns size, or def if size isn't positive.
func sizeOr(size, def int) int {
	if size > 0 {
		return size
	}
	return def
}
