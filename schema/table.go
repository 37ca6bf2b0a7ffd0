package schema

import (
	"errors"
	"fmt"
)

// Column describes a single table column.
type Column struct {
	Name string
	Type Type
	// Size is the length of string and binary types, or the precision of
	// Decimal. Zero selects the dialect default.
	Size int
	// Scale is the number of fractional digits of Decimal.
	Scale      int
	Properties ColumnProperty
	// Default is the column default value. nil means no default.
	Default any
}

// NewColumn returns a column with the given name, type and properties.
func NewColumn(name string, typ Type, props ...ColumnProperty) Column {
	col := Column{Name: name, Type: typ}
	for _, p := range props {
		col.Properties |= p
	}
	return col
}

// WithSize returns a copy of the column with the given size.
func (c Column) WithSize(size int) Column {
	c.Size = size
	return c
}

// WithScale returns a copy of the column with the given size and scale.
func (c Column) WithScale(size, scale int) Column {
	c.Size = size
	c.Scale = scale
	return c
}

// WithDefault returns a copy of the column with the given default value.
func (c Column) WithDefault(val any) Column {
	c.Default = val
	return c
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (c Column) IsPrimaryKey() bool { return c.Properties.Has(PrimaryKey) }

// IsIdentity reports whether the column is auto-incremented.
func (c Column) IsIdentity() bool { return c.Properties.Has(Identity) }

// Validate checks the column definition for errors that don't depend on the
// target backend.
func (c Column) Validate() error {
	if c.Name == "" {
		return errors.New("column name is required")
	}
	if c.Type == TypeUnknown {
		return fmt.Errorf("column '%s' has no type", c.Name)
	}
	if c.Properties.Has(Null) && (c.Properties.Has(NotNull) || c.IsPrimaryKey()) {
		return fmt.Errorf("column '%s' can't be both nullable and not null", c.Name)
	}
	return nil
}

// ForeignKey describes a foreign key constraint from Columns of the owning
// table to RefColumns of RefTable.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   ReferentialAction
	OnUpdate   ReferentialAction
}

// Validate checks the foreign key definition.
func (fk ForeignKey) Validate() error {
	switch {
	case fk.Name == "":
		return errors.New("foreign key name is required")
	case len(fk.Columns) == 0:
		return fmt.Errorf("foreign key '%s' has no columns", fk.Name)
	case fk.RefTable == "":
		return fmt.Errorf("foreign key '%s' has no referenced table", fk.Name)
	case len(fk.Columns) != len(fk.RefColumns):
		return fmt.Errorf("foreign key '%s' references %d columns with %d columns",
			fk.Name, len(fk.RefColumns), len(fk.Columns))
	}
	return nil
}

// Index describes a table index.
type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// Validate checks the index definition.
func (idx Index) Validate() error {
	switch {
	case idx.Name == "":
		return errors.New("index name is required")
	case idx.Table == "":
		return fmt.Errorf("index '%s' has no table", idx.Name)
	case len(idx.Columns) == 0:
		return fmt.Errorf("index '%s' has no columns", idx.Name)
	}
	return nil
}

// Table describes a table and its constraints.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	// Indexes are created after the table. Their Table field may be left empty.
	Indexes []Index
}

// NewTable returns a table with the given columns.
func NewTable(name string, cols ...Column) Table {
	return Table{Name: name, Columns: cols}
}

// PrimaryKey returns the names of the primary key columns in definition order.
func (t Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey() {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// Validate checks the table and all its columns and foreign keys.
func (t Table) Validate() error {
	if t.Name == "" {
		return errors.New("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table '%s' has no columns", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid table '%s': %w", t.Name, err)
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("table '%s' has duplicate column '%s'", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for _, fk := range t.ForeignKeys {
		if err := fk.Validate(); err != nil {
			return fmt.Errorf("invalid table '%s': %w", t.Name, err)
		}
	}
	for _, idx := range t.Indexes {
		if idx.Table == "" {
			idx.Table = t.Name
		}
		if err := idx.Validate(); err != nil {
			return fmt.Errorf("invalid table '%s': %w", t.Name, err)
		}
	}
	return nil
}
