// Package schema contains the backend-agnostic description of tables, columns,
// indexes and constraints used as parameters of schema operations. None of
// these types are persisted by dbshift itself.
package schema

import (
	"fmt"
)

// Type is an abstract column data type. Dialects map it to the native type of
// their backend.
type Type int

// All supported abstract types.
const (
	TypeUnknown Type = iota
	AnsiString
	AnsiStringFixedLength
	String
	StringFixedLength
	Text
	Binary
	Boolean
	Byte
	Int16
	Int32
	Int64
	Decimal
	Currency
	Single
	Double
	Date
	DateTime
	DateTimeOffset
	Time
	GUID
)

var typeNames = map[Type]string{
	AnsiString:            "ansistring",
	AnsiStringFixedLength: "ansistringfixedlength",
	String:                "string",
	StringFixedLength:     "stringfixedlength",
	Text:                  "text",
	Binary:                "binary",
	Boolean:               "boolean",
	Byte:                  "byte",
	Int16:                 "int16",
	Int32:                 "int32",
	Int64:                 "int64",
	Decimal:               "decimal",
	Currency:              "currency",
	Single:                "single",
	Double:                "double",
	Date:                  "date",
	DateTime:              "datetime",
	DateTimeOffset:        "datetimeoffset",
	Time:                  "time",
	GUID:                  "guid",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ColumnProperty is a set of flags describing a column.
type ColumnProperty uint16

// Column property flags. They can be combined with a bitwise OR.
const (
	None       ColumnProperty = 0
	Null       ColumnProperty = 1 << iota
	NotNull
	PrimaryKey
	Identity
	Unique
	Unsigned
	Indexed

	// PrimaryKeyWithIdentity is an auto-incremented primary key.
	PrimaryKeyWithIdentity = PrimaryKey | Identity
)

// Has reports whether all flags in f are set.
func (p ColumnProperty) Has(f ColumnProperty) bool {
	return f != None && p&f == f
}

// ReferentialAction is the action taken on the referencing rows of a foreign
// key when the referenced row is deleted or updated.
type ReferentialAction int

// Referential actions. NoAction is the zero value and renders no clause.
const (
	NoAction ReferentialAction = iota
	Cascade
	SetNull
	SetDefault
	Restrict
)

// SQL returns the SQL keyword(s) of the action.
func (a ReferentialAction) SQL() string {
	switch a {
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	case Restrict:
		return "RESTRICT"
	default:
		return "NO ACTION"
	}
}

// RawSQL is a SQL expression rendered verbatim where a literal value is
// expected, e.g. a column default of RawSQL("CURRENT_TIMESTAMP").
type RawSQL string
