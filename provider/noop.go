package provider

import (
	"context"

	"go.hackfix.me/dbshift/dialect"
	"go.hackfix.me/dbshift/schema"
)

// NoOpProvider is the stand-in returned by For when the requested backend
// doesn't match the active one. Mutating operations succeed without effect,
// predicates return false, and queries return no results.
type NoOpProvider struct{}

// NoOp is the shared NoOpProvider instance.
var NoOp = &NoOpProvider{}

var _ TransformationProvider = NoOp

func (*NoOpProvider) Name() dialect.Name { return "" }

//nolint:ireturn // Intentional, the no-op provider has no dialect.
func (*NoOpProvider) Dialect() dialect.Dialect { return nil }

// For always returns NoOp.
//
//nolint:ireturn // Intentional, NoOp is also a TransformationProvider.
func (n *NoOpProvider) For(string) TransformationProvider { return n }

func (*NoOpProvider) AddTable(context.Context, schema.Table) error                   { return nil }
func (*NoOpProvider) RemoveTable(context.Context, string) error                      { return nil }
func (*NoOpProvider) RenameTable(context.Context, string, string) error              { return nil }
func (*NoOpProvider) AddColumn(context.Context, string, schema.Column) error         { return nil }
func (*NoOpProvider) RemoveColumn(context.Context, string, string) error             { return nil }
func (*NoOpProvider) RenameColumn(context.Context, string, string, string) error     { return nil }
func (*NoOpProvider) AddIndex(context.Context, schema.Index) error                   { return nil }
func (*NoOpProvider) RemoveIndex(context.Context, string, string) error              { return nil }
func (*NoOpProvider) AddForeignKey(context.Context, string, schema.ForeignKey) error { return nil }
func (*NoOpProvider) RemoveForeignKey(context.Context, string, string) error         { return nil }
func (*NoOpProvider) AddPrimaryKey(context.Context, string, string, ...string) error { return nil }
func (*NoOpProvider) RemovePrimaryKey(context.Context, string, string) error         { return nil }
func (*NoOpProvider) AddUniqueConstraint(context.Context, string, string, ...string) error {
	return nil
}
func (*NoOpProvider) RemoveConstraint(context.Context, string, string) error { return nil }

func (*NoOpProvider) Insert(context.Context, string, []string, []any) error { return nil }
func (*NoOpProvider) Update(context.Context, string, []string, []any, string, ...any) error {
	return nil
}
func (*NoOpProvider) Delete(context.Context, string, string, ...any) error { return nil }
func (*NoOpProvider) ExecuteNonQuery(context.Context, string, ...any) (int64, error) {
	return 0, nil
}

//nolint:nilnil // No result isn't an error.
func (*NoOpProvider) ExecuteScalar(context.Context, string, ...any) (any, error) {
	return nil, nil
}
func (*NoOpProvider) Select(context.Context, string, ...any) ([]Row, error) { return nil, nil }

func (*NoOpProvider) TableExists(context.Context, string) (bool, error)          { return false, nil }
func (*NoOpProvider) ColumnExists(context.Context, string, string) (bool, error) { return false, nil }
func (*NoOpProvider) IndexExists(context.Context, string, string) (bool, error)  { return false, nil }
func (*NoOpProvider) ConstraintExists(context.Context, string, string) (bool, error) {
	return false, nil
}

func (*NoOpProvider) BeginTransaction(context.Context) error { return nil }
func (*NoOpProvider) Commit(context.Context) error           { return nil }
func (*NoOpProvider) Rollback(context.Context) error         { return nil }

func (*NoOpProvider) Lock(context.Context, string, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func (*NoOpProvider) Close() error { return nil }
