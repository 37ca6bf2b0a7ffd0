// Package migration loads versioned schema changes and applies them to a
// database in order, keeping track of the applied versions.
//
// Features:
// - Migrations are registered statically in Go code, or loaded from other sources
// - Forward (apply) and backward (revert) runs to any target version
// - Each migration runs in its own transaction by default, or all of them in one
// - Concurrent runs against the same database are prevented with a run lock
// - Applied versions are tracked in a metadata table (default `schema_info`)
package migration

import (
	"context"
	"fmt"

	"go.hackfix.me/dbshift/provider"
)

// Migration is a single versioned schema change.
type Migration interface {
	// Version is the unique positive number that orders the migration.
	Version() int64
	Name() string
	// Apply makes the schema change.
	Apply(ctx context.Context, p provider.TransformationProvider) error
	// Revert undoes the change made by Apply.
	Revert(ctx context.Context, p provider.TransformationProvider) error
}

// Func is the signature of the Apply and Revert steps of function-backed
// migrations.
type Func func(ctx context.Context, p provider.TransformationProvider) error

type funcMigration struct {
	version int64
	name    string
	apply   Func
	revert  Func
}

// New returns a Migration that runs the given functions. Validation happens
// when the migration is loaded into a Catalog.
func New(version int64, name string, apply, revert Func) Migration { //nolint:ireturn // Intentional.
	return &funcMigration{version: version, name: name, apply: apply, revert: revert}
}

func (m *funcMigration) Version() int64 { return m.version }
func (m *funcMigration) Name() string   { return m.name }

func (m *funcMigration) Apply(ctx context.Context, p provider.TransformationProvider) error {
	return m.apply(ctx, p)
}

func (m *funcMigration) Revert(ctx context.Context, p provider.TransformationProvider) error {
	return m.revert(ctx, p)
}

func (m *funcMigration) validate() string {
	switch {
	case m.apply == nil:
		return "apply function is required"
	case m.revert == nil:
		return "revert function is required"
	}
	return ""
}

// Direction is the direction of a run.
type Direction int

// Run directions.
const (
	Forward Direction = iota + 1
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Step is a single migration scheduled in a run.
type Step struct {
	Version   int64
	Name      string
	Direction Direction
}

func (s Step) String() string {
	return fmt.Sprintf("%d-%s (%s)", s.Version, s.Name, s.Direction)
}

// Plan is the ordered list of steps that moves the schema from the current
// version to the target version.
type Plan struct {
	Current   int64
	Target    int64
	Direction Direction
	Steps     []Step

	migrations []Migration
}

// Empty reports whether the plan has no steps.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}
