package migration

import (
	"context"
	"fmt"
	"slices"

	"go.hackfix.me/dbshift/provider"
	"go.hackfix.me/dbshift/schema"
)

// DefaultVersionTable is the default name of the metadata table.
const DefaultVersionTable = "schema_info"

const versionColumn = "version"

// VersionTracker records applied migration versions in the metadata table.
type VersionTracker struct {
	p     provider.TransformationProvider
	table string
}

// NewVersionTracker returns a VersionTracker that uses the given metadata
// table, or DefaultVersionTable if it's empty.
func NewVersionTracker(p provider.TransformationProvider, table string) *VersionTracker {
	if table == "" {
		table = DefaultVersionTable
	}
	return &VersionTracker{p: p, table: table}
}

// Table returns the name of the metadata table.
func (vt *VersionTracker) Table() string {
	return vt.table
}

// EnsureSchema creates the metadata table if it doesn't exist.
func (vt *VersionTracker) EnsureSchema(ctx context.Context) error {
	exists, err := vt.p.TableExists(ctx, vt.table)
	if err != nil {
		return fmt.Errorf("failed checking metadata table: %w", err)
	}
	if exists {
		return nil
	}

	err = vt.p.AddTable(ctx, schema.NewTable(vt.table,
		schema.NewColumn(versionColumn, schema.Int64, schema.PrimaryKey)))
	if err != nil {
		return fmt.Errorf("failed creating metadata table: %w", err)
	}

	return nil
}

// AppliedVersions returns the recorded versions in ascending order.
func (vt *VersionTracker) AppliedVersions(ctx context.Context) ([]int64, error) {
	d := vt.p.Dialect()
	if d == nil {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s",
		d.QuoteIdentifier(versionColumn), d.QuoteIdentifier(vt.table))
	rows, err := vt.p.Select(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed reading applied versions: %w", err)
	}

	versions := make([]int64, 0, len(rows))
	for _, row := range rows {
		for _, val := range row {
			v, err := toInt64(val)
			if err != nil {
				return nil, fmt.Errorf("failed reading applied versions: %w", err)
			}
			versions = append(versions, v)
		}
	}
	slices.Sort(versions)

	return versions, nil
}

// CurrentVersion returns the highest recorded version, or 0 if no migrations
// were applied.
func (vt *VersionTracker) CurrentVersion(ctx context.Context) (int64, error) {
	versions, err := vt.AppliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1], nil
}

// MarkApplied records the version. It runs in the caller's transaction, if
// any, and never commits.
func (vt *VersionTracker) MarkApplied(ctx context.Context, version int64) error {
	err := vt.p.Insert(ctx, vt.table, []string{versionColumn}, []any{version})
	if err != nil {
		return fmt.Errorf("failed recording version %d: %w", version, err)
	}
	return nil
}

// MarkReverted deletes the version record. It runs in the caller's
// transaction, if any, and never commits.
func (vt *VersionTracker) MarkReverted(ctx context.Context, version int64) error {
	d := vt.p.Dialect()
	if d == nil {
		return nil
	}
	where := fmt.Sprintf("%s = %s", d.QuoteIdentifier(versionColumn), d.Placeholder(1))
	if err := vt.p.Delete(ctx, vt.table, where, version); err != nil {
		return fmt.Errorf("failed deleting version %d: %w", version, err)
	}
	return nil
}

func toInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		var n int64
		_, err := fmt.Sscan(string(v), &n)
		return n, err //nolint:wrapcheck // Wrapped by the caller.
	case string:
		var n int64
		_, err := fmt.Sscan(v, &n)
		return n, err //nolint:wrapcheck // Wrapped by the caller.
	}
	return 0, fmt.Errorf("unexpected version value %v of type %T", val, val)
}
