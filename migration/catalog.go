package migration

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
)

// Catalog is the validated set of loaded migrations, ordered by version.
type Catalog struct {
	migrations []Migration
	byVersion  map[int64]Migration
}

// LoadCatalog loads the migrations of all sources and validates them. All
// versions must be positive and unique across sources.
func LoadCatalog(sources ...Source) (*Catalog, error) {
	c := &Catalog{byVersion: make(map[int64]Migration)}

	for _, src := range sources {
		srcName := sourceName(src)
		migrations, err := src.Migrations()
		if err != nil {
			var (
				lerr *LoadError
				derr *DuplicateVersionError
			)
			if errors.As(err, &lerr) || errors.As(err, &derr) {
				return nil, err
			}
			return nil, &LoadError{Source: srcName, Err: err}
		}

		for _, m := range migrations {
			if err = validate(srcName, m); err != nil {
				return nil, err
			}
			if prev, ok := c.byVersion[m.Version()]; ok {
				return nil, &DuplicateVersionError{
					Version: m.Version(), First: prev.Name(), Second: m.Name(),
				}
			}
			c.byVersion[m.Version()] = m
			c.migrations = append(c.migrations, m)
		}
	}

	slices.SortFunc(c.migrations, func(a, b Migration) int {
		return cmp.Compare(a.Version(), b.Version())
	})

	return c, nil
}

func validate(srcName string, m Migration) error {
	if m == nil {
		return &LoadError{Source: srcName, Msg: "migration is nil"}
	}
	lerr := &LoadError{Source: srcName, Version: m.Version()}
	switch {
	case m.Version() <= 0:
		lerr.Msg = fmt.Sprintf("version %d must be positive", m.Version())
	case m.Name() == "":
		lerr.Msg = "name is required"
	}
	if fm, ok := m.(*funcMigration); ok && lerr.Msg == "" {
		lerr.Msg = fm.validate()
	}
	if lerr.Msg != "" {
		return lerr
	}
	return nil
}

func sourceName(src Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}

// All returns an iterator over the migrations in ascending version order.
func (c *Catalog) All() iter.Seq[Migration] {
	return func(yield func(Migration) bool) {
		for _, m := range c.migrations {
			if !yield(m) {
				return
			}
		}
	}
}

// Len returns the number of migrations.
func (c *Catalog) Len() int {
	return len(c.migrations)
}

// Versions returns all versions in ascending order.
func (c *Catalog) Versions() []int64 {
	versions := make([]int64, len(c.migrations))
	for i, m := range c.migrations {
		versions[i] = m.Version()
	}
	return versions
}

// Max returns the highest version, or 0 if the catalog is empty.
func (c *Catalog) Max() int64 {
	if len(c.migrations) == 0 {
		return 0
	}
	return c.migrations[len(c.migrations)-1].Version()
}

// Get returns the migration with the given version.
func (c *Catalog) Get(version int64) (Migration, bool) { //nolint:ireturn // Intentional.
	m, ok := c.byVersion[version]
	return m, ok
}

// Between returns the migrations with versions in the range (from, to], in
// ascending order.
func (c *Catalog) Between(from, to int64) []Migration {
	var out []Migration
	for _, m := range c.migrations {
		if v := m.Version(); v > from && v <= to {
			out = append(out, m)
		}
	}
	return out
}
