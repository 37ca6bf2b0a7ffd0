// Package sqlfile loads migrations from a directory of SQL scripts.
//
// Features:
// - Files are named `{version}-{name}.{up|down}.sql`
// - Backend-specific variants are named `{version}-{name}.{up|down}.{provider}.sql`,
//   e.g. `3-add_index.up.postgresql.sql`
// - A variant replaces the generic script when the run's backend matches it
// - Scripts may contain several statements separated by semicolons
package sqlfile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/dbshift/dialect"
	"go.hackfix.me/dbshift/migration"
	"go.hackfix.me/dbshift/provider"
)

var fileNameRx = regexp.MustCompile(`^([^-]+)-(.+?)\.(up|down)(?:\.([A-Za-z0-9]+))?\.sql$`)

// Source is a migration.Source backed by a directory of SQL files.
type Source struct {
	fs  vfs.FileSystem
	dir string
}

var _ migration.Source = (*Source)(nil)

// New returns a Source that reads the SQL files in dir.
func New(fs vfs.FileSystem, dir string) *Source {
	return &Source{fs: fs, dir: dir}
}

func (s *Source) String() string {
	return s.dir
}

// script holds the statements of one direction of a migration.
type script struct {
	file  string
	stmts []string
}

type sqlMigration struct {
	version int64
	name    string
	up      *script
	down    *script
	// Backend-specific scripts.
	upFor   map[dialect.Name]*script
	downFor map[dialect.Name]*script
}

// Migrations reads and parses all migration files in the directory. Files
// without the .sql extension are ignored.
func (s *Source) Migrations() ([]migration.Migration, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	byVersion := map[int64]*sqlMigration{}
	for _, fi := range files {
		if err = s.load(byVersion, fi.Name()); err != nil {
			return nil, err
		}
	}

	migrations := make([]migration.Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if err = s.check(m); err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}
	slices.SortFunc(migrations, func(a, b migration.Migration) int {
		return cmp.Compare(a.Version(), b.Version())
	})

	return migrations, nil
}

func (s *Source) files() ([]os.FileInfo, error) {
	entries, err := vfs.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, &migration.LoadError{Source: s.dir, Msg: "failed reading directory", Err: err}
	}

	files := make([]os.FileInfo, 0, len(entries))
	for _, fi := range entries {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ".sql") {
			continue
		}
		files = append(files, fi)
	}

	return files, nil
}

func (s *Source) load(byVersion map[int64]*sqlMigration, fileName string) error {
	match := fileNameRx.FindStringSubmatch(fileName)
	if match == nil {
		return &migration.LoadError{
			Source: s.dir,
			Msg: fmt.Sprintf("invalid migration file name '%s', expected "+
				"'{version}-{name}.{up|down}.sql'", fileName),
		}
	}

	version, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return &migration.LoadError{
			Source: s.dir,
			Msg:    fmt.Sprintf("invalid version '%s' in file name '%s'", match[1], fileName),
		}
	}
	name, direction, variant := match[2], match[3], match[4]

	m, ok := byVersion[version]
	if !ok {
		m = &sqlMigration{
			version: version, name: name,
			upFor: map[dialect.Name]*script{}, downFor: map[dialect.Name]*script{},
		}
		byVersion[version] = m
	}
	if m.name != name {
		return &migration.DuplicateVersionError{Version: version, First: m.name, Second: name}
	}

	data, err := vfs.ReadFile(s.fs, vfs.Join(s.fs, s.dir, fileName))
	if err != nil {
		return &migration.LoadError{
			Source: s.dir, Version: version,
			Msg: fmt.Sprintf("failed reading file '%s'", fileName), Err: err,
		}
	}
	sc := &script{file: fileName, stmts: Split(string(data))}

	if variant == "" {
		if direction == "up" {
			m.up = sc
		} else {
			m.down = sc
		}
		return nil
	}

	dname, err := dialect.ParseName(variant)
	if err != nil {
		return &migration.LoadError{
			Source: s.dir, Version: version,
			Msg: fmt.Sprintf("invalid file name '%s'", fileName), Err: err,
		}
	}
	scripts := m.upFor
	if direction == "down" {
		scripts = m.downFor
	}
	if prev, ok := scripts[dname]; ok {
		return &migration.LoadError{
			Source: s.dir, Version: version,
			Msg: fmt.Sprintf("files '%s' and '%s' are both %s scripts for %s",
				prev.file, fileName, direction, dname),
		}
	}
	scripts[dname] = sc

	return nil
}

// check ensures every up script has a matching down script, and vice versa.
func (s *Source) check(m *sqlMigration) error {
	missing := func(dir, variant string) error {
		return &migration.LoadError{
			Source: s.dir, Version: m.version,
			Msg: fmt.Sprintf("missing %s file for migration '%s'%s", dir, m.name, variant),
		}
	}

	switch {
	case m.up != nil && m.down == nil:
		return missing("down", "")
	case m.up == nil && m.down != nil:
		return missing("up", "")
	}
	for _, n := range dialect.Names() {
		_, up := m.upFor[n]
		_, down := m.downFor[n]
		switch {
		case up && !down:
			return missing("down", fmt.Sprintf(" on %s", n))
		case !up && down:
			return missing("up", fmt.Sprintf(" on %s", n))
		}
	}

	return nil
}

func (m *sqlMigration) Version() int64 { return m.version }
func (m *sqlMigration) Name() string   { return m.name }

// Apply runs the up script for the provider's backend, or the generic up
// script if there's no backend-specific one.
func (m *sqlMigration) Apply(ctx context.Context, p provider.TransformationProvider) error {
	return m.run(ctx, p, m.up, m.upFor)
}

// Revert runs the down script for the provider's backend, or the generic down
// script if there's no backend-specific one.
func (m *sqlMigration) Revert(ctx context.Context, p provider.TransformationProvider) error {
	return m.run(ctx, p, m.down, m.downFor)
}

func (m *sqlMigration) run(
	ctx context.Context, p provider.TransformationProvider,
	generic *script, variants map[dialect.Name]*script,
) error {
	for _, n := range dialect.Names() {
		sc, ok := variants[n]
		if !ok {
			continue
		}
		vp := p.For(string(n))
		if vp == provider.NoOp {
			continue
		}
		return exec(ctx, vp, sc)
	}

	if generic == nil {
		return nil
	}

	return exec(ctx, p, generic)
}

func exec(ctx context.Context, p provider.TransformationProvider, sc *script) error {
	for i, stmt := range sc.stmts {
		if _, err := p.ExecuteNonQuery(ctx, stmt); err != nil {
			return fmt.Errorf("failed executing statement %d of '%s': %w", i+1, sc.file, err)
		}
	}
	return nil
}

// Create writes an empty up and down script pair for a new migration. Its
// version follows the highest one in the directory, and the after version,
// which callers set to the highest version of other sources. The directory is
// created if it doesn't exist. It returns the new version and the paths of
// both files.
func (s *Source) Create(name string, after int64) (version int64, upPath, downPath string, err error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return 0, "", "", fmt.Errorf("invalid migration name '%s'", name)
	}

	if err = s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return 0, "", "", fmt.Errorf("failed creating directory '%s': %w", s.dir, err)
	}

	migrations, err := s.Migrations()
	if err != nil {
		return 0, "", "", err
	}
	version = after
	for _, m := range migrations {
		version = max(version, m.Version())
	}
	version++

	base := fmt.Sprintf("%d-%s", version, name)
	upPath = vfs.Join(s.fs, s.dir, base+".up.sql")
	downPath = vfs.Join(s.fs, s.dir, base+".down.sql")
	for _, f := range []struct{ path, header string }{
		{upPath, "-- Apply " + name},
		{downPath, "-- Revert " + name},
	} {
		if err = vfs.WriteFile(s.fs, f.path, []byte(f.header+"\n"), 0o644); err != nil {
			return 0, "", "", fmt.Errorf("failed writing file '%s': %w", f.path, err)
		}
	}

	return version, upPath, downPath, nil
}

// IsNotExist returns true if err is caused by a missing migrations directory.
func IsNotExist(err error) bool {
	var lerr *migration.LoadError
	return errors.As(err, &lerr) && vfs.IsErrNotExist(lerr.Err)
}
