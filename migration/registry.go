package migration

import (
	"fmt"
	"sync"
)

// Source is a container of migrations consumed by a Catalog.
type Source interface {
	Migrations() ([]Migration, error)
}

// List is a Source of an in-memory list of migrations.
type List []Migration

// Migrations returns the list.
func (l List) Migrations() ([]Migration, error) {
	return l, nil
}

func (l List) String() string {
	return "list"
}

// Factory returns a new Migration.
type Factory func() Migration

type registryEntry struct {
	version int64
	factory Factory
}

// Registry is a Source of statically registered migrations. It's safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries []registryEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by the package-level Register
// functions.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a function-backed migration to the default registry. It's
// meant to be called from init functions.
func Register(version int64, name string, apply, revert Func) {
	defaultRegistry.Register(version, name, apply, revert)
}

// RegisterFactory adds a migration factory to the default registry.
func RegisterFactory(version int64, factory Factory) {
	defaultRegistry.RegisterFactory(version, factory)
}

// Register adds a function-backed migration.
func (r *Registry) Register(version int64, name string, apply, revert Func) {
	m := New(version, name, apply, revert)
	r.RegisterFactory(version, func() Migration { return m })
}

// RegisterFactory adds a migration that's created by factory when the
// registry is loaded. The migration must have the given version.
func (r *Registry) RegisterFactory(version int64, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registryEntry{version: version, factory: factory})
}

// Migrations creates all registered migrations in registration order.
func (r *Registry) Migrations() ([]Migration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	migrations := make([]Migration, 0, len(r.entries))
	for _, e := range r.entries {
		if e.factory == nil {
			return nil, &LoadError{Source: r.String(), Version: e.version, Msg: "factory is nil"}
		}
		m := e.factory()
		if m == nil {
			return nil, &LoadError{Source: r.String(), Version: e.version, Msg: "factory returned nil"}
		}
		if m.Version() != e.version {
			return nil, &LoadError{
				Source: r.String(), Version: e.version,
				Msg: fmt.Sprintf("factory returned migration with version %d", m.Version()),
			}
		}
		migrations = append(migrations, m)
	}

	return migrations, nil
}

func (r *Registry) String() string {
	return "registry"
}
