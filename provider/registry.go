package provider

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	mssql "github.com/microsoft/go-mssqldb"
	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/sijms/go-ora/v2"

	"go.hackfix.me/dbshift/dialect"
)

// Factory opens a connection pool for a connection string.
type Factory func(ctx context.Context, connString string) (*sql.DB, error)

// Registry maps backend identities to the factories of their connections.
type Registry struct {
	mu        sync.RWMutex
	factories map[dialect.Name]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[dialect.Name]Factory)}
}

// DefaultRegistry returns a Registry with factories for all supported
// backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(dialect.SQLServer, OpenSQLServer)
	r.Register(dialect.PostgreSQL, OpenPostgreSQL)
	r.Register(dialect.MySQL, OpenMySQL)
	r.Register(dialect.SQLite, OpenSQLite)
	r.Register(dialect.Oracle, OpenOracle)
	return r
}

// Register sets the factory of the backend, replacing any existing one.
func (r *Registry) Register(name dialect.Name, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered backend identities.
func (r *Registry) Names() []dialect.Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]dialect.Name, 0, len(r.factories))
	for _, n := range dialect.Names() {
		if _, ok := r.factories[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// Resolve returns a Provider connected to the database of the identified
// backend, and its dialect. The identity is matched case-insensitively, and an
// unknown identity fails with *UnknownProviderError before any connection
// attempt.
func (r *Registry) Resolve(
	ctx context.Context, identity, connString string, opts ...Option,
) (*Provider, dialect.Dialect, error) {
	name, err := dialect.ParseName(identity)
	if err != nil {
		return nil, nil, &UnknownProviderError{Identity: identity}
	}
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, &UnknownProviderError{Identity: identity}
	}

	d, err := dialect.ForName(name)
	if err != nil {
		return nil, nil, err
	}

	db, err := factory(ctx, connString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed opening %s database: %w", name, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed connecting to %s database: %w", name, err)
	}

	p, err := New(ctx, db, d, opts...)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return p, d, nil
}

// OpenSQLite opens a SQLite database. In-memory databases keep their idle
// connections open indefinitely, so that the data isn't lost.
func OpenSQLite(_ context.Context, connString string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", connString)
	if err != nil {
		return nil, fmt.Errorf("failed opening SQLite database: %w", err)
	}
	if strings.Contains(connString, "mode=memory") || strings.Contains(connString, ":memory:") {
		// See https://github.com/mattn/go-sqlite3#faq
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Duration(math.Inf(1)))
	}
	return db, nil
}

// OpenPostgreSQL opens a PostgreSQL database with the pgx driver. The
// connection string can be a URL or a keyword/value DSN.
func OpenPostgreSQL(_ context.Context, connString string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed parsing PostgreSQL connection string: %w", err)
	}
	return stdlib.OpenDB(*cfg), nil
}

// OpenMySQL opens a MySQL database. DATE and DATETIME values are always
// parsed into time.Time.
func OpenMySQL(_ context.Context, connString string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(connString)
	if err != nil {
		return nil, fmt.Errorf("failed parsing MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed creating MySQL connector: %w", err)
	}
	return sql.OpenDB(conn), nil
}

// OpenSQLServer opens a SQL Server database.
func OpenSQLServer(_ context.Context, connString string) (*sql.DB, error) {
	conn, err := mssql.NewConnector(connString)
	if err != nil {
		return nil, fmt.Errorf("failed parsing SQL Server connection string: %w", err)
	}
	return sql.OpenDB(conn), nil
}

// OpenOracle opens an Oracle database. The connection string must be an
// oracle:// URL.
func OpenOracle(_ context.Context, connString string) (*sql.DB, error) {
	db, err := sql.Open("oracle", connString)
	if err != nil {
		return nil, fmt.Errorf("failed opening Oracle database: %w", err)
	}
	return db, nil
}
