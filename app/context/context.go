package context

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/dbshift/app/config"
	"go.hackfix.me/dbshift/provider"
)

// Context contains common objects used by the application. It is passed around
// the application to avoid direct dependencies on external systems, and make
// testing easier.
type Context struct {
	Ctx     context.Context // global context
	FS      vfs.FileSystem  // filesystem
	Env     Environment     // process environment
	Logger  *slog.Logger    // global logger
	TimeNow func() time.Time
	Config  *config.Config

	// Providers resolves database provider identities to connections.
	Providers *provider.Registry

	// Standard streams
	Stdout io.Writer
	Stderr io.Writer

	// Metadata
	Version *VersionInfo
}
