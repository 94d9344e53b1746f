package context

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus"

	"go.hackfix.me/curfew/app/config"
	"go.hackfix.me/curfew/db"
	gtypes "go.hackfix.me/curfew/gateway/types"
)

// Context contains common objects used by the application. It is passed around
// the application to avoid direct dependencies on external systems, and make
// testing easier.
type Context struct {
	Ctx     context.Context  // global context
	FS      vfs.FileSystem   // filesystem
	Env     Environment      // process environment
	Logger  *slog.Logger     // global logger
	TimeNow func() time.Time // current time
	UUIDGen func() string    // identifiers of history events

	// Standard streams
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Config *config.Config
	DB     *db.DB
	// Gateway overrides the gateway created from the configuration. It's only
	// set in tests.
	Gateway  gtypes.Gateway
	Registry *prometheus.Registry

	// Metadata
	Version *VersionInfo
}
