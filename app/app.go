// Package app wires the application dependencies and runs the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/nrednav/cuid2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go.hackfix.me/curfew/app/config"
	actx "go.hackfix.me/curfew/app/context"
	"go.hackfix.me/curfew/cli"
	"go.hackfix.me/curfew/db"
)

// dbFileName is the name of the history database in the data directory.
const dbFileName = "curfew.db"

// App is the application.
type App struct {
	name string
	ctx  *actx.Context
	cli  *cli.CLI
	// the logging level is set via the CLI, if the app was initialized with the
	// WithLogger option.
	logLevel *slog.LevelVar
}

// New initializes a new application. configFile and dataDir are the default
// paths of the configuration file and the data directory, which can be
// overridden via the CLI.
func New(name, configFile, dataDir string, opts ...Option) (*App, error) {
	version, err := actx.GetVersion()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	defaultCtx := &actx.Context{
		Ctx:      context.Background(),
		FS:       memoryfs.New(),
		Logger:   slog.Default(),
		TimeNow:  time.Now,
		UUIDGen:  cuid2.Generate,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
		Registry: reg,
		Version:  version,
	}
	app := &App{name: name, ctx: defaultCtx}

	for _, opt := range opts {
		opt(app)
	}

	ver := fmt.Sprintf("%s %s", app.name, app.ctx.Version.String())
	app.cli, err = cli.New(app.ctx, app.name, configFile, dataDir, ver)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Run initializes the application environment and starts execution of the
// application.
func (app *App) Run(args []string) error {
	if err := app.cli.Parse(args); err != nil {
		return err
	}

	if app.logLevel != nil {
		app.logLevel.Set(app.cli.Log.Level)
		slog.SetLogLoggerLevel(app.cli.Log.Level)
	}

	if app.ctx.Config == nil {
		cfg := config.NewConfig(app.ctx.FS, app.cli.ConfigFile)
		if err := cfg.Load(); err != nil {
			return err
		}
		app.ctx.Config = cfg
	}
	app.ctx.Config.SetDefaults()
	app.cli.ApplyConfig(app.ctx.Config)

	if app.ctx.DB == nil {
		d, err := app.openDB()
		if err != nil {
			return err
		}
		defer func() {
			if err := d.Close(); err != nil {
				app.ctx.Logger.Warn("failed closing database", "error", err.Error())
			}
			app.ctx.DB = nil
		}()
		app.ctx.DB = d
	}

	if err := app.cli.Execute(app.ctx); err != nil {
		return err
	}

	return nil
}

func (app *App) openDB() (*db.DB, error) {
	if err := app.ctx.FS.MkdirAll(app.cli.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed creating data directory: %w", err)
	}

	d, err := db.Open(filepath.Join(app.cli.DataDir, dbFileName), app.ctx.TimeNow)
	if err != nil {
		return nil, err
	}

	if err = d.Init(app.ctx.Ctx, app.ctx.Version.Semantic, app.ctx.Logger); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed initializing database: %w", err)
	}

	return d, nil
}
