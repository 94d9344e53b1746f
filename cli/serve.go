package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"go.hackfix.me/curfew/access"
	actx "go.hackfix.me/curfew/app/context"
	"go.hackfix.me/curfew/web/server"
	stypes "go.hackfix.me/curfew/web/server/types"
)

const shutdownTimeout = 30 * time.Second

// Serve starts the web server.
type Serve struct {
	Address string `arg:"" optional:"" help:"[host]:port to listen on. Defaults to the configured server address."`
	//nolint:lll // Long struct tags are unavoidable.
	ErrorLevel stypes.ErrorLevel `default:"full" enum:"none,minimal,full" help:"Detail level of error messages returned to clients, in order to avoid leaking router details. This doesn't affect response status codes. Valid values: ${enum} \n none: hide all error messages; minimal: hide server error messages; full: keep error messages intact"`
}

// Run the serve command.
func (c *Serve) Run(appCtx *actx.Context) error {
	// Metrics are only exposed by the server, so the manager of other
	// commands doesn't register them.
	var opts []access.Option
	if appCtx.Registry != nil {
		opts = append(opts, access.WithRegisterer(appCtx.Registry))
	}
	mgr, err := newManager(appCtx, opts...)
	if err != nil {
		return err
	}

	srv := server.New(appCtx, mgr, c.Address, c.ErrorLevel)
	logger := appCtx.Logger.With("component", "web-server")

	ctx, stop := signal.NotifyContext(appCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srvErr := srv.ListenAndServe()
		logger.Debug("web server shutdown")
		if srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			return fmt.Errorf("web server error: %w", srvErr)
		}
		return nil
	})

	// Gracefully shutdown the server if a process signal is received, the
	// main context is done, or the server failed.
	g.Go(func() error {
		<-gctx.Done()
		logger.Debug("shutting down web server", "reason", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(appCtx.Ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("failed shutting down web server: %w", err)
		}
		return nil
	})

	//nolint:wrapcheck // Errors are wrapped by the goroutines.
	return g.Wait()
}
