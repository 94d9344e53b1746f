// Package server implements the HTTP server that exposes the access window
// operations.
package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.hackfix.me/curfew/access"
	actx "go.hackfix.me/curfew/app/context"
	dbtypes "go.hackfix.me/curfew/db/types"
	api "go.hackfix.me/curfew/web/server/api/v1"
	"go.hackfix.me/curfew/web/server/middleware"
	"go.hackfix.me/curfew/web/server/types"
)

// Server is a wrapper around http.Server with some custom behavior.
type Server struct {
	*http.Server
	logger *slog.Logger
}

// New returns a new web Server instance that will listen on addr.
func New(appCtx *actx.Context, mgr *access.Manager, addr string, errLvl types.ErrorLevel) *Server {
	logger := appCtx.Logger.With("component", "web-server")

	var history dbtypes.Querier
	if appCtx.DB != nil {
		history = appCtx.DB
	}

	srv := &Server{
		Server: &http.Server{
			Handler:           SetupHandlers(mgr, history, appCtx.Registry, errLvl, logger),
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Router calls are bounded by the gateway timeout, but an operation
			// makes several of them.
			WriteTimeout: 5 * time.Minute,
		},
		logger: logger,
	}

	return srv
}

// ListenAndServe starts the HTTP server. It stores the actual listen address,
// which is convenient when the address is dynamically determined by the
// system (e.g. ':0').
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	s.Addr = ln.Addr().String()
	s.logger.Info("started listener", "address", s.Addr)

	//nolint:wrapcheck // This is fine.
	return s.Serve(ln)
}

// SetupHandlers configures the server HTTP handlers. Metrics are served from
// reg, which is also where the HTTP metrics are registered.
func SetupHandlers(
	mgr *access.Manager, history dbtypes.Querier, reg *prometheus.Registry,
	errLvl types.ErrorLevel, logger *slog.Logger,
) http.Handler {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1",
		api.SetupHandlers(mgr, history, errLvl, logger)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return middleware.Chain(
		middleware.Logger(logger),
		middleware.Metrics(reg, access.MetricsNamespace),
		mux,
	)
}
