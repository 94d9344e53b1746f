// Package api implements the version 1 HTTP API.
package api

import (
	"log/slog"
	"net/http"

	"go.hackfix.me/curfew/access"
	dbtypes "go.hackfix.me/curfew/db/types"
	"go.hackfix.me/curfew/web/server/handler"
	"go.hackfix.me/curfew/web/server/types"
)

// Handler is the API endpoint handler.
type Handler struct {
	mgr     *access.Manager
	history dbtypes.Querier
	logger  *slog.Logger
}

// SetupHandlers configures the web API handlers. history may be nil, in which
// case the history endpoint responds with an error.
func SetupHandlers(
	mgr *access.Manager, history dbtypes.Querier, errLvl types.ErrorLevel, logger *slog.Logger,
) http.Handler {
	h := Handler{mgr: mgr, history: history, logger: logger}
	mux := http.NewServeMux()

	p := handler.NewPipeline().
		Serializer(handler.JSON()).
		ErrorLevel(errLvl).
		Logger(logger).
		ProcessResponse(handler.NoStore)

	mux.HandleFunc("POST /schedule", handler.Handle(h.SchedulePost, p))
	mux.HandleFunc("GET /schedule", handler.Handle(h.ScheduleList, p))
	mux.HandleFunc("GET /schedule/{ip...}", handler.Handle(h.ScheduleGet, p))
	mux.HandleFunc("DELETE /schedule/{ip...}", handler.Handle(h.ScheduleDelete, p))
	mux.HandleFunc("GET /history", handler.Handle(h.HistoryGet, p))

	return mux
}
