package api

import (
	"context"
	"net/http"

	"go.hackfix.me/curfew/db/models"
	"go.hackfix.me/curfew/web/server/types"
)

// HistoryGet returns the most recent operation outcomes, optionally filtered
// by address.
func (h *Handler) HistoryGet(
	ctx context.Context, req *types.HistoryRequest,
) (*types.HistoryResponse, error) {
	if h.history == nil {
		return nil, types.NewError(http.StatusNotImplemented, "history store is not available")
	}

	events, err := models.EventsFor(ctx, h.history, req.IP(), req.Limit())
	if err != nil {
		return nil, err
	}

	data := make([]types.EventData, 0, len(events))
	for _, ev := range events {
		data = append(data, types.NewEventData(ev))
	}

	return &types.HistoryResponse{
		BaseResponse: types.NewBaseResponse(http.StatusOK, nil),
		Data:         data,
	}, nil
}
