package api

import (
	"context"
	"net/http"

	"go.hackfix.me/curfew/web/server/types"
)

// SchedulePost replaces the access window of an address. The response carries
// the outcome even if the operation failed, so that clients can tell what was
// changed on the router.
func (h *Handler) SchedulePost(
	ctx context.Context, req *types.SchedulePostRequest,
) (*types.ScheduleResponse, error) {
	// A disconnecting client must not interrupt a change to the router.
	res, err := h.mgr.Schedule(context.WithoutCancel(ctx), req.AccessRequest())
	resp := types.NewScheduleResponse(types.StatusCode(err), res)
	if err != nil {
		return resp, types.NewAccessError(err)
	}

	return resp, nil
}

// ScheduleDelete removes the access window of an address.
func (h *Handler) ScheduleDelete(
	ctx context.Context, req *types.ScheduleRequest,
) (*types.ScheduleResponse, error) {
	res, err := h.mgr.Unschedule(context.WithoutCancel(ctx), req.IP())
	resp := types.NewScheduleResponse(types.StatusCode(err), res)
	if err != nil {
		return resp, types.NewAccessError(err)
	}

	return resp, nil
}

// ScheduleGet returns the live state of the window of an address.
func (h *Handler) ScheduleGet(
	ctx context.Context, req *types.ScheduleRequest,
) (*types.WindowResponse, error) {
	ws, err := h.mgr.Inspect(ctx, req.IP())
	if err != nil {
		return nil, types.NewAccessError(err)
	}

	return &types.WindowResponse{
		BaseResponse: types.NewBaseResponse(http.StatusOK, nil),
		Data:         ws,
	}, nil
}

// ScheduleList returns the live state of all windows on the router.
func (h *Handler) ScheduleList(
	ctx context.Context, _ *types.ScheduleListRequest,
) (*types.WindowListResponse, error) {
	states, err := h.mgr.List(ctx)
	if err != nil {
		return nil, types.NewAccessError(err)
	}

	return &types.WindowListResponse{
		BaseResponse: types.NewBaseResponse(http.StatusOK, nil),
		Data:         states,
	}, nil
}
