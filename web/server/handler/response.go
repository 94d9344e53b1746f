package handler

import (
	"context"
	"errors"
	"net/http"

	"go.hackfix.me/curfew/web/server/types"
)

// RequestProcessor processes incoming requests and can modify the request or context.
type RequestProcessor func(ctx context.Context, req types.Request) (context.Context, error)

// ResponseProcessor processes outgoing responses and can modify the response or context.
type ResponseProcessor func(ctx context.Context, resp types.Response) (context.Context, error)

// NoStore disables caching of the response by clients and proxies.
func NoStore(ctx context.Context, resp types.Response) (context.Context, error) {
	resp.GetHeader().Set("Cache-Control", "no-store")
	return ctx, nil
}

type contextKey struct{}

// withResponseData stores the encoded response body for writeResponse.
func withResponseData(ctx context.Context, data []byte) context.Context {
	return context.WithValue(ctx, contextKey{}, data)
}

func writeResponse(ctx context.Context, w http.ResponseWriter, resp types.Response) error {
	data, _ := ctx.Value(contextKey{}).([]byte)

	// Respond with at least some kind of useful response, even if it's invalid.
	var terr *types.Error
	if len(data) == 0 && errors.As(resp.GetError(), &terr) {
		data = []byte(terr.Message)
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}

	w.WriteHeader(resp.GetStatusCode())
	_, err := w.Write(data)

	return err //nolint:wrapcheck // Wrapped by caller.
}
