package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.hackfix.me/curfew/web/server/types"
)

const maxBodyReadSize = 1024 * 1024 // 1MiB

// Serializer is the interface for deserializing the raw request body data into
// the typed request value, and for serializing the typed response value into
// the raw response data.
type Serializer interface {
	Deserialize(ctx context.Context, req types.Request) (context.Context, error)
	Serialize(ctx context.Context, resp types.Response) (context.Context, error)
}

// JSONSerializer implements JSON request and response serialization.
type JSONSerializer struct{}

var _ Serializer = (*JSONSerializer)(nil)

// JSON returns a new JSON serializer.
func JSON() JSONSerializer {
	return JSONSerializer{}
}

// Deserialize decodes JSON from the request body into the request object.
// Requests without a body, such as GET and DELETE requests, are left
// untouched. It enforces a maximum body size limit to prevent resource
// exhaustion.
func (JSONSerializer) Deserialize(ctx context.Context, req types.Request) (context.Context, error) {
	httpReq := req.GetHTTPRequest()

	if httpReq.Body == nil || httpReq.Body == http.NoBody {
		return ctx, nil
	}

	limitedReader := io.LimitReader(httpReq.Body, maxBodyReadSize)
	decoder := json.NewDecoder(limitedReader)
	if err := decoder.Decode(req); err != nil {
		if err == io.EOF {
			return ctx, nil
		}
		return ctx, types.NewError(http.StatusBadRequest,
			fmt.Sprintf("failed decoding request body from JSON: %s", err))
	}

	return ctx, nil
}

// Serialize encodes the response as JSON and stores it in the context for writing.
// It sets the appropriate Content-Type header.
func (JSONSerializer) Serialize(ctx context.Context, resp types.Response) (context.Context, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return ctx, fmt.Errorf("failed marshalling response into JSON: %w", err)
	}

	ctx = withResponseData(ctx, data)

	resp.GetHeader().Set("Content-Type", "application/json")

	return ctx, nil
}
