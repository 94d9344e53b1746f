// Package client implements a client of the curfew HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.hackfix.me/curfew/access"
	aerrors "go.hackfix.me/curfew/app/errors"
	stypes "go.hackfix.me/curfew/web/server/types"
)

const maxResponseSize = 4 * 1024 * 1024 // 4MiB

// Client is a friendly interface over the curfew HTTP API.
type Client struct {
	*http.Client
	baseURL *url.URL
	logger  *slog.Logger
}

// New returns a new client for the server at address, which can be a
// host:port pair or a URL. HTTP is assumed if no scheme is given.
func New(address string, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		u, err = url.Parse("http://" + address)
		if err != nil {
			return nil, fmt.Errorf("invalid server address '%s': %w", address, err)
		}
	}
	u.Path = "/api/v1"

	return &Client{
		Client:  &http.Client{Timeout: time.Minute},
		baseURL: u,
		logger:  logger.With("component", "web-client"),
	}, nil
}

// Schedule replaces the access window of an address. If the request fails
// after the router was changed, the returned data describes the change.
func (c *Client) Schedule(
	ctx context.Context, req *stypes.SchedulePostRequest,
) (*stypes.ScheduleResponseData, error) {
	var resp stypes.ScheduleResponse
	err := c.do(ctx, http.MethodPost, "/schedule", nil, req, &resp)
	return resp.Data, err
}

// Unschedule removes the access window of an address.
func (c *Client) Unschedule(ctx context.Context, ip string) (*stypes.ScheduleResponseData, error) {
	var resp stypes.ScheduleResponse
	err := c.do(ctx, http.MethodDelete, "/schedule/"+ip, nil, nil, &resp)
	return resp.Data, err
}

// Inspect returns the live state of the window of an address.
func (c *Client) Inspect(ctx context.Context, ip string) (*access.WindowState, error) {
	var resp stypes.WindowResponse
	if err := c.do(ctx, http.MethodGet, "/schedule/"+ip, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// List returns the live state of all windows.
func (c *Client) List(ctx context.Context) ([]*access.WindowState, error) {
	var resp stypes.WindowListResponse
	if err := c.do(ctx, http.MethodGet, "/schedule", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// History returns recorded operation outcomes, most recent first. If ip is
// empty, events of all addresses are returned.
func (c *Client) History(ctx context.Context, ip string, limit int) ([]stypes.EventData, error) {
	query := url.Values{}
	if ip != "" {
		query.Set("ip", ip)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp stypes.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/history", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// do sends a request and decodes the JSON response body into out, which must
// implement stypes.Response. The body is decoded even if the request failed.
func (c *Client) do(
	ctx context.Context, method, path string, query url.Values, in any, out stypes.Response,
) (rerr error) {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	errFields := []any{"url", u.String(), "method", method}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return aerrors.NewWithCause("failed marshalling request data", err, errFields...)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return aerrors.NewWithCause("failed creating request", err, errFields...)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("sending request", "method", method, "url", u.String())

	resp, err := c.Do(req)
	if err != nil {
		return aerrors.NewWithCause("failed sending request", err, errFields...)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("failed closing response body: %w", err)
		}
	}()
	errFields = append(errFields, "status_code", resp.StatusCode)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return aerrors.NewWithCause("failed reading response body", err, errFields...)
	}

	decodeErr := json.Unmarshal(respBody, out)

	if resp.StatusCode != http.StatusOK {
		var cause error = stypes.NewError(resp.StatusCode, http.StatusText(resp.StatusCode))
		if terr, ok := out.GetError().(*stypes.Error); decodeErr == nil && ok {
			terr.StatusCode = resp.StatusCode
			cause = terr
		}
		return aerrors.NewWithCause("request failed", cause, errFields...)
	}

	if decodeErr != nil {
		return aerrors.NewWithCause("failed unmarshalling response body", decodeErr, errFields...)
	}

	return nil
}
