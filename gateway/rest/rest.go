// Package rest implements a gateway to MikroTik RouterOS devices using the
// RouterOS v7 REST API.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.hackfix.me/curfew/gateway/types"
)

const (
	identityPath  = "/rest/system/identity"
	filterPath    = "/rest/ip/firewall/filter"
	filter6Path   = "/rest/ipv6/firewall/filter"
	schedulerPath = "/rest/system/scheduler"
	maxBodySize   = 4 * 1024 * 1024 // 4MiB
)

// Config are the connection settings for a RouterOS device.
type Config struct {
	// Address is the router address, either as host[:port] or as a URL. HTTPS
	// is assumed if no scheme is given.
	Address  string
	Username string
	Password string
	// Timeout applies to every request made to the router.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification, which is
	// needed for routers that use the default self-signed certificate.
	InsecureSkipVerify bool
}

// Client is a RouterOS REST API client.
type Client struct {
	*http.Client
	baseURL  *url.URL
	username string
	password string
	logger   *slog.Logger
}

var _ types.Gateway = (*Client)(nil)

// New returns a new Client. It doesn't make any requests.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("router address is required")
	}

	addr := cfg.Address
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}
	baseURL, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("failed parsing router address '%s': %w", cfg.Address, err)
	}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("invalid router address '%s'", cfg.Address)
	}
	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS12,
					InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // Opt-in via configuration.
				},
			},
		},
		baseURL:  baseURL,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger.With("type", "rest", "router", baseURL.Host),
	}, nil
}

// Connect probes the router with a lightweight request, which verifies both
// reachability and credentials.
//
//nolint:ireturn // Required by the interface.
func (c *Client) Connect(ctx context.Context) (types.Conn, error) {
	var identity struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, identityPath, nil, &identity); err != nil {
		return nil, fmt.Errorf("failed probing router: %w", err)
	}
	c.logger.Debug("connected to router", "identity", identity.Name)

	return &conn{client: c}, nil
}

// do sends a request to the router, and decodes the JSON response into out,
// if it's not nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (rerr error) {
	u := *c.baseURL
	u.Path += path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed marshalling request data: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("sending request", "method", method, "path", path)

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("failed sending %s %s request: %w", method, path, err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("failed closing response body: %w", err)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteError(resp, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err = json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed unmarshalling response body: %w", err)
	}

	return nil
}

// remoteError converts an error response into a RemoteError, keeping the
// router's message as is.
func remoteError(resp *http.Response, body []byte) *types.RemoteError {
	rerr := &types.RemoteError{StatusCode: resp.StatusCode}

	var errBody struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &errBody); err == nil && (errBody.Message != "" || errBody.Detail != "") {
		rerr.Message = errBody.Message
		rerr.Detail = errBody.Detail
		return rerr
	}

	rerr.Message = http.StatusText(resp.StatusCode)
	if detail := strings.TrimSpace(string(body)); detail != "" {
		rerr.Detail = detail
	}

	return rerr
}
