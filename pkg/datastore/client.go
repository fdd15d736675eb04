// Package datastore is the HTTP client for the external PostgREST-style
// table API the orchestration core reports results to (spec §4.2). It never
// talks to Postgres directly: the DataStore is an out-of-process HTTP
// collaborator, the same way the teacher repo treats remote MCP servers, and
// this package's bearer-token round-tripper is grounded on that pattern
// (pkg/mcp/transport.go's bearerTokenTransport).
package datastore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantum-forge/orchestrator-core/pkg/config"
)

// Error is returned for any failed DataStore interaction: transport failure,
// a non-2xx HTTP status, or a response-decode failure (spec §3.2).
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("datastore %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("datastore %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return e.Cause }

// bearerTokenTransport wraps an http.RoundTripper to add the service-role
// Authorization/apikey headers PostgREST requires on every request.
type bearerTokenTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("apikey", t.token)
	return t.base.RoundTrip(req)
}

// Client is the low-level HTTP transport shared by every Table[T]. Most
// callers should construct a Table via datastore.NewTable rather than using
// Client directly.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client from cfg. Callers should check cfg.Enabled first (spec
// §6): a disabled config still builds a usable Client so the Logging Emitter
// can branch once at the top instead of threading nil checks through every
// table accessor.
func New(cfg config.DataStoreConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	httpClient := &http.Client{
		Transport: &bearerTokenTransport{base: transport, token: cfg.APIKey},
		Timeout:   15 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) endpoint(table, rawQuery string) string {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, extraHeaders map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &Error{Op: op, Cause: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Cause: fmt.Errorf("executing request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Cause: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func decode[T any](op string, body []byte, dest *T) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &Error{Op: op, Cause: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
