// Package gateway provides the single data-access entry point used by every
// consumer surface. One client contract covers both deployment modes: live
// forwards to the backend API, static serves a fixed demo dataset.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caremesh/telehealth/internal/shared/metrics"
)

// Mode selects between the live backend and the static demo dataset.
// It is fixed when the client is constructed and never changes afterward.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeStatic Mode = "static"
)

// ParseMode parses a mode string, defaulting to live.
func ParseMode(s string) Mode {
	if strings.EqualFold(s, string(ModeStatic)) {
		return ModeStatic
	}
	return ModeLive
}

// TokenSource supplies the bearer token for live-mode requests.
type TokenSource func() string

// Config holds the gateway client configuration. Mode and BaseURL are
// injected here explicitly rather than read from ambient globals.
type Config struct {
	Mode        Mode
	BaseURL     string
	TokenSource TokenSource
	HTTPClient  *http.Client
}

// RequestError represents a failed live-mode request. Status is the HTTP
// status code, or 0 for network-level failures.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
}

// Client is the mode-switching data gateway. Every call is independent:
// no retries, no caching, no deduplication.
type Client struct {
	mode       Mode
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a gateway client. The mode decision is made once here.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		mode:       cfg.Mode,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     cfg.TokenSource,
		httpClient: httpClient,
	}
}

// Mode returns the mode the client was constructed with.
func (c *Client) Mode() Mode {
	return c.mode
}

// FetchData fetches a collection by logical endpoint name.
//
// In static mode the endpoint is looked up in the fixed demo mapping and
// params are ignored; an unmapped endpoint logs a warning and returns an
// empty collection rather than an error. In live mode a GET is issued
// against the backend and the parsed JSON body is returned.
func (c *Client) FetchData(ctx context.Context, endpoint string, params map[string]string) (any, error) {
	if c.mode == ModeStatic {
		collection, ok := staticCollections[endpoint]
		if !ok {
			log.Printf("gateway: unknown static endpoint %q, returning empty collection", endpoint)
			metrics.RecordGatewayRequest(string(c.mode), endpoint, "unknown_endpoint")
			return []map[string]any{}, nil
		}
		metrics.RecordGatewayRequest(string(c.mode), endpoint, "ok")
		return collection, nil
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		reqURL += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &RequestError{Message: err.Error()}
	}

	var result any
	if err := c.do(req, &result); err != nil {
		metrics.RecordGatewayRequest(string(c.mode), endpoint, "error")
		return nil, err
	}
	metrics.RecordGatewayRequest(string(c.mode), endpoint, "ok")
	return result, nil
}

// PostData submits a payload to a logical endpoint.
//
// In static mode a plausible response is synthesized (fresh id, echoed
// payload fields, default status, timestamp) and nothing is persisted:
// a subsequent FetchData will not include it. In live mode a JSON POST is
// issued with the same success/error contract as FetchData.
func (c *Client) PostData(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	if c.mode == ModeStatic {
		metrics.RecordGatewayRequest(string(c.mode), endpoint, "ok")
		return synthesizeResponse(payload), nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("failed to encode payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	var result map[string]any
	if err := c.do(req, &result); err != nil {
		metrics.RecordGatewayRequest(string(c.mode), endpoint, "error")
		return nil, err
	}
	metrics.RecordGatewayRequest(string(c.mode), endpoint, "ok")
	return result, nil
}

// do executes a live-mode request and decodes the response. Non-2xx
// responses surface the server-provided error message when present.
func (c *Client) do(req *http.Request, out any) error {
	if c.tokens != nil {
		if token := c.tokens(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{
			Status:  resp.StatusCode,
			Message: serverMessage(body, resp.StatusCode),
		}
	}

	if len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &RequestError{Status: resp.StatusCode, Message: fmt.Sprintf("invalid response body: %v", err)}
	}
	return nil
}

// serverMessage extracts the error message from a {"error": ...} body,
// falling back to a generic message.
func serverMessage(body []byte, status int) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return fmt.Sprintf("server returned status %d", status)
}
