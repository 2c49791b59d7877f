// Package gateway is a client for the blockchain gateway HTTP API.
//
// Every gateway response is wrapped in an envelope:
//
//	{"data": {...}, "error": "", "code": "successful"}
//
// The client unwraps it and decodes data into the caller's value.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-nft/pkg/simplenft"
)

const serviceName = "gateway"

// DefaultTimeout bounds every gateway request
const DefaultTimeout = 30 * time.Second

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

// Client calls the gateway
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a gateway client for baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches path and decodes the envelope data into out.
//
// When the gateway reports an error and notFound recognises its message,
// Get returns false and a nil error, leaving out untouched.
func (c *Client) Get(ctx context.Context, path string, out any, notFound func(message string) bool) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return false, err
	}
	return c.do(req, path, out, notFound)
}

// Post sends body as JSON to path and decodes the envelope data into out
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, path, out, nil)
	return err
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) do(req *http.Request, path string, out any, notFound func(string) bool) (bool, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &simplenft.UpstreamError{Service: serviceName, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &simplenft.UpstreamError{Service: serviceName, Path: path, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || env.Error != "" {
		message := env.Error
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		if notFound != nil && notFound(message) {
			c.logger.Debug("gateway resource not found", "path", path, "error", message)
			return false, nil
		}
		return false, &simplenft.UpstreamError{Service: serviceName, Path: path, StatusCode: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return false, &simplenft.UpstreamError{Service: serviceName, Path: path, StatusCode: resp.StatusCode, Err: decodeErr}
	}

	c.logger.Debug("gateway request completed", "path", path, "duration", time.Since(start))

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return false, fmt.Errorf("failed to decode gateway response for %s: %w", path, err)
		}
	}
	return true, nil
}

// AccountNotFound matches the gateway error for an address with no state
func AccountNotFound(message string) bool {
	return strings.Contains(message, "account was not found")
}
