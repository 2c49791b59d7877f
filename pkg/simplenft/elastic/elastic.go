// Package elastic runs list queries against the indexer's Elasticsearch
// cluster.
package elastic

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

const serviceName = "elastic"

// Document is one search hit, its _source merged with its id
type Document map[string]any

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Client queries an Elasticsearch endpoint
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

// New creates a client for baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetList runs query on index and returns the hits in order. The hit id
// is stored in each document under idField unless _source already has it.
func (c *Client) GetList(ctx context.Context, index, idField string, query *Query) ([]Document, error) {
	path := index + "/_search"
	payload, err := json.Marshal(query.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to encode elastic query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &simplenft.UpstreamError{Service: serviceName, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &simplenft.UpstreamError{Service: serviceName, Path: path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &simplenft.UpstreamError{Service: serviceName, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	docs := make([]Document, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		doc := Document{idField: hit.ID}
		for k, v := range hit.Source {
			doc[k] = v
		}
		docs = append(docs, doc)
	}
	c.logger.Debug("elastic list query completed", "index", index, "hits", len(docs))
	return docs, nil
}

// Decode converts a document into a typed value
func Decode[T any](doc Document) (T, error) {
	var value T
	raw, err := json.Marshal(doc)
	if err != nil {
		return value, err
	}
	err = json.Unmarshal(raw, &value)
	return value, err
}
