package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-nft/pkg/simplenft"
)

// maxMetadataSize bounds a metadata document
const maxMetadataSize = 1 << 20

// ErrDocumentTooLarge is returned for metadata documents over maxMetadataSize.
// It is an error rather than nil metadata so the document is never cached
// half read.
var ErrDocumentTooLarge = errors.New("metadata document too large")

// Fetcher loads the JSON document at an ipfs path. A missing document
// yields nil.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (map[string]any, error)
}

// HTTPFetcher reads documents from an ipfs HTTP gateway
type HTTPFetcher struct {
	ipfsURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPFetcher creates a fetcher for the gateway at ipfsURL
func NewHTTPFetcher(ipfsURL string, client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{ipfsURL: strings.TrimSuffix(ipfsURL, "/"), client: client, logger: logger}
}

// Fetch GETs {ipfsURL}/{path}
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) (map[string]any, error) {
	url := f.ipfsURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &simplenft.UpstreamError{Service: "ipfs", Path: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, &simplenft.UpstreamError{Service: "ipfs", Path: url, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize+1))
	if err != nil {
		return nil, &simplenft.UpstreamError{Service: "ipfs", Path: url, Err: err}
	}
	if len(body) > maxMetadataSize {
		f.logger.Warn("metadata document exceeds size limit", "url", url, "limit", maxMetadataSize)
		return nil, fmt.Errorf("%w: %s is over %d bytes", ErrDocumentTooLarge, url, maxMetadataSize)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		f.logger.Warn("metadata document is not a json object", "url", url, "error", err)
		return nil, nil
	}
	return doc, nil
}
