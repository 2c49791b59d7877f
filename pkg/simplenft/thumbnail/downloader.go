package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-nft/pkg/simplenft"
)

// DefaultMaxDownloadSize bounds a downloaded media file
const DefaultMaxDownloadSize = 64 * 1024 * 1024

// ErrMediaTooLarge is returned for media over the download limit. The limit
// does not change between attempts, so it is not worth retrying.
var ErrMediaTooLarge = errors.New("media file too large")

// Downloader fetches the bytes of a media file
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// HTTPDownloader downloads media over http(s)
type HTTPDownloader struct {
	client  *http.Client
	maxSize int64
}

// NewHTTPDownloader creates a downloader. Non-positive limits fall back to
// the defaults.
func NewHTTPDownloader(maxSize int64, timeout time.Duration) *HTTPDownloader {
	if maxSize <= 0 {
		maxSize = DefaultMaxDownloadSize
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDownloader{
		client:  &http.Client{Timeout: timeout},
		maxSize: maxSize,
	}
}

// Download fetches url fully into memory
func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("invalid URL scheme: must be http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &simplenft.UpstreamError{Service: "media", Path: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &simplenft.UpstreamError{Service: "media", Path: url, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if resp.ContentLength > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrMediaTooLarge, resp.ContentLength, d.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, &simplenft.UpstreamError{Service: "media", Path: url, Err: err}
	}
	if int64(len(data)) > d.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrMediaTooLarge, d.maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("downloaded file is empty")
	}
	return data, nil
}
