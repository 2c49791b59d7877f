package media

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tendant/simple-nft/pkg/simplenft"
)

// ProbeTimeout bounds a HEAD probe
const ProbeTimeout = 30 * time.Second

// FileProperties are the content type and length reported for a media url
type FileProperties struct {
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
}

// Prober reads the file properties of a url without fetching its body.
// It returns nil properties when the url does not answer with 200.
type Prober interface {
	Probe(ctx context.Context, url string) (*FileProperties, error)
}

// HTTPProber probes with a HEAD request
type HTTPProber struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPProber creates a prober with the default timeout
func NewHTTPProber(logger *slog.Logger) *HTTPProber {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProber{
		client: &http.Client{Timeout: ProbeTimeout},
		logger: logger,
	}
}

// NewHTTPProberWithClient uses client as is
func NewHTTPProberWithClient(client *http.Client, logger *slog.Logger) *HTTPProber {
	p := NewHTTPProber(logger)
	p.client = client
	return p
}

// Probe issues a HEAD request to url
func (p *HTTPProber) Probe(ctx context.Context, url string) (*FileProperties, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &simplenft.UpstreamError{Service: "ipfs", Path: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Error("unexpected http status code while fetching file properties", "url", url, "status", resp.StatusCode)
		return nil, nil
	}

	length, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if length == 0 && resp.ContentLength > 0 {
		length = resp.ContentLength
	}
	return &FileProperties{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: length,
	}, nil
}
