// Package thumbnail renders and stores NFT thumbnails. Generation is
// idempotent per (identifier, media url): a marker key in the cache records
// every stored thumbnail.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/cache"
	"github.com/tendant/simple-nft/pkg/simplenft/cachekey"
	"github.com/tendant/simple-nft/pkg/simplenft/nfturl"
)

// ContentType of stored thumbnails
const ContentType = "image/jpeg"

// Service generates thumbnails
type Service struct {
	cache      *cache.Service
	blobs      simplenft.BlobStore
	downloader Downloader
	extractors map[string]Extractor
	size       int
	logger     *slog.Logger
}

// Option configures the service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSize sets the thumbnail bounding box
func WithSize(size int) Option {
	return func(s *Service) {
		s.size = size
	}
}

// WithMaxPixels bounds the declared dimensions of decoded images
func WithMaxPixels(n int64) Option {
	return func(s *Service) {
		s.extractors["image"] = ImageExtractor{MaxPixels: n}
	}
}

// WithExtractor registers the extractor for a media family ("image",
// "video", "audio") or a full MIME type such as "image/svg+xml". A full
// type takes precedence over its family.
func WithExtractor(mediaType string, extractor Extractor) Option {
	return func(s *Service) {
		s.extractors[mediaType] = extractor
	}
}

// NewService creates a thumbnail service. Images are decoded and audio gets
// a placeholder by default; video needs WithExtractor("video", ...).
func NewService(cacheService *cache.Service, blobs simplenft.BlobStore, downloader Downloader, opts ...Option) *Service {
	s := &Service{
		cache:      cacheService,
		blobs:      blobs,
		downloader: downloader,
		extractors: map[string]Extractor{
			"image": ImageExtractor{},
			"audio": PlaceholderExtractor{},
		},
		size:   DefaultSize,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasThumbnailGenerated reports whether a thumbnail was stored for url
func (s *Service) HasThumbnailGenerated(ctx context.Context, identifier, url string) (bool, error) {
	keys, err := s.cache.GetKeys(ctx, cachekey.NftThumbnail(identifier, nfturl.Hash(url)).Key)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// GenerateThumbnail renders and stores the thumbnail of one media file of
// nft. Concurrent calls for the same media share one generation.
//
// Media that cannot be turned into a frame yields
// ThumbnailCouldNotExtractThumbnail with a nil error. Download and storage
// failures are returned as errors.
func (s *Service) GenerateThumbnail(ctx context.Context, nft *simplenft.Nft, mediaURL, fileType string, forceRefresh bool) (simplenft.ThumbnailResult, error) {
	if !forceRefresh {
		exists, err := s.HasThumbnailGenerated(ctx, nft.Identifier, mediaURL)
		if err != nil {
			return "", err
		}
		if exists {
			s.logger.Debug("thumbnail already generated", "identifier", nft.Identifier, "url", mediaURL)
			return simplenft.ThumbnailAlreadyExists, nil
		}
	}

	marker := cachekey.NftThumbnail(nft.Identifier, nfturl.Hash(mediaURL))
	return cache.Coalesce(ctx, s.cache, marker.Key, func(ctx context.Context) (simplenft.ThumbnailResult, error) {
		if !forceRefresh {
			// a generation may have finished between the probe and the flight
			if exists, err := s.HasThumbnailGenerated(ctx, nft.Identifier, mediaURL); err != nil || exists {
				return simplenft.ThumbnailAlreadyExists, err
			}
		}
		result, err := s.generate(ctx, nft, mediaURL, fileType)
		if err != nil || result != simplenft.ThumbnailGenerated {
			return result, err
		}
		if err := cache.Set(ctx, s.cache, marker.Key, true, marker.TTL); err != nil {
			return "", err
		}
		return result, nil
	})
}

func (s *Service) generate(ctx context.Context, nft *simplenft.Nft, mediaURL, fileType string) (simplenft.ThumbnailResult, error) {
	logger := s.logger.With("identifier", nft.Identifier, "url", mediaURL, "file_type", fileType)

	extractor := s.extractorFor(fileType)
	if extractor == nil {
		logger.Warn("no thumbnail extractor for media type")
		return simplenft.ThumbnailCouldNotExtractThumbnail, nil
	}

	data, err := s.downloader.Download(ctx, mediaURL)
	if errors.Is(err, ErrMediaTooLarge) {
		logger.Warn("media too large for thumbnail", "error", err)
		return simplenft.ThumbnailCouldNotExtractThumbnail, nil
	}
	if err != nil {
		return "", fmt.Errorf("downloading media for thumbnail: %w", err)
	}

	frame, err := extractor.Extract(ctx, data)
	if err != nil {
		logger.Warn("could not extract thumbnail", "error", err)
		return simplenft.ThumbnailCouldNotExtractThumbnail, nil
	}

	rendered, err := Render(frame, s.size)
	if err != nil {
		logger.Warn("could not render thumbnail", "error", err)
		return simplenft.ThumbnailCouldNotExtractThumbnail, nil
	}

	objectKey := nfturl.ThumbnailObjectKey(nft.Collection, mediaURL)
	err = s.blobs.UploadWithParams(ctx, bytes.NewReader(rendered), simplenft.UploadParams{
		ObjectKey: objectKey,
		MimeType:  ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("storing thumbnail %s: %w", objectKey, err)
	}

	logger.Info("thumbnail generated", "object_key", objectKey, "size", len(rendered))
	return simplenft.ThumbnailGenerated, nil
}

func (s *Service) extractorFor(fileType string) Extractor {
	mediaType := simplenft.NormalizeMimeType(fileType)
	if e, ok := s.extractors[mediaType]; ok {
		return e
	}
	family, _, _ := strings.Cut(mediaType, "/")
	return s.extractors[family]
}
