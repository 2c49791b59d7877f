// Package media resolves the media files of an NFT from its uris.
package media

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/cache"
	"github.com/tendant/simple-nft/pkg/simplenft/cachekey"
	"github.com/tendant/simple-nft/pkg/simplenft/nfturl"
)

// Service resolves and caches NFT media
type Service struct {
	cache  *cache.Service
	prober Prober
	urls   *nfturl.Strategy
	logger *slog.Logger
}

// Option configures the service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a media service
func NewService(cacheService *cache.Service, prober Prober, urls *nfturl.Strategy, opts ...Option) *Service {
	s := &Service{
		cache:  cacheService,
		prober: prober,
		urls:   urls,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetMedia returns the media of nft, from cache unless forceRefresh.
// A nil result means the NFT has no media to resolve.
func (s *Service) GetMedia(ctx context.Context, nft *simplenft.Nft, forceRefresh bool) ([]simplenft.Media, error) {
	info := cachekey.NftMedia(nft.Identifier)
	return cache.GetOrSet(ctx, s.cache, info.Key, info.TTL, func(ctx context.Context) ([]simplenft.Media, error) {
		return s.GetMediaRaw(ctx, nft)
	}, forceRefresh)
}

// RefreshMedia resolves the media of nft again and overwrites the cache
func (s *Service) RefreshMedia(ctx context.Context, nft *simplenft.Nft) ([]simplenft.Media, error) {
	return s.GetMedia(ctx, nft, true)
}

// GetMediaRaw resolves the media of nft without reading the media cache.
//
// Entries whose url does not answer or whose type is not accepted are
// dropped. A probe that fails outright aborts the whole NFT.
func (s *Service) GetMediaRaw(ctx context.Context, nft *simplenft.Nft) ([]simplenft.Media, error) {
	if nft.Type == simplenft.NftTypeMeta || len(nft.Uris) == 0 {
		return nil, nil
	}

	media := []simplenft.Media{}
	for _, uri := range nft.Uris {
		if uri == "" {
			continue
		}

		originalURL, err := nfturl.DecodeURI(uri)
		if err != nil {
			s.logger.Warn("skipping undecodable uri", "identifier", nft.Identifier, "uri", uri)
			continue
		}
		fetchURL := s.urls.FetchURL(originalURL)

		s.logger.Debug("fetching media", "identifier", nft.Identifier, "url", fetchURL)
		props, err := s.getFileProperties(ctx, fetchURL)
		if err != nil {
			s.logger.Error("unexpected error when fetching media", "identifier", nft.Identifier, "uri", uri, "error", err)
			return nil, fmt.Errorf("fetching media for %s: %w", nft.Identifier, err)
		}
		if props == nil {
			continue
		}

		media = append(media, simplenft.Media{
			URL:          fetchURL,
			OriginalURL:  originalURL,
			ThumbnailURL: s.urls.ThumbnailURL(nft.Collection, fetchURL),
			FileType:     props.ContentType,
			FileSize:     props.ContentLength,
		})
	}
	return media, nil
}

// getFileProperties probes url behind the media properties cache.
// Rejected content types are cached as nil.
func (s *Service) getFileProperties(ctx context.Context, url string) (*FileProperties, error) {
	info := cachekey.NftMediaProperties(url)
	return cache.GetOrSet(ctx, s.cache, info.Key, info.TTL, func(ctx context.Context) (*FileProperties, error) {
		props, err := s.prober.Probe(ctx, url)
		if err != nil || props == nil {
			return nil, err
		}
		if !simplenft.IsMediaTypeAccepted(props.ContentType) {
			s.logger.Info("media content type not accepted", "url", url, "content_type", props.ContentType)
			return nil, nil
		}
		props.ContentType = simplenft.NormalizeMimeType(props.ContentType)
		return props, nil
	}, false)
}
