// Package metadata resolves the off-chain metadata document referenced by
// an NFT's attributes.
package metadata

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/cache"
	"github.com/tendant/simple-nft/pkg/simplenft/cachekey"
)

const metadataTag = "metadata:"

// Service resolves and caches NFT metadata
type Service struct {
	cache   *cache.Service
	fetcher Fetcher
	logger  *slog.Logger
}

// Option configures the service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a metadata service
func NewService(cacheService *cache.Service, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{cache: cacheService, fetcher: fetcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetMetadata returns the metadata of nft, from cache unless forceRefresh.
// A nil result means the NFT references no metadata.
func (s *Service) GetMetadata(ctx context.Context, nft *simplenft.Nft, forceRefresh bool) (map[string]any, error) {
	info := cachekey.NftMetadata(nft.Identifier)
	return cache.GetOrSet(ctx, s.cache, info.Key, info.TTL, func(ctx context.Context) (map[string]any, error) {
		return s.GetMetadataRaw(ctx, nft)
	}, forceRefresh)
}

// RefreshMetadata resolves the metadata again and overwrites the cache
func (s *Service) RefreshMetadata(ctx context.Context, nft *simplenft.Nft) (map[string]any, error) {
	return s.GetMetadata(ctx, nft, true)
}

// GetMetadataRaw resolves the metadata without reading the cache
func (s *Service) GetMetadataRaw(ctx context.Context, nft *simplenft.Nft) (map[string]any, error) {
	path := MetadataPath(nft.Attributes)
	if path == "" {
		return nil, nil
	}
	s.logger.Debug("fetching metadata", "identifier", nft.Identifier, "path", path)
	return s.fetcher.Fetch(ctx, path)
}

// MetadataPath extracts the ipfs path from base64 attributes such as
// "tags:art;metadata:QmHash/1.json". It returns "" when there is none.
func MetadataPath(attributes string) string {
	if attributes == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(attributes)
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(string(decoded), ";") {
		if path, ok := strings.CutPrefix(strings.TrimSpace(part), metadataTag); ok {
			return strings.TrimSpace(path)
		}
	}
	return ""
}
