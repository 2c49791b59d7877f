// Package worker runs the enrichment pipeline for one NFT: metadata, then
// media, then one thumbnail per media file.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/cachekey"
	"github.com/tendant/simple-nft/pkg/simplenft/nfturl"
)

// Step names reported in ProcessError
const (
	StepMetadata  = "metadata"
	StepMedia     = "media"
	StepThumbnail = "thumbnail"
	StepSave      = "save"
)

// MetadataResolver resolves NFT metadata
type MetadataResolver interface {
	GetMetadata(ctx context.Context, nft *simplenft.Nft, forceRefresh bool) (map[string]any, error)
	RefreshMetadata(ctx context.Context, nft *simplenft.Nft) (map[string]any, error)
}

// MediaResolver resolves NFT media files
type MediaResolver interface {
	GetMedia(ctx context.Context, nft *simplenft.Nft, forceRefresh bool) ([]simplenft.Media, error)
	RefreshMedia(ctx context.Context, nft *simplenft.Nft) ([]simplenft.Media, error)
}

// ThumbnailGenerator renders thumbnails for media files
type ThumbnailGenerator interface {
	GenerateThumbnail(ctx context.Context, nft *simplenft.Nft, mediaURL, fileType string, forceRefresh bool) (simplenft.ThumbnailResult, error)
	HasThumbnailGenerated(ctx context.Context, identifier, url string) (bool, error)
}

// KeyProber checks which cache keys exist
type KeyProber interface {
	GetKeys(ctx context.Context, pattern string) ([]string, error)
}

// Recorder observes finished processing runs
type Recorder interface {
	Processed(status simplenft.ProcessStatus, err error, elapsed time.Duration)
}

// Processor orchestrates the enrichment of one NFT. It never retries;
// callers decide what a failure means.
type Processor struct {
	metadata   MetadataResolver
	media      MediaResolver
	thumbnails ThumbnailGenerator
	keys       KeyProber
	repo       simplenft.Repository
	recorder   Recorder
	logger     *slog.Logger
	fanOut     int
}

// Option configures the processor
type Option func(*Processor)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRepository persists every completed NFT
func WithRepository(repo simplenft.Repository) Option {
	return func(p *Processor) {
		p.repo = repo
	}
}

// WithRecorder reports finished runs, for metrics
func WithRecorder(recorder Recorder) Option {
	return func(p *Processor) {
		p.recorder = recorder
	}
}

// WithThumbnailConcurrency bounds parallel thumbnail generations per NFT.
// Zero or less means unbounded.
func WithThumbnailConcurrency(n int) Option {
	return func(p *Processor) {
		p.fanOut = n
	}
}

// NewProcessor creates a processor
func NewProcessor(metadata MetadataResolver, media MediaResolver, thumbnails ThumbnailGenerator, keys KeyProber, opts ...Option) *Processor {
	p := &Processor{
		metadata:   metadata,
		media:      media,
		thumbnails: thumbnails,
		keys:       keys,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NeedsProcessing reports whether any step for nft is missing or forced
func (p *Processor) NeedsProcessing(ctx context.Context, nft *simplenft.Nft, settings simplenft.ProcessSettings) (bool, error) {
	if settings.AnyForced() {
		return true, nil
	}

	for _, key := range []string{cachekey.NftMedia(nft.Identifier).Key, cachekey.NftMetadata(nft.Identifier).Key} {
		keys, err := p.keys.GetKeys(ctx, key)
		if err != nil {
			return false, err
		}
		if len(keys) == 0 {
			return true, nil
		}
	}

	if !settings.SkipRefreshThumbnail {
		for _, media := range nft.Media {
			exists, err := p.thumbnails.HasThumbnailGenerated(ctx, nft.Identifier, media.URL)
			if err != nil {
				return false, err
			}
			if !exists {
				return true, nil
			}
		}
	}
	return false, nil
}

// ProcessIfNeeded runs Process only when NeedsProcessing says so
func (p *Processor) ProcessIfNeeded(ctx context.Context, nft *simplenft.Nft, settings simplenft.ProcessSettings) (simplenft.ProcessStatus, error) {
	needed, err := p.NeedsProcessing(ctx, nft, settings)
	if err != nil {
		return "", fmt.Errorf("checking processing state of %s: %w", nft.Identifier, err)
	}
	if !needed {
		p.logger.Info("no processing is needed", "identifier", nft.Identifier)
		p.record(simplenft.ProcessStatusSkipped, nil, 0)
		return simplenft.ProcessStatusSkipped, nil
	}
	return p.Process(ctx, nft, settings)
}

// Process runs every step for nft, mutating it in place. The first failing
// step aborts the run with a *simplenft.ProcessError.
func (p *Processor) Process(ctx context.Context, nft *simplenft.Nft, settings simplenft.ProcessSettings) (status simplenft.ProcessStatus, err error) {
	start := time.Now()
	defer func() {
		p.record(status, err, time.Since(start))
	}()

	metadata, err := p.metadata.GetMetadata(ctx, nft, false)
	if err == nil && (settings.ForceRefreshMetadata || metadata == nil) {
		metadata, err = p.metadata.RefreshMetadata(ctx, nft)
	}
	if err != nil {
		return "", &simplenft.ProcessError{Identifier: nft.Identifier, Step: StepMetadata, Err: err}
	}
	nft.Metadata = metadata

	media, err := p.media.GetMedia(ctx, nft, false)
	if err == nil && (settings.ForceRefreshMedia || media == nil) {
		media, err = p.media.RefreshMedia(ctx, nft)
	}
	if err != nil {
		return "", &simplenft.ProcessError{Identifier: nft.Identifier, Step: StepMedia, Err: err}
	}
	nft.Media = media

	if len(nft.Media) > 0 && !settings.SkipRefreshThumbnail {
		if err := p.generateThumbnails(ctx, nft, settings.ForceRefreshThumbnail); err != nil {
			return "", err
		}
	}

	if p.repo != nil {
		if err := p.repo.SaveNft(ctx, nft); err != nil {
			return "", &simplenft.ProcessError{Identifier: nft.Identifier, Step: StepSave, Err: err}
		}
	}

	return simplenft.ProcessStatusCompleted, nil
}

func (p *Processor) generateThumbnails(ctx context.Context, nft *simplenft.Nft, forceRefresh bool) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.fanOut > 0 {
		g.SetLimit(p.fanOut)
	}
	for _, media := range nft.Media {
		g.Go(func() error {
			result, err := p.thumbnails.GenerateThumbnail(gctx, nft, media.URL, media.FileType, forceRefresh)
			if err == nil && result == simplenft.ThumbnailCouldNotExtractThumbnail {
				err = fmt.Errorf("%w for url %s", simplenft.ErrCouldNotExtractThumbnail, media.URL)
			}
			if err != nil {
				p.logger.Error("thumbnail generation failed",
					"identifier", nft.Identifier, "url", media.URL, "url_hash", nfturl.Hash(media.URL), "error", err)
				return &simplenft.ProcessError{Identifier: nft.Identifier, Step: StepThumbnail, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Processor) record(status simplenft.ProcessStatus, err error, elapsed time.Duration) {
	if p.recorder != nil {
		p.recorder.Processed(status, err, elapsed)
	}
}
