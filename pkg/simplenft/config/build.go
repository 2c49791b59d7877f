package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/cache"
	cachememory "github.com/tendant/simple-nft/pkg/simplenft/cache/memory"
	cacheredis "github.com/tendant/simple-nft/pkg/simplenft/cache/redis"
	"github.com/tendant/simple-nft/pkg/simplenft/elastic"
	"github.com/tendant/simple-nft/pkg/simplenft/esdt"
	"github.com/tendant/simple-nft/pkg/simplenft/gateway"
	"github.com/tendant/simple-nft/pkg/simplenft/media"
	"github.com/tendant/simple-nft/pkg/simplenft/metadata"
	"github.com/tendant/simple-nft/pkg/simplenft/metrics"
	"github.com/tendant/simple-nft/pkg/simplenft/nfturl"
	"github.com/tendant/simple-nft/pkg/simplenft/queue"
	repomemory "github.com/tendant/simple-nft/pkg/simplenft/repo/memory"
	repopg "github.com/tendant/simple-nft/pkg/simplenft/repo/postgres"
	"github.com/tendant/simple-nft/pkg/simplenft/round"
	fsstorage "github.com/tendant/simple-nft/pkg/simplenft/storage/fs"
	memorystorage "github.com/tendant/simple-nft/pkg/simplenft/storage/memory"
	s3storage "github.com/tendant/simple-nft/pkg/simplenft/storage/s3"
	"github.com/tendant/simple-nft/pkg/simplenft/thumbnail"
	"github.com/tendant/simple-nft/pkg/simplenft/worker"
)

// App holds every component built from a Config
type App struct {
	Config     *Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Cache      *cache.Service
	Blobs      simplenft.BlobStore
	Repo       simplenft.Repository
	Esdt       *esdt.Service
	Metadata   *metadata.Service
	Media      *media.Service
	Thumbnails *thumbnail.Service
	Processor  *worker.Processor
	Consumer   *queue.Consumer

	closers []func() error
}

// Close releases connections opened by Build
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

// Build composes all components from the configuration
func (c *Config) Build(ctx context.Context, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = c.Logger()
	}
	app := &App{Config: c, Logger: logger, Metrics: metrics.New()}

	if err := c.build(ctx, app); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (c *Config) build(ctx context.Context, app *App) error {
	logger := app.Logger

	store, err := c.buildCacheStore(ctx, app)
	if err != nil {
		return fmt.Errorf("failed to build cache: %w", err)
	}
	app.Cache = cache.New(store,
		cache.WithLocalStore(cachememory.New(cachememory.WithMaxEntries(c.CacheMaxEntries))),
		cache.WithRecorder(app.Metrics),
		cache.WithLogger(logger),
		cache.WithBatchConcurrency(c.BatchConcurrency),
	)

	if app.Blobs, err = c.buildBlobStore(ctx); err != nil {
		return fmt.Errorf("failed to build storage backend: %w", err)
	}

	if app.Repo, err = c.buildRepository(ctx, app); err != nil {
		return fmt.Errorf("failed to build repository: %w", err)
	}

	gw := gateway.New(c.GatewayURL, gateway.WithLogger(logger))
	es := elastic.New(c.ElasticURL, elastic.WithLogger(logger))
	rounds := round.NewClock(time.Unix(c.GenesisTimestamp, 0), c.RoundDuration)
	app.Esdt = esdt.NewService(gw, es, app.Cache, rounds, c.EsdtContractAddress, esdt.WithLogger(logger))

	urls := nfturl.NewStrategy(c.ExternalMediaURL, c.IpfsURL)
	app.Metadata = metadata.NewService(app.Cache, metadata.NewHTTPFetcher(c.IpfsURL, nil, logger), metadata.WithLogger(logger))
	app.Media = media.NewService(app.Cache, media.NewHTTPProber(logger), urls, media.WithLogger(logger))

	thumbnailOpts := []thumbnail.Option{
		thumbnail.WithLogger(logger),
		thumbnail.WithSize(c.ThumbnailSize),
		thumbnail.WithMaxPixels(c.MaxPixels),
	}
	if video := thumbnail.NewVideoExtractor(c.FFmpegPath); video != nil {
		thumbnailOpts = append(thumbnailOpts, thumbnail.WithExtractor("video", video))
	} else {
		logger.Warn("ffmpeg not found, video thumbnails are disabled", "ffmpeg_path", c.FFmpegPath)
	}
	downloader := thumbnail.NewHTTPDownloader(c.MaxDownloadSize, 0)
	app.Thumbnails = thumbnail.NewService(app.Cache, app.Blobs, downloader, thumbnailOpts...)

	app.Processor = worker.NewProcessor(app.Metadata, app.Media, app.Thumbnails, app.Cache,
		worker.WithLogger(logger),
		worker.WithRepository(app.Repo),
		worker.WithRecorder(app.Metrics),
		worker.WithThumbnailConcurrency(c.ThumbnailConcurrency),
	)
	app.Consumer = queue.NewConsumer(app.Processor, c.NftProcessMaxRetries,
		queue.WithLogger(logger),
		queue.WithRecorder(app.Metrics),
	)
	return nil
}

func (c *Config) buildCacheStore(ctx context.Context, app *App) (cache.Store, error) {
	kind, err := c.cacheKind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case "redis":
		store, err := cacheredis.New(ctx, cacheredis.Config{URL: c.CacheURL, KeyPrefix: c.CacheKeyPrefix})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		return store, nil
	default:
		return cachememory.New(cachememory.WithMaxEntries(c.CacheMaxEntries)), nil
	}
}

func (c *Config) buildBlobStore(ctx context.Context) (simplenft.BlobStore, error) {
	kind, err := c.storageKind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: strings.TrimPrefix(c.StorageURL, "file://")})
	case "s3":
		s3Config, err := c.s3Config()
		if err != nil {
			return nil, err
		}
		return s3storage.New(ctx, s3Config)
	default:
		return memorystorage.New(), nil
	}
}

// s3Config reads the bucket and endpoint from STORAGE_URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func (c *Config) s3Config() (s3storage.Config, error) {
	u, err := url.Parse(c.StorageURL)
	if err != nil {
		return s3storage.Config{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	query := u.Query()

	config := s3storage.Config{
		Region:                 query.Get("region"),
		Bucket:                 u.Host,
		AccessKeyID:            c.S3.AccessKeyID,
		SecretAccessKey:        c.S3.SecretAccessKey,
		Endpoint:               query.Get("endpoint"),
		EnableSSE:              c.S3.EnableSSE,
		SSEAlgorithm:           c.S3.SSEAlgorithm,
		SSEKMSKeyID:            c.S3.SSEKMSKeyID,
		CreateBucketIfNotExist: c.S3.CreateBucket,
		CacheControl:           "public, max-age=31536000, immutable",
	}
	if config.Region == "" {
		config.Region = c.S3.Region
	}
	if raw := query.Get("path_style"); raw != "" {
		if config.UsePathStyle, err = strconv.ParseBool(raw); err != nil {
			return s3storage.Config{}, fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
		}
	}
	return config, nil
}

func (c *Config) buildRepository(ctx context.Context, app *App) (simplenft.Repository, error) {
	kind, err := c.databaseKind()
	if err != nil {
		return nil, err
	}
	if kind == "memory" {
		return repomemory.New(), nil
	}

	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema := c.DBSchema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	app.closers = append(app.closers, func() error {
		pool.Close()
		return nil
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if c.AutoMigrate {
		if err := repopg.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return repopg.NewWithPool(pool), nil
}
