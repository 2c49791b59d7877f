package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Port:                 "8080",
		Environment:          "development",
		LogLevel:             "info",
		ExternalMediaURL:     "https://media.elrond.com",
		IpfsURL:              "https://ipfs.io/ipfs",
		GatewayURL:           "https://gateway.elrond.com",
		ElasticURL:           "https://index.elrond.com",
		EsdtContractAddress:  "erd1qqqqqqqqqqqqqqqpqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqzllls8a5w6u",
		NftProcessMaxRetries: 3,
		CacheURL:             "memory://",
		CacheMaxEntries:      100000,
		BatchConcurrency:     16,
		StorageURL:           "memory://",
		DatabaseURL:          "memory",
		AMQP: AMQPConfig{
			Queue:    "api-process-nfts",
			Prefetch: 10,
		},
		GenesisTimestamp:     1596117600,
		RoundDuration:        6 * time.Second,
		FFmpegPath:           "ffmpeg",
		ThumbnailSize:        256,
		ThumbnailConcurrency: 4,
		MaxPixels:            50000000,
	}
}

// Config is the configuration of the nft worker
type Config struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`

	// Upstreams
	ExternalMediaURL    string `env:"EXTERNAL_MEDIA_URL" env-default:"https://media.elrond.com"`
	IpfsURL             string `env:"IPFS_URL" env-default:"https://ipfs.io/ipfs"`
	GatewayURL          string `env:"GATEWAY_URL" env-default:"https://gateway.elrond.com"`
	ElasticURL          string `env:"ELASTIC_URL" env-default:"https://index.elrond.com"`
	EsdtContractAddress string `env:"ESDT_CONTRACT_ADDRESS" env-default:"erd1qqqqqqqqqqqqqqqpqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqzllls8a5w6u"`

	NftProcessMaxRetries int `env:"NFT_PROCESS_MAX_RETRIES" env-default:"3"`

	// Cache: "memory://" or "redis://host:6379/0"
	CacheURL         string `env:"CACHE_URL" env-default:"memory://"`
	CacheKeyPrefix   string `env:"CACHE_KEY_PREFIX"`
	CacheMaxEntries  int    `env:"CACHE_MAX_ENTRIES" env-default:"100000"`
	BatchConcurrency int    `env:"CACHE_BATCH_CONCURRENCY" env-default:"16"`

	// Thumbnail storage: "memory://", "file:///path" or "s3://bucket?region=..&endpoint=..&path_style=true"
	StorageURL string `env:"STORAGE_URL" env-default:"memory://"`
	S3         S3Config

	// Database: "memory" or "postgres://..."
	DatabaseURL string `env:"DATABASE_URL" env-default:"memory"`
	DBSchema    string `env:"DB_SCHEMA"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" env-default:"false"`

	AMQP AMQPConfig

	// Round clock
	GenesisTimestamp int64         `env:"GENESIS_TIMESTAMP" env-default:"1596117600"`
	RoundDuration    time.Duration `env:"ROUND_DURATION" env-default:"6s"`

	// Thumbnails
	FFmpegPath           string `env:"FFMPEG_PATH" env-default:"ffmpeg"`
	ThumbnailSize        int    `env:"THUMBNAIL_SIZE" env-default:"256"`
	ThumbnailConcurrency int    `env:"THUMBNAIL_CONCURRENCY" env-default:"4"`
	MaxDownloadSize      int64  `env:"THUMBNAIL_MAX_DOWNLOAD_SIZE"`
	MaxPixels            int64  `env:"THUMBNAIL_MAX_PIXELS" env-default:"50000000"`
}

// S3Config holds the credentials not carried by STORAGE_URL
type S3Config struct {
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"AWS_REGION"`
	EnableSSE       bool   `env:"AWS_S3_ENABLE_SSE" env-default:"false"`
	SSEAlgorithm    string `env:"AWS_S3_SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID     string `env:"AWS_S3_SSE_KMS_KEY_ID"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// AMQPConfig configures the queue consumer. An empty URL disables it.
type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Queue    string `env:"AMQP_QUEUE" env-default:"api-process-nfts"`
	Prefetch int    `env:"AMQP_PREFETCH" env-default:"10"`
	Workers  int    `env:"AMQP_WORKERS"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.GatewayURL == "" {
		return errors.New("gateway_url is required")
	}
	if c.IpfsURL == "" {
		return errors.New("ipfs_url is required")
	}
	if c.NftProcessMaxRetries <= 0 {
		return fmt.Errorf("nft_process_max_retries must be positive, got %d", c.NftProcessMaxRetries)
	}
	if c.RoundDuration <= 0 {
		return fmt.Errorf("round_duration must be positive, got %s", c.RoundDuration)
	}
	if _, err := c.cacheKind(); err != nil {
		return err
	}
	if _, err := c.storageKind(); err != nil {
		return err
	}
	if _, err := c.databaseKind(); err != nil {
		return err
	}
	if _, err := c.slogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) cacheKind() (string, error) {
	switch {
	case c.CacheURL == "" || c.CacheURL == "memory" || c.CacheURL == "memory://":
		return "memory", nil
	case strings.HasPrefix(c.CacheURL, "redis://"), strings.HasPrefix(c.CacheURL, "rediss://"):
		return "redis", nil
	default:
		return "", fmt.Errorf("unsupported CACHE_URL format: %s (use 'memory://' or 'redis://...')", c.CacheURL)
	}
}

func (c *Config) storageKind() (string, error) {
	switch {
	case c.StorageURL == "" || c.StorageURL == "memory" || c.StorageURL == "memory://":
		return "memory", nil
	case strings.HasPrefix(c.StorageURL, "file://"):
		if strings.TrimPrefix(c.StorageURL, "file://") == "" {
			return "", errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return "fs", nil
	case strings.HasPrefix(c.StorageURL, "s3://"):
		u, err := url.Parse(c.StorageURL)
		if err != nil || u.Host == "" {
			return "", errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
		return "s3", nil
	default:
		return "", fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", c.StorageURL)
	}
}

func (c *Config) databaseKind() (string, error) {
	switch {
	case c.DatabaseURL == "" || c.DatabaseURL == "memory":
		return "memory", nil
	case strings.HasPrefix(c.DatabaseURL, "postgres://"), strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", c.DatabaseURL)
	}
}

func (c *Config) slogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Logger returns a JSON logger in production and a text logger otherwise
func (c *Config) Logger() *slog.Logger {
	level, err := c.slogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
