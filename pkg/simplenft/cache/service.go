package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Recorder receives cache hit notifications, keyed by key namespace
type Recorder interface {
	CachedHit(namespace string)
	PendingHit(namespace string)
}

type noopRecorder struct{}

func (noopRecorder) CachedHit(string)  {}
func (noopRecorder) PendingHit(string) {}

// Producer computes the value for a cache key on a miss
type Producer[T any] func(ctx context.Context) (T, error)

// Service layers request coalescing over a Store.
//
// The pending registry is a singleflight.Group: at most one producer runs per
// key, and the entry is dropped as soon as that producer returns.
type Service struct {
	remote           Store
	local            Store
	pending          *singleflight.Group
	recorder         Recorder
	logger           *slog.Logger
	batchConcurrency int
}

// Option represents a functional option for configuring the cache service
type Option func(*Service)

// WithLocalStore sets the in-process store used by the *Local helpers.
// Defaults to the main store.
func WithLocalStore(store Store) Option {
	return func(s *Service) {
		s.local = store
	}
}

// WithPending sets the pending request registry, so several services can share it
func WithPending(group *singleflight.Group) Option {
	return func(s *Service) {
		s.pending = group
	}
}

// WithRecorder sets the hit recorder
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBatchConcurrency bounds how many items BatchProcess resolves at once
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		s.batchConcurrency = n
	}
}

// New creates a cache service over store
func New(store Store, options ...Option) *Service {
	s := &Service{
		remote:           store,
		recorder:         noopRecorder{},
		logger:           slog.Default(),
		batchConcurrency: 16,
	}
	for _, option := range options {
		option(s)
	}
	if s.local == nil {
		s.local = store
	}
	if s.pending == nil {
		s.pending = &singleflight.Group{}
	}
	if s.batchConcurrency <= 0 {
		s.batchConcurrency = 1
	}
	return s
}

// GetKeys returns the keys matching pattern. A pattern without glob
// characters is an existence probe for that exact key.
func (s *Service) GetKeys(ctx context.Context, pattern string) ([]string, error) {
	return s.remote.Keys(ctx, pattern)
}

// Delete removes key from both stores
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.remote.Delete(ctx, key); err != nil {
		return err
	}
	if s.local != s.remote {
		return s.local.Delete(ctx, key)
	}
	return nil
}

// Get reads a typed value from the main store
func Get[T any](ctx context.Context, s *Service, key string) (T, bool, error) {
	return get[T](ctx, s.remote, key)
}

// Set writes a typed value to the main store
func Set[T any](ctx context.Context, s *Service, key string, value T, ttl time.Duration) error {
	return set(ctx, s.remote, key, value, ttl)
}

// GetLocal reads a typed value from the local store
func GetLocal[T any](ctx context.Context, s *Service, key string) (T, bool, error) {
	return get[T](ctx, s.local, key)
}

// SetLocal writes a typed value to the local store
func SetLocal[T any](ctx context.Context, s *Service, key string, value T, ttl time.Duration) error {
	return set(ctx, s.local, key, value, ttl)
}

// Namespace returns the key prefix before the first ':'
func Namespace(key string) string {
	ns, _, _ := strings.Cut(key, ":")
	return ns
}

func get[T any](ctx context.Context, store Store, key string) (T, bool, error) {
	var value T
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return value, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return value, true, nil
}

func set[T any](ctx context.Context, store Store, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
