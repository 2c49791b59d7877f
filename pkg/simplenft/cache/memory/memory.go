package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-nft/pkg/simplenft/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-memory implementation of cache.Store.
// Expired entries are treated as missing on read and removed lazily.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	now        func() time.Time
	maxEntries int
}

// Option configures the in-memory store
type Option func(*Store)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxEntries bounds the number of stored entries. When a write would
// exceed the bound, expired entries are dropped first, then the entry that
// expires soonest.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// New creates a new in-memory cache store
func New(options ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

var _ cache.Store = (*Store)(nil)

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Get returns the value for key if present and not expired
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		if current, ok := s.entries[key]; ok && current.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true, nil
}

// Set stores value for ttl. A ttl <= 0 stores an entry that is already expired.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evict(now)
	}

	expiresAt := now
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	s.entries[key] = entry{value: stored, expiresAt: expiresAt}
	return nil
}

// Keys returns the non-expired keys matching pattern, sorted
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !cache.IsPattern(pattern) {
		if e, ok := s.entries[pattern]; ok && !e.expired(now) {
			return []string{pattern}, nil
		}
		return []string{}, nil
	}

	keys := []string{}
	for key, e := range s.entries {
		if e.expired(now) {
			continue
		}
		if cache.MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// evict must be called with the write lock held
func (s *Store) evict(now time.Time) {
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
	if len(s.entries) < s.maxEntries {
		return
	}

	var victim string
	var soonest time.Time
	for key, e := range s.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim = key
			soonest = e.expiresAt
		}
	}
	delete(s.entries, victim)
}
