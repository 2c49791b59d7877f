package cache

import (
	"context"
	"strings"
	"time"
)

// Store is a key-value store with per-entry expiry.
//
// A ttl <= 0 stores nothing readable: the entry behaves as already expired.
// Reads past expiry behave as a miss.
type Store interface {
	// Get returns the value for key, false if missing or expired
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Keys returns the non-expired keys matching a glob pattern
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Delete removes key, missing keys are not an error
	Delete(ctx context.Context, key string) error
}

// IsPattern reports whether key contains glob meta characters.
func IsPattern(key string) bool {
	return strings.ContainsAny(key, `*?[\`)
}
