package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-nft/pkg/simplenft"
)

// Repository implements simplenft.Repository using in-memory storage
type Repository struct {
	mu   sync.RWMutex
	nfts map[string]simplenft.StoredNft
	now  func() time.Time
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		nfts: make(map[string]simplenft.StoredNft),
		now:  time.Now,
	}
}

var _ simplenft.Repository = (*Repository)(nil)

// SaveNft stores a deep copy of nft, replacing any earlier record
func (r *Repository) SaveNft(ctx context.Context, nft *simplenft.Nft) error {
	if nft == nil || nft.Identifier == "" {
		return fmt.Errorf("nft identifier is required")
	}
	stored, err := clone(nft)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nfts[nft.Identifier] = simplenft.StoredNft{Nft: *stored, UpdatedAt: r.now()}
	return nil
}

// GetNft returns a copy of the stored record
func (r *Repository) GetNft(ctx context.Context, identifier string) (*simplenft.StoredNft, error) {
	r.mu.RLock()
	stored, exists := r.nfts[identifier]
	r.mu.RUnlock()

	if !exists {
		return nil, simplenft.ErrNotFound
	}
	nft, err := clone(&stored.Nft)
	if err != nil {
		return nil, err
	}
	return &simplenft.StoredNft{Nft: *nft, UpdatedAt: stored.UpdatedAt}, nil
}

// Identifiers lists the stored identifiers, sorted
func (r *Repository) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.nfts))
	for id := range r.nfts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// clone copies through JSON so metadata maps are not shared with the caller
func clone(nft *simplenft.Nft) (*simplenft.Nft, error) {
	data, err := json.Marshal(nft)
	if err != nil {
		return nil, fmt.Errorf("failed to copy nft: %w", err)
	}
	var out simplenft.Nft
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy nft: %w", err)
	}
	return &out, nil
}
