package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCacheRepository is an in-process LRU cache with per-entry expiry.
type MemoryCacheRepository struct {
	entries *expirable.LRU[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryCacheRepository builds a cache holding at most size entries. maxTTL caps how long
// any entry may live regardless of the TTL passed to Set.
func NewMemoryCacheRepository(size int, maxTTL time.Duration) *MemoryCacheRepository {
	if size <= 0 {
		size = 256
	}
	return &MemoryCacheRepository{
		entries: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now:     time.Now,
	}
}

// Get unmarshals a live entry into dest or returns ErrCacheMiss.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	entry, ok := r.entries.Get(key)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		r.entries.Remove(key)
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores a JSON copy of value. A non-positive ttl keeps the entry until evicted.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}
	r.entries.Add(key, entry)
	return nil
}

// DeleteByPattern removes keys matching a glob pattern such as "report:*".
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("invalid cache pattern %q: %w", pattern, err)
	}
	removed := 0
	for _, key := range r.entries.Keys() {
		if ok, _ := path.Match(pattern, key); ok {
			if r.entries.Remove(key) {
				removed++
			}
		}
	}
	return removed, nil
}

// Len returns the number of cached entries, including ones not yet purged.
func (r *MemoryCacheRepository) Len() int {
	return r.entries.Len()
}

// Close drops every cached entry.
func (r *MemoryCacheRepository) Close() error {
	r.entries.Purge()
	return nil
}
