package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Well-known keys shared by the engines
const (
	CatalogCacheKey = "storefront:catalog"
	CartKey         = "storefront:cart"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted
var ErrNotFound = errors.New("storage: key not found")

// StorageCorruptionError indicates a persisted record that could not be decoded
type StorageCorruptionError struct {
	Key string
	Err error
}

func (e *StorageCorruptionError) Error() string {
	return fmt.Sprintf("storage: corrupted record %q: %v", e.Key, e.Err)
}

func (e *StorageCorruptionError) Unwrap() error {
	return e.Err
}

// Entry is a stored value plus its TTL bookkeeping
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	StoredAt  time.Time `json:"storedAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed at now. Entries without TTL never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Storage is the key/value persistence used by the catalog cache and the cart.
// Get returns expired entries as well; callers decide whether stale data is acceptable.
type Storage interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Stats(ctx context.Context) (*StorageStats, error)
	Close() error
}

// StorageStats provides information about the stored keys
type StorageStats struct {
	Backend        string    `json:"backend"`
	TotalEntries   int       `json:"totalEntries"`
	ActiveEntries  int       `json:"activeEntries"`
	ExpiredEntries int       `json:"expiredEntries"`
	StorageSize    int64     `json:"storageSize"`
	InitializedAt  time.Time `json:"initializedAt"`
}

func newEntry(key string, value []byte, ttl time.Duration, now time.Time) *Entry {
	entry := &Entry{
		Key:      key,
		Value:    append([]byte(nil), value...),
		StoredAt: now,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	return entry
}

// Open returns the storage backend named by backend ("file" or "memory")
func Open(backend, dir string) (Storage, error) {
	switch backend {
	case "", "file":
		return NewFileStorage(dir)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
