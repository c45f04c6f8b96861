package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage implements Storage in process memory; contents are lost on exit
type MemoryStorage struct {
	mu            sync.RWMutex
	entries       map[string]*Entry
	initializedAt time.Time
	now           func() time.Time
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries:       make(map[string]*Entry),
		initializedAt: time.Now(),
		now:           time.Now,
	}
}

// Get returns a copy of the entry stored under key
func (ms *MemoryStorage) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entry, exists := ms.entries[key]
	if !exists {
		return nil, ErrNotFound
	}

	copied := *entry
	copied.Value = append([]byte(nil), entry.Value...)
	return &copied, nil
}

// Set stores a copy of value with an optional TTL
func (ms *MemoryStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.entries[key] = newEntry(key, value, ttl, ms.now())
	return nil
}

// Delete removes the key
func (ms *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.entries, key)
	return nil
}

// Stats returns entry counts split by expiry
func (ms *MemoryStorage) Stats(ctx context.Context) (*StorageStats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stats := &StorageStats{
		Backend:       "memory",
		TotalEntries:  len(ms.entries),
		InitializedAt: ms.initializedAt,
	}

	now := ms.now()
	for _, entry := range ms.entries {
		stats.StorageSize += int64(len(entry.Value))
		if entry.Expired(now) {
			stats.ExpiredEntries++
		} else {
			stats.ActiveEntries++
		}
	}
	return stats, nil
}

// Close releases the stored entries
func (ms *MemoryStorage) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.entries = make(map[string]*Entry)
	return nil
}
