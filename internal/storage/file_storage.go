package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStorage implements Storage with one JSON envelope file per key.
// Values must be valid JSON so the files stay human readable.
type FileStorage struct {
	mu            sync.RWMutex
	dir           string
	initializedAt time.Time
	now           func() time.Time
}

// fileEnvelope is the on-disk format of an Entry
type fileEnvelope struct {
	Key       string          `json:"key"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// NewFileStorage creates the directory if needed and returns a file-backed storage
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	slog.Info("File storage initialized", "dir", dir)

	return &FileStorage{
		dir:           dir,
		initializedAt: time.Now(),
		now:           time.Now,
	}, nil
}

// Get reads the entry stored under key
func (fs *FileStorage) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path := fs.pathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error reading storage file: %w", err)
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		slog.Warn("Corrupted storage file", "key", key, "path", path, "error", err)
		return nil, &StorageCorruptionError{Key: key, Err: err}
	}

	entry := &Entry{
		Key:      key,
		Value:    []byte(envelope.Value),
		StoredAt: envelope.StoredAt,
	}
	if envelope.ExpiresAt != nil {
		entry.ExpiresAt = *envelope.ExpiresAt
	}
	return entry, nil
}

// Set writes the value atomically by writing to a temp file first
func (fs *FileStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("storage: value for %q is not valid JSON", key)
	}

	entry := newEntry(key, value, ttl, fs.now())
	envelope := fileEnvelope{
		Key:      key,
		StoredAt: entry.StoredAt,
		Value:    json.RawMessage(entry.Value),
	}
	if !entry.ExpiresAt.IsZero() {
		envelope.ExpiresAt = &entry.ExpiresAt
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling storage entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.pathFor(key)
	tempFilePath := path + ".tmp"
	if err := os.WriteFile(tempFilePath, data, 0644); err != nil {
		return fmt.Errorf("error writing temp file: %w", err)
	}

	if err := os.Rename(tempFilePath, path); err != nil {
		// Clean up temp file if rename fails
		os.Remove(tempFilePath)
		return fmt.Errorf("error replacing storage file: %w", err)
	}

	slog.Debug("Storage entry saved", "key", key, "path", path, "bytes", len(data))
	return nil
}

// Delete removes the key; deleting a missing key is not an error
func (fs *FileStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.pathFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error deleting storage file: %w", err)
	}
	return nil
}

// Stats walks the storage directory and classifies entries by expiry
func (fs *FileStorage) Stats(ctx context.Context) (*StorageStats, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	files, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("error listing storage directory: %w", err)
	}

	stats := &StorageStats{
		Backend:       "file",
		InitializedAt: fs.initializedAt,
	}
	now := fs.now()

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(fs.dir, file.Name()))
		if err != nil {
			continue
		}
		stats.TotalEntries++
		stats.StorageSize += int64(len(data))

		var envelope fileEnvelope
		if json.Unmarshal(data, &envelope) != nil {
			stats.ExpiredEntries++
			continue
		}
		if envelope.ExpiresAt != nil && !now.Before(*envelope.ExpiresAt) {
			stats.ExpiredEntries++
		} else {
			stats.ActiveEntries++
		}
	}

	return stats, nil
}

// Close is a no-op; every Set is already durable
func (fs *FileStorage) Close() error {
	return nil
}

// pathFor maps a key to a file name inside the storage directory
func (fs *FileStorage) pathFor(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(fs.dir, name+".json")
}
