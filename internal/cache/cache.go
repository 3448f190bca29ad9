// Package cache records the content each scanner was generated from, so
// that a rule file saved without changes is not generated again.
package cache

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type fileMetadata struct {
	Hash         string
	LastModified time.Time
}

type entry struct {
	Metadata  fileMetadata
	Key       string
	CreatedAt time.Time
}

type Cache struct {
	entries map[string]entry
	mutex   sync.RWMutex
	maxAge  time.Duration
}

// New returns an empty cache. Entries older than maxAge are stale; zero
// keeps them forever.
func New(maxAge time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		maxAge:  maxAge,
	}
}

// Set records the current content of filename as generated with key, which
// names the options of the run.
func (c *Cache) Set(filename, key string) error {
	metadata, err := getFileMetadata(filename)
	if err != nil {
		return fmt.Errorf("failed to get file metadata: %w", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[filename] = entry{
		Metadata:  metadata,
		Key:       key,
		CreatedAt: time.Now(),
	}
	return nil
}

// Fresh reports whether filename still has the content recorded by Set
// for the same key.
func (c *Cache) Fresh(filename, key string) bool {
	c.mutex.RLock()
	e, exists := c.entries[filename]
	c.mutex.RUnlock()
	if !exists {
		return false
	}

	if c.isEntryInvalid(filename, key, e) {
		c.Invalidate(filename)
		return false
	}
	return true
}

func (c *Cache) isEntryInvalid(filename, key string, e entry) bool {
	// too old
	if c.maxAge > 0 && time.Since(e.CreatedAt) > c.maxAge {
		return true
	}
	if e.Key != key {
		return true
	}

	// the modification time alone changes on every save
	current, err := getFileMetadata(filename)
	return err != nil || current.Hash != e.Metadata.Hash
}

func (c *Cache) Invalidate(filename string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, filename)
}

func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]entry)
}

func getFileMetadata(filename string) (fileMetadata, error) {
	file, err := os.Open(filename)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fileMetadata{}, fmt.Errorf("failed to calculate hash: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return fileMetadata{}, fmt.Errorf("failed to get file info: %w", err)
	}

	return fileMetadata{
		Hash:         fmt.Sprintf("%x", hash.Sum(nil)),
		LastModified: info.ModTime(),
	}, nil
}
