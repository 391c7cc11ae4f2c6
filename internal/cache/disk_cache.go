package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DefaultFilename is the cache file used when none is configured
const DefaultFilename = "final_project_cache.json"

// DiskCache implements Persister with a single JSON file
type DiskCache struct {
	path string
}

// NewDisk creates a JSON file persister
func NewDisk(path string) *DiskCache {
	if path == "" {
		path = DefaultFilename
	}
	return &DiskCache{path: path}
}

// Location returns the cache file path
func (d *DiskCache) Location() string {
	return d.path
}

// Load reads the cache file, treating any problem as an empty cache
func (d *DiskCache) Load() Store {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.Debugf("Ignoring unreadable cache file %s: %v", d.path, err)
		}
		return Store{}
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		logrus.Debugf("Ignoring malformed cache file %s: %v", d.path, err)
		return Store{}
	}
	if store == nil {
		return Store{}
	}
	return store
}

// Persist rewrites the whole cache file. The new content is written to a
// sibling temp file first and renamed over the old one.
func (d *DiskCache) Persist(store Store) error {
	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			logrus.Errorf("Failed to remove temp cache file %s: %v", tmpName, err)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set cache file mode: %w", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	logrus.Debugf("Saved %d cache entries to %s", len(store), d.path)
	return nil
}
