package updater

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheFileName = "version-check.json"
	// DefaultCacheMaxAge is how long a registry lookup is trusted.
	DefaultCacheMaxAge = 24 * time.Hour
)

// VersionCache is the last registry lookup of the CLI's own package.
type VersionCache struct {
	Package       string    `json:"package"`
	LatestVersion string    `json:"latest_version"`
	CheckedAt     time.Time `json:"checked_at"`
}

// LoadCache reads the version cache from the CLI home.
// Returns nil, nil if the cache file does not exist (first run).
func LoadCache(home string) (*VersionCache, error) {
	path := filepath.Join(home, cacheFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading version cache: %w", err)
	}

	var cache VersionCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing version cache: %w", err)
	}
	return &cache, nil
}

// SaveCache writes the version cache to the CLI home.
func SaveCache(home string, cache *VersionCache) error {
	if err := os.MkdirAll(home, 0755); err != nil {
		return fmt.Errorf("creating home directory: %w", err)
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling version cache: %w", err)
	}

	path := filepath.Join(home, cacheFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing version cache: %w", err)
	}
	return nil
}

// IsCacheStale returns true if the cache is nil or older than maxAge at now.
func IsCacheStale(cache *VersionCache, maxAge time.Duration, now time.Time) bool {
	if cache == nil {
		return true
	}
	return now.Sub(cache.CheckedAt) > maxAge
}
