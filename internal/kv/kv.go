// Package kv is the persistent key-value store holding the save collection.
// Every backend stores opaque blobs addressed by string keys.
package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roninrabbat-maker/adventure-forge/internal/config"
)

// Store is the get/set/remove contract the save repository depends on.
type Store interface {
	// Get returns the blob under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key, replacing any previous blob.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Open returns the backend selected by cfg.Store.Backend.
// baseDir is where file-backed stores live (~/.forge in production).
func Open(cfg *config.Config, baseDir string) (Store, error) {
	sc := cfg.Store
	switch strings.ToLower(strings.TrimSpace(sc.Backend)) {
	case "", config.BackendSQLite:
		return OpenSQLite(baseDir, cfg)
	case config.BackendBolt:
		path := sc.Path
		if path == "" {
			path = filepath.Join(baseDir, "forge.bolt")
		}
		return OpenBolt(path)
	case config.BackendRedis:
		return OpenRedis(RedisOptions{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}
