package ports

import "go.trai.ch/wasmblock/internal/core/domain"

// CacheStore is the content-addressed store of build results.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type CacheStore interface {
	// Get returns the entry for key.
	// Returns nil, nil on a miss. Corrupt entries are misses.
	Get(key domain.CacheKey) (*domain.CacheEntry, error)

	// Put stores entry, copying its artifacts from dir.
	Put(entry domain.CacheEntry, dir string) error

	// Stats summarizes the store.
	Stats() (domain.CacheStats, error)

	// Clean removes every entry and all backend work directories.
	Clean() error

	// Root returns the cache root directory.
	Root() string
}
