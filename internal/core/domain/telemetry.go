package domain

// Span attribute keys set while building a block.
const (
	SpanAttrBackend  = "wasmblock.backend"
	SpanAttrCacheKey = "wasmblock.cache_key"
	SpanAttrCached   = "wasmblock.cached"
)

// BlockStatus is the display state of one block build.
type BlockStatus string

const (
	// BlockStatusPending means the block is planned but has not started.
	BlockStatusPending BlockStatus = "pending"
	// BlockStatusRunning means a backend is building the block.
	BlockStatusRunning BlockStatus = "running"
	// BlockStatusBuilt means the backend finished successfully.
	BlockStatusBuilt BlockStatus = "built"
	// BlockStatusCached means the artifacts were restored from the cache.
	BlockStatusCached BlockStatus = "cached"
	// BlockStatusFailed means the build produced an error.
	BlockStatusFailed BlockStatus = "failed"
)

// IsTerminal reports whether no further transitions follow s.
func (s BlockStatus) IsTerminal() bool {
	switch s {
	case BlockStatusBuilt, BlockStatusCached, BlockStatusFailed:
		return true
	default:
		return false
	}
}

// CompletionStatus maps the end of a span to a status.
func CompletionStatus(cached bool, err error) BlockStatus {
	switch {
	case err != nil:
		return BlockStatusFailed
	case cached:
		return BlockStatusCached
	default:
		return BlockStatusBuilt
	}
}
