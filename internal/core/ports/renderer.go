package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for progress output.
// It decouples telemetry collection from presentation,
// so the same span stream drives an interactive view, linear CI logs or a journal.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Stop flushes buffered output and stops accepting events.
	Stop() error

	// Wait blocks until the renderer has terminated.
	Wait() error

	// OnPlanEmit is called once with the block names in document order.
	OnPlanEmit(blocks []string)

	// OnBlockStart is called when a block build begins.
	OnBlockStart(spanID, parentID, name string, startTime time.Time)

	// OnBlockLog is called with raw diagnostic bytes of a block.
	OnBlockLog(spanID string, data []byte)

	// OnBlockComplete is called when a block build finishes.
	// cached is true when the result came from the cache.
	OnBlockComplete(spanID string, endTime time.Time, cached bool, err error)
}
