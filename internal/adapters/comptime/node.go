package comptime

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/wasmblock/internal/core/ports"
)

// NodeID is the graft node of the comptime evaluator.
const NodeID graft.ID = "adapter.comptime_evaluator"

func init() {
	graft.Register(graft.Node[ports.ComptimeEvaluator]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ComptimeEvaluator, error) {
			return NewEvaluator(), nil
		},
	})
}
