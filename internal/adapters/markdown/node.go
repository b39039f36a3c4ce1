package markdown

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/wasmblock/internal/core/ports"
)

// NodeID is the graft node of the markdown extractor.
const NodeID graft.ID = "adapter.extractor"

func init() {
	graft.Register(graft.Node[ports.Extractor]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Extractor, error) {
			return NewExtractor(), nil
		},
	})
}
