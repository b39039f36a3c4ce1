package shell

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/wasmblock/internal/adapters/logger"
	"go.trai.ch/wasmblock/internal/core/ports"
)

// NodeID is the unique identifier for the executor factory Graft node.
const NodeID graft.ID = "adapter.executor_factory"

// echoEnv turns on mirroring of toolchain stderr to the log.
const echoEnv = "WASMBLOCK_ECHO"

func init() {
	graft.Register(graft.Node[ports.ExecutorFactory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.ExecutorFactory, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewFactory(log, WithEcho(os.Getenv(echoEnv) != "")), nil
		},
	})
}
