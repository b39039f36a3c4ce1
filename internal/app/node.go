package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/wasmblock/internal/adapters/comptime" //nolint:depguard // Wired in app layer
	"go.trai.ch/wasmblock/internal/adapters/config"   //nolint:depguard // Wired in app layer
	"go.trai.ch/wasmblock/internal/adapters/logger"   //nolint:depguard // Wired in app layer
	"go.trai.ch/wasmblock/internal/adapters/markdown" //nolint:depguard // Wired in app layer
	"go.trai.ch/wasmblock/internal/adapters/shell"    //nolint:depguard // Wired in app layer
	"go.trai.ch/wasmblock/internal/adapters/watcher"  //nolint:depguard // Wired in app layer
	"go.trai.ch/wasmblock/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			markdown.NodeID,
			comptime.NodeID,
			shell.NodeID,
			watcher.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: app, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	extractor, err := graft.Dep[ports.Extractor](ctx)
	if err != nil {
		return nil, err
	}
	evaluator, err := graft.Dep[ports.ComptimeEvaluator](ctx)
	if err != nil {
		return nil, err
	}
	executors, err := graft.Dep[ports.ExecutorFactory](ctx)
	if err != nil {
		return nil, err
	}
	w, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	return New(loader, extractor, evaluator, executors, w, log), nil
}
