// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/wasmblock/internal/adapters/comptime"
	_ "go.trai.ch/wasmblock/internal/adapters/config"
	_ "go.trai.ch/wasmblock/internal/adapters/logger"
	_ "go.trai.ch/wasmblock/internal/adapters/markdown"
	_ "go.trai.ch/wasmblock/internal/adapters/shell"
	_ "go.trai.ch/wasmblock/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/wasmblock/internal/app"
)
