// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/wasmblock/internal/core/domain"
)

// Executor runs toolchain processes.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs cmd and waits for it to complete.
	//
	// stdout and stderr receive the process output on separate channels.
	// Cancelling ctx terminates the process.
	// A nonzero exit status is returned as an error carrying the exit code.
	Execute(ctx context.Context, cmd *domain.Command, stdout, stderr io.Writer) error

	// LookPath resolves an executable against the environment processes run with.
	LookPath(name string) (string, error)
}

// ExecutorFactory creates an Executor for a resolved configuration.
type ExecutorFactory interface {
	// ForConfig returns an executor that applies the toolchain environment of cfg.
	ForConfig(cfg domain.Config) Executor
}
