package ports

import (
	"context"
	"io"

	"go.trai.ch/wasmblock/internal/core/domain"
)

// Backend builds one block for one toolchain family.
//
//go:generate mockgen -source=backend.go -destination=mocks/mock_backend.go -package=mocks
type Backend interface {
	// Descriptor returns the static description of the backend.
	Descriptor() domain.BackendDescriptor

	// Build compiles the block described by bc.
	// Artifacts are written to bc.OutDir. On success the glue text is returned.
	// Toolchain output is mirrored to log for progress display.
	// Failures are *domain.BlockError values.
	Build(ctx context.Context, bc domain.BuildContext, log io.Writer) (domain.Outcome, error)
}

// Registry maps language tags to backends.
type Registry interface {
	// Resolve returns the backend for a language tag.
	// It returns domain.ErrBackendNotFound wrapped as a configuration error for unknown tags.
	Resolve(tag string) (Backend, error)

	// Backends returns every registered backend ordered by id.
	Backends() []Backend
}
