package ports

import (
	"context"

	"go.trai.ch/wasmblock/internal/core/domain"
)

// ComptimeEvaluator runs a standalone binary and turns its output into declarations.
//
//go:generate mockgen -source=evaluator.go -destination=mocks/mock_evaluator.go -package=mocks
type ComptimeEvaluator interface {
	Evaluate(ctx context.Context, wasmPath string) ([]domain.JSDecl, error)
}
