package shell

import (
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
)

var _ ports.ExecutorFactory = (*Factory)(nil)

// Factory creates executors carrying the toolchain environment of a configuration.
type Factory struct {
	logger ports.Logger
	opts   []Option
}

// NewFactory creates a Factory. opts apply to every executor before the configuration.
func NewFactory(logger ports.Logger, opts ...Option) *Factory {
	return &Factory{logger: logger, opts: opts}
}

// ForConfig implements ports.ExecutorFactory.
func (f *Factory) ForConfig(cfg domain.Config) ports.Executor {
	opts := append([]Option(nil), f.opts...)
	opts = append(opts,
		WithEnv(cfg.Env),
		WithPassEnv(cfg.PassEnv),
		WithColorDiagnostics(cfg.ColorDiagnostics),
	)
	return NewExecutor(f.logger, opts...)
}
