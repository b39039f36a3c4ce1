package ports

import "go.trai.ch/wasmblock/internal/core/domain"

// ConfigLoader resolves the configuration for a document.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load looks for a configuration file starting at dir and walking up.
	// An explicit path takes precedence. Missing files yield domain.DefaultConfig.
	// Relative paths in the result are resolved against dir.
	Load(dir, path string) (domain.Config, error)
}
