package config

import (
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Configfile represents the structure of the wasmblock.yaml configuration file.
type Configfile struct {
	Version          string                 `yaml:"version"`
	Out              string                 `yaml:"out"`
	Prefix           *string                `yaml:"prefix"`
	CacheDir         string                 `yaml:"cache_dir"`
	Parallelism      int                    `yaml:"parallelism"`
	Timeout          string                 `yaml:"timeout"`
	NoCache          bool                   `yaml:"no_cache"`
	ColorDiagnostics bool                   `yaml:"color_diagnostics"`
	EnvFile          string                 `yaml:"env_file"`
	Env              map[string]string      `yaml:"env"`
	PassEnv          []string               `yaml:"pass_env"`
	Optimize         OptimizeValue          `yaml:"optimize"`
	Strip            bool                   `yaml:"strip"`
	Comptime         ComptimeDTO            `yaml:"comptime"`
	Backends         map[string]*BackendDTO `yaml:"backends"`
}

// ComptimeDTO configures comptime evaluation.
type ComptimeDTO struct {
	Evaluate *bool `yaml:"evaluate"`
}

// BackendDTO configures a built-in backend or declares a script backend.
type BackendDTO struct {
	Args      []string `yaml:"args"`
	Script    string   `yaml:"script"`
	Extension string   `yaml:"extension"`
	Languages []string `yaml:"languages"`
	Reuse     string   `yaml:"reuse"`
	Tools     []string `yaml:"tools"`
	Features  []string `yaml:"features"`
}

// OptimizeValue is either a boolean or an optimization level. true selects the size level,
// which is what a bare wasm-opt -O runs.
type OptimizeValue string

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *OptimizeValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return zerr.With(zerr.Wrap(domain.ErrConfigInvalid, "optimize must be a boolean or a level"), "line", node.Line)
	}
	if node.Tag == "!!bool" {
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return err
		}
		*v = ""
		if enabled {
			*v = OptimizeValue(domain.OptimizeSize)
		}
		return nil
	}
	*v = OptimizeValue(node.Value)
	return nil
}
