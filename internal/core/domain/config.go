package domain

import (
	"runtime"
	"time"
)

// ScriptBackend is a user-provided backend script declared in the configuration.
type ScriptBackend struct {
	ID        string
	Script    string
	Extension string
	Languages []string
	Reuse     ReusePolicy
	Tools     []string
}

// Config is the resolved configuration of one build invocation.
type Config struct {
	// OutDir is the absolute output root.
	OutDir string
	// Prefix is the logical path under which OutDir is mounted in the document.
	Prefix string
	// CacheRoot is the shared cache directory.
	CacheRoot   string
	Parallelism int
	// Timeout bounds one block build. Zero disables it.
	Timeout          time.Duration
	NoCache          bool
	ColorDiagnostics bool
	// Env is extra KEY=VALUE entries passed to every toolchain process.
	Env []string
	// PassEnv names system variables passed through to toolchains.
	PassEnv []string
	// Optimize is the wasm-opt level applied to every module. Off by default.
	Optimize OptimizeLevel
	Strip    bool
	// Features are the wasm features passed to wasm-opt, per backend id.
	Features map[string][]string
	// EvaluateComptime runs comptime binaries and turns their output into glue.
	EvaluateComptime bool
	// BackendArgs are default pass-through arguments per backend id, placed before block arguments.
	BackendArgs map[string][]string
	Scripts     []ScriptBackend
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		OutDir:           DefaultOutDir,
		Prefix:           DefaultOutDir,
		CacheRoot:        DefaultCacheRoot(),
		Parallelism:      runtime.NumCPU(),
		EvaluateComptime: true,
		BackendArgs:      map[string][]string{},
		Features:         DefaultFeatures(),
	}
}
