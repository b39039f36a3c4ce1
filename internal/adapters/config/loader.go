// Package config provides the configuration loader for wasmblock.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// supportedVersion is the only configuration format version.
const supportedVersion = "1"

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load resolves the configuration for a document in dir.
// An explicit path must exist. Otherwise wasmblock.yaml is searched from dir upwards,
// and the defaults apply when none is found.
// Paths in the file are relative to the file; default paths are relative to dir.
func (l *Loader) Load(dir, path string) (domain.Config, error) {
	cfg := domain.DefaultConfig()
	cfg.OutDir = filepath.Join(dir, domain.DefaultOutDir)

	configPath, err := findConfiguration(dir, path)
	if err != nil {
		return domain.Config{}, err
	}
	if configPath == "" {
		return cfg, nil
	}

	var file Configfile
	if err := readAndUnmarshalYAML(configPath, &file); err != nil {
		return domain.Config{}, zerr.With(err, "path", configPath)
	}
	if file.Version != "" && file.Version != supportedVersion {
		l.Logger.Warn(fmt.Sprintf("unknown config version %q in %s, reading it as version %s",
			file.Version, configPath, supportedVersion))
	}

	if err := apply(&cfg, &file, filepath.Dir(configPath)); err != nil {
		return domain.Config{}, zerr.With(err, "path", configPath)
	}
	return cfg, nil
}

func findConfiguration(dir, explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
		}
		if _, err := os.Stat(abs); err != nil {
			return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", abs)
		}
		return abs, nil
	}

	currentDir := dir
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", nil
		}
		currentDir = parentDir
	}
}

func apply(cfg *domain.Config, file *Configfile, base string) error {
	if file.Out != "" {
		cfg.OutDir = resolvePath(base, file.Out)
		cfg.Prefix = defaultPrefix(file.Out)
	}
	if file.Prefix != nil {
		cfg.Prefix = strings.Trim(filepath.ToSlash(*file.Prefix), "/")
	}
	if file.CacheDir != "" {
		cfg.CacheRoot = resolvePath(base, file.CacheDir)
	}

	if file.Parallelism < 0 {
		return zerr.With(zerr.Wrap(domain.ErrConfigInvalid, "parallelism must not be negative"),
			"parallelism", file.Parallelism)
	}
	if file.Parallelism > 0 {
		cfg.Parallelism = file.Parallelism
	}

	if file.Timeout != "" {
		d, err := time.ParseDuration(file.Timeout)
		if err != nil || d < 0 {
			return zerr.With(zerr.Wrap(domain.ErrConfigInvalid, "timeout must be a positive duration"),
				"timeout", file.Timeout)
		}
		cfg.Timeout = d
	}

	cfg.NoCache = file.NoCache
	cfg.ColorDiagnostics = file.ColorDiagnostics
	level, err := domain.ParseOptimizeLevel(string(file.Optimize))
	if err != nil {
		return err
	}
	cfg.Optimize = level
	cfg.Strip = file.Strip
	cfg.PassEnv = slices.Clone(file.PassEnv)
	if file.Comptime.Evaluate != nil {
		cfg.EvaluateComptime = *file.Comptime.Evaluate
	}

	env, err := loadEnv(base, file)
	if err != nil {
		return err
	}
	cfg.Env = env

	return applyBackends(cfg, file.Backends, base)
}

// loadEnv merges the env file with the inline env map, inline entries last.
func loadEnv(base string, file *Configfile) ([]string, error) {
	vars := make(map[string]string)
	if file.EnvFile != "" {
		envPath := resolvePath(base, file.EnvFile)
		fromFile, err := godotenv.Read(envPath)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrEnvFileReadFailed.Error()), "env_file", envPath)
		}
		for k, v := range fromFile {
			vars[k] = v
		}
	}
	for k, v := range file.Env {
		vars[k] = v
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}

func applyBackends(cfg *domain.Config, backends map[string]*BackendDTO, base string) error {
	ids := make([]string, 0, len(backends))
	for id := range backends {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	cfg.BackendArgs = make(map[string][]string, len(ids))
	if cfg.Features == nil {
		cfg.Features = domain.DefaultFeatures()
	}
	for _, id := range ids {
		dto := backends[id]
		if dto == nil {
			continue
		}
		if len(dto.Args) > 0 {
			cfg.BackendArgs[id] = slices.Clone(dto.Args)
		}
		if dto.Features != nil {
			if err := domain.ValidateFeatures(dto.Features); err != nil {
				return zerr.With(err, "backend", id)
			}
			cfg.Features[id] = slices.Clone(dto.Features)
		}
		if dto.Script == "" {
			continue
		}

		script, err := scriptBackend(id, dto, base)
		if err != nil {
			return zerr.With(err, "backend", id)
		}
		cfg.Scripts = append(cfg.Scripts, script)
	}
	return nil
}

func scriptBackend(id string, dto *BackendDTO, base string) (domain.ScriptBackend, error) {
	reuse, ok := domain.ParseReusePolicy(dto.Reuse)
	if !ok {
		return domain.ScriptBackend{}, zerr.With(zerr.Wrap(domain.ErrConfigInvalid, "unknown reuse policy"),
			"reuse", dto.Reuse)
	}

	languages := dto.Languages
	if len(languages) == 0 {
		languages = []string{id}
	}
	extension := strings.TrimPrefix(dto.Extension, ".")
	if extension == "" {
		extension = domain.NormalizeTag(languages[0])
	}

	return domain.ScriptBackend{
		ID:        id,
		Script:    resolvePath(base, dto.Script),
		Extension: extension,
		Languages: slices.Clone(languages),
		Reuse:     reuse,
		Tools:     slices.Clone(dto.Tools),
	}, nil
}

// defaultPrefix derives the logical mount path from the configured out directory.
func defaultPrefix(out string) string {
	if filepath.IsAbs(out) {
		return filepath.Base(out)
	}
	return strings.Trim(filepath.ToSlash(filepath.Clean(out)), "/")
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is found by the loader or given by the user
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}
	return nil
}
