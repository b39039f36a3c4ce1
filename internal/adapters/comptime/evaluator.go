// Package comptime runs comptime binaries under WASI and turns their output into JavaScript declarations.
package comptime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"regexp"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ComptimeEvaluator = (*Evaluator)(nil)

// DefaultMemoryLimitPages caps guest memory at 256 MiB.
const DefaultMemoryLimitPages = 4096

var identifierRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Evaluator runs a module's _start in a fresh wazero runtime with no filesystem access.
type Evaluator struct {
	memoryLimitPages uint32
}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{memoryLimitPages: DefaultMemoryLimitPages}
}

// Evaluate implements ports.ComptimeEvaluator.
// The program's stdout must be one JSON object; each member becomes a declaration.
func (e *Evaluator) Evaluate(ctx context.Context, wasmPath string) ([]domain.JSDecl, error) {
	//nolint:gosec // path is a staged artifact
	module, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, domain.NewIOFailure(zerr.With(zerr.Wrap(err, "failed to read comptime module"), "path", wasmPath))
	}

	cfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(e.memoryLimitPages)
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	defer func() { _ = rt.Close(ctx) }()

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, zerr.Wrap(err, "failed to instantiate WASI")
	}

	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		return nil, domain.NewBuildFailure(zerr.Wrap(err, domain.ErrComptimeFailed.Error()), "")
	}

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("comptime").
		WithArgs("comptime").
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if mod != nil {
		defer func() { _ = mod.Close(ctx) }()
	}
	if err != nil {
		var exitErr *sys.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 0 {
			return nil, domain.NewBuildFailure(zerr.Wrap(err, domain.ErrComptimeFailed.Error()), stderr.String())
		}
	}

	decls, err := ParseDecls(stdout.Bytes())
	if err != nil {
		return nil, domain.NewBuildFailure(err, stderr.String())
	}
	return decls, nil
}

// ParseDecls reads a JSON object into declarations ordered by name.
// A repeated member keeps its last value.
func ParseDecls(data []byte) ([]domain.JSDecl, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrComptimeOutput.Error())
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, domain.ErrComptimeOutput
	}

	values := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, zerr.Wrap(err, domain.ErrComptimeOutput.Error())
		}
		name, _ := tok.(string)
		if !identifierRegex.MatchString(name) {
			return nil, zerr.With(zerr.Wrap(domain.ErrComptimeOutput, "member is not an identifier"), "name", name)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, zerr.Wrap(err, domain.ErrComptimeOutput.Error())
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, zerr.Wrap(err, domain.ErrComptimeOutput.Error())
		}
		values[name] = compact.Bytes()
	}
	if _, err := dec.Token(); err != nil {
		return nil, zerr.Wrap(err, domain.ErrComptimeOutput.Error())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, zerr.Wrap(domain.ErrComptimeOutput, "trailing data after object")
	}

	decls := make([]domain.JSDecl, 0, len(values))
	for name, value := range values {
		decls = append(decls, domain.JSDecl{Name: name, Value: value})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls, nil
}
