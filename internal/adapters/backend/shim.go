package backend

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

const wasmExecFile = "wasm_exec.js"

// shimFlavor captures what differs between the Go and TinyGo toolchains.
type shimFlavor struct {
	id        string
	tool      string
	rootVar   string
	shimPaths []string
	buildArgs func(out string, comptime bool) []string
	env       func(comptime bool) []string
}

// Shim compiles managed-runtime languages and ships the runtime bootstrap script next to the module.
type Shim struct {
	exec   ports.Executor
	flavor shimFlavor
}

// NewGo creates the go backend.
func NewGo(exec ports.Executor) *Shim {
	return &Shim{exec: exec, flavor: shimFlavor{
		id:      "go",
		tool:    "go",
		rootVar: "GOROOT",
		// Go 1.24 moved the shim from misc/wasm to lib/wasm.
		shimPaths: []string{"lib/wasm/" + wasmExecFile, "misc/wasm/" + wasmExecFile},
		buildArgs: func(out string, _ bool) []string {
			return []string{"build", "-o", out}
		},
		env: func(comptime bool) []string {
			if comptime {
				return []string{"GOOS=wasip1", "GOARCH=wasm", "GOWORK=off"}
			}
			return []string{"GOOS=js", "GOARCH=wasm", "GOWORK=off"}
		},
	}}
}

// NewTinyGo creates the tinygo backend.
func NewTinyGo(exec ports.Executor) *Shim {
	return &Shim{exec: exec, flavor: shimFlavor{
		id:        "tinygo",
		tool:      "tinygo",
		rootVar:   "TINYGOROOT",
		shimPaths: []string{"targets/" + wasmExecFile},
		buildArgs: func(out string, comptime bool) []string {
			target := "wasm"
			if comptime {
				target = "wasip1"
			}
			return []string{"build", "-o", out, "-target", target}
		},
		env: func(bool) []string { return nil },
	}}
}

// Descriptor implements ports.Backend.
func (s *Shim) Descriptor() domain.BackendDescriptor {
	return domain.BackendDescriptor{
		ID:        s.flavor.id,
		Languages: []string{s.flavor.id},
		Extension: "go",
		Family:    domain.FamilyRuntimeShim,
		Reuse:     domain.ReuseFresh,
		Tools:     []string{s.flavor.tool},
		Comptime:  true,
		Glue:      ShimGlue,
	}
}

// Build implements ports.Backend.
func (s *Shim) Build(ctx context.Context, bc domain.BuildContext, log io.Writer) (domain.Outcome, error) {
	tc := newToolchain(s.exec, log)
	if err := tc.require(s.flavor.tool); err != nil {
		return domain.Outcome{}, err
	}

	if !bc.Comptime {
		if err := s.copyShim(ctx, tc, bc.OutDir); err != nil {
			return domain.Outcome{}, err
		}
	}

	dir, cleanup, err := scratch(bc)
	if err != nil {
		return domain.Outcome{}, err
	}
	defer cleanup()

	if err := copyInto(bc.Input, filepath.Join(dir, "main.go")); err != nil {
		return domain.Outcome{}, ioFailure(err, "failed to write package source")
	}
	goMod := "module wasmblock.local/" + bc.Module + "\n"
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), domain.FilePerm); err != nil {
		return domain.Outcome{}, ioFailure(err, "failed to write go.mod")
	}

	args := s.flavor.buildArgs(filepath.Join(bc.OutDir, bc.Module+".wasm"), bc.Comptime)
	args = append(args, bc.Args...)
	args = append(args, ".")

	cmd := &domain.Command{Name: s.flavor.tool, Args: args, Dir: dir, Env: s.flavor.env(bc.Comptime)}
	if err := tc.run(ctx, cmd); err != nil {
		return domain.Outcome{}, err
	}

	if bc.Comptime {
		return domain.Outcome{}, nil
	}
	return domain.Outcome{Glue: ShimGlue(bc.Out, bc.Module, bc.Exports)}, nil
}

// copyShim locates the toolchain's wasm_exec.js and copies it into outDir.
func (s *Shim) copyShim(ctx context.Context, tc *toolchain, outDir string) error {
	root, err := tc.output(ctx, &domain.Command{Name: s.flavor.tool, Args: []string{"env", s.flavor.rootVar}})
	if err != nil {
		return err
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return domain.NewToolchainMissingError(s.flavor.tool, zerr.With(zerr.New("toolchain root is unknown"), "variable", s.flavor.rootVar))
	}

	var errs []error
	for _, rel := range s.flavor.shimPaths {
		src := filepath.Join(root, filepath.FromSlash(rel))
		err := copyInto(src, filepath.Join(outDir, wasmExecFile))
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return domain.NewToolchainMissingError(wasmExecFile, zerr.With(zerr.Wrap(errors.Join(errs...), "runtime shim not found"), "root", root))
}
