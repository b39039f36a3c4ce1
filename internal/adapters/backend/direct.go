package backend

import (
	"context"
	"io"
	"path/filepath"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

// Zig compiles a source file straight to a freestanding module.
type Zig struct {
	exec ports.Executor
}

// NewZig creates the zig backend.
func NewZig(exec ports.Executor) *Zig {
	return &Zig{exec: exec}
}

// Descriptor implements ports.Backend.
func (z *Zig) Descriptor() domain.BackendDescriptor {
	return domain.BackendDescriptor{
		ID:        "zig",
		Languages: []string{"zig"},
		Extension: "zig",
		Family:    domain.FamilyDirectCompile,
		Reuse:     domain.ReuseFresh,
		Tools:     []string{"zig"},
		Comptime:  true,
		Glue:      DirectGlue,
	}
}

// Build implements ports.Backend.
func (z *Zig) Build(ctx context.Context, bc domain.BuildContext, log io.Writer) (domain.Outcome, error) {
	tc := newToolchain(z.exec, log)
	if err := tc.require("zig"); err != nil {
		return domain.Outcome{}, err
	}

	// zig drops object files into its working directory.
	dir, cleanup, err := scratch(bc)
	if err != nil {
		return domain.Outcome{}, err
	}
	defer cleanup()

	emit := "-femit-bin=" + filepath.Join(bc.OutDir, bc.Module+".wasm")
	var args []string
	if bc.Comptime {
		args = []string{"build-exe", bc.Input, "-target", "wasm32-wasi", emit}
	} else {
		args = []string{"build-lib", bc.Input, "-target", "wasm32-freestanding", "-dynamic", "-rdynamic", emit}
	}
	args = append(args, bc.Args...)

	if err := tc.run(ctx, &domain.Command{Name: "zig", Args: args, Dir: dir}); err != nil {
		return domain.Outcome{}, err
	}

	if bc.Comptime {
		return domain.Outcome{}, nil
	}
	return domain.Outcome{Glue: DirectGlue(bc.Out, bc.Module, bc.Exports)}, nil
}

// Wat assembles WebAssembly text format with wat2wasm.
type Wat struct {
	exec ports.Executor
}

// NewWat creates the wat backend.
func NewWat(exec ports.Executor) *Wat {
	return &Wat{exec: exec}
}

// Descriptor implements ports.Backend.
func (w *Wat) Descriptor() domain.BackendDescriptor {
	return domain.BackendDescriptor{
		ID:        "wat",
		Languages: []string{"wat", "wast"},
		Extension: "wat",
		Family:    domain.FamilyDirectCompile,
		Reuse:     domain.ReuseFresh,
		Tools:     []string{"wat2wasm"},
		Glue:      DirectGlue,
	}
}

// Build implements ports.Backend.
func (w *Wat) Build(ctx context.Context, bc domain.BuildContext, log io.Writer) (domain.Outcome, error) {
	if bc.Comptime {
		return domain.Outcome{}, unsupportedComptime("wat")
	}

	tc := newToolchain(w.exec, log)
	if err := tc.require("wat2wasm"); err != nil {
		return domain.Outcome{}, err
	}

	args := append([]string{bc.Input, "-o", filepath.Join(bc.OutDir, bc.Module+".wasm")}, bc.Args...)
	if err := tc.run(ctx, &domain.Command{Name: "wat2wasm", Args: args}); err != nil {
		return domain.Outcome{}, err
	}

	return domain.Outcome{Glue: DirectGlue(bc.Out, bc.Module, bc.Exports)}, nil
}

func unsupportedComptime(backend string) error {
	return domain.NewConfigurationError(zerr.With(domain.ErrComptimeUnsupported, "backend", backend))
}
