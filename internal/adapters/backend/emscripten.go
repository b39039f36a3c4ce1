package backend

import (
	"context"
	"io"
	"path/filepath"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
)

// Emscripten compiles C and C++ with emcc into a self-loading script plus module.
type Emscripten struct {
	exec ports.Executor
}

// NewEmscripten creates the emscripten backend.
func NewEmscripten(exec ports.Executor) *Emscripten {
	return &Emscripten{exec: exec}
}

// Descriptor implements ports.Backend.
func (e *Emscripten) Descriptor() domain.BackendDescriptor {
	return domain.BackendDescriptor{
		ID:            "emscripten",
		Languages:     []string{"c", "c++", "cpp"},
		Extension:     "c",
		TagExtensions: map[string]string{"c++": "cpp", "cpp": "cpp"},
		Family:        domain.FamilyEmscripten,
		Reuse:         domain.ReuseFresh,
		Tools:         []string{"emcc"},
		Glue:          EmscriptenGlue,
	}
}

// Build implements ports.Backend.
func (e *Emscripten) Build(ctx context.Context, bc domain.BuildContext, log io.Writer) (domain.Outcome, error) {
	if bc.Comptime {
		return domain.Outcome{}, unsupportedComptime("emscripten")
	}

	tc := newToolchain(e.exec, log)
	if err := tc.require("emcc"); err != nil {
		return domain.Outcome{}, err
	}

	dir, cleanup, err := scratch(bc)
	if err != nil {
		return domain.Outcome{}, err
	}
	defer cleanup()

	args := []string{
		bc.Input,
		"-o", filepath.Join(bc.OutDir, bc.Module+".js"),
		"-sNO_EXIT_RUNTIME=1",
		`-sEXPORTED_RUNTIME_METHODS=["ccall"]`,
	}
	args = append(args, bc.Args...)

	if err := tc.run(ctx, &domain.Command{Name: "emcc", Args: args, Dir: dir}); err != nil {
		return domain.Outcome{}, err
	}

	return domain.Outcome{Glue: EmscriptenGlue(bc.Out, bc.Module, bc.Exports)}, nil
}
