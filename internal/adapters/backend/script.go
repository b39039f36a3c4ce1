package backend

import (
	"bytes"
	"context"
	"io"
	"os"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

// Script runs a user-provided executable that implements the build contract itself.
// The contract arrives as WASMBLOCK_* environment entries, pass-through arguments as argv.
// Everything the script prints on stdout is the glue snippet.
type Script struct {
	exec ports.Executor
	def  domain.ScriptBackend
}

// NewScript creates a backend for a configured script.
func NewScript(exec ports.Executor, def domain.ScriptBackend) *Script {
	return &Script{exec: exec, def: def}
}

// Descriptor implements ports.Backend.
func (s *Script) Descriptor() domain.BackendDescriptor {
	reuse := s.def.Reuse
	if reuse == "" {
		reuse = domain.ReuseFresh
	}
	return domain.BackendDescriptor{
		ID:        s.def.ID,
		Languages: s.def.Languages,
		Extension: s.def.Extension,
		Family:    domain.FamilyScript,
		Reuse:     reuse,
		Tools:     s.def.Tools,
		Comptime:  true,
	}
}

// Build implements ports.Backend.
func (s *Script) Build(ctx context.Context, bc domain.BuildContext, log io.Writer) (domain.Outcome, error) {
	if _, err := os.Stat(s.def.Script); err != nil {
		return domain.Outcome{}, domain.NewToolchainMissingError(s.def.Script,
			zerr.With(zerr.Wrap(err, domain.ErrScriptNotFound.Error()), "backend", s.def.ID))
	}

	tc := newToolchain(s.exec, log)
	if err := tc.require(s.def.Tools...); err != nil {
		return domain.Outcome{}, err
	}

	dir, cleanup, err := scratch(bc)
	if err != nil {
		return domain.Outcome{}, err
	}
	defer cleanup()

	if log == nil {
		log = io.Discard
	}
	var stdout, stderr bytes.Buffer
	cmd := &domain.Command{
		Name: s.def.Script,
		Args: bc.Args,
		Dir:  dir,
		Env:  bc.Env(),
	}
	// stdout is the glue, so only stderr is mirrored to the progress log.
	if err := s.exec.Execute(ctx, cmd, &stdout, io.MultiWriter(&stderr, log)); err != nil {
		return domain.Outcome{}, domain.NewBuildFailure(err, stderr.String())
	}

	return domain.Outcome{Glue: stdout.String()}, nil
}
