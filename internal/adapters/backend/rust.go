package backend

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
)

const (
	rustCrateName    = "wasmblock_out"
	rustComptimeName = "wasmblock_comptime"
	wasiTarget       = "wasm32-wasip1"
)

const rustManifest = `[package]
name = "` + rustCrateName + `"
version = "0.1.0"
edition = "2021"

[lib]
crate-type = ["cdylib"]

[dependencies]
wasm-bindgen = "0.2"
`

// Rust builds browser modules with wasm-pack in a scratch project that is scaffolded once
// and reused by every build. Comptime builds use a fresh binary crate targeting WASI.
type Rust struct {
	exec ports.Executor
}

// NewRust creates the rust backend.
func NewRust(exec ports.Executor) *Rust {
	return &Rust{exec: exec}
}

// Descriptor implements ports.Backend.
func (r *Rust) Descriptor() domain.BackendDescriptor {
	return domain.BackendDescriptor{
		ID:        "rust",
		Languages: []string{"rust", "rs"},
		Extension: "rs",
		Family:    domain.FamilyProjectReuse,
		Reuse:     domain.ReuseScratch,
		Tools:     []string{"wasm-pack", "cargo"},
		Comptime:  true,
		Glue:      BindgenGlue,
	}
}

// Build implements ports.Backend.
func (r *Rust) Build(ctx context.Context, bc domain.BuildContext, log io.Writer) (domain.Outcome, error) {
	tc := newToolchain(r.exec, log)
	if bc.Comptime {
		return r.buildBinary(ctx, tc, bc)
	}
	return r.buildModule(ctx, tc, bc)
}

func (r *Rust) buildModule(ctx context.Context, tc *toolchain, bc domain.BuildContext) (domain.Outcome, error) {
	if err := tc.require("cargo", "wasm-pack"); err != nil {
		return domain.Outcome{}, err
	}

	project := filepath.Join(bc.Cache, "project")
	if err := r.scaffold(ctx, tc, project); err != nil {
		return domain.Outcome{}, err
	}
	if err := copyInto(bc.Input, filepath.Join(project, "src", "lib.rs")); err != nil {
		return domain.Outcome{}, ioFailure(err, "failed to write crate source")
	}

	args := []string{
		"build", project,
		"--target", "web",
		"--out-name", bc.Module,
		"--out-dir", bc.OutDir,
	}
	args = append(args, bc.Args...)

	err := tc.run(ctx, &domain.Command{
		Name: "wasm-pack",
		Args: args,
		Dir:  project,
		Env:  []string{"CARGO_TARGET_DIR=" + filepath.Join(bc.Cache, "target")},
	})
	if err != nil {
		return domain.Outcome{}, err
	}

	// wasm-pack emits npm packaging files that do not belong in a page.
	for _, f := range []string{".gitignore", "package.json", "README.md"} {
		_ = os.Remove(filepath.Join(bc.OutDir, f))
	}

	return domain.Outcome{Glue: BindgenGlue(bc.Out, bc.Module, bc.Exports)}, nil
}

// scaffold creates the scratch crate unless a previous build already did.
func (r *Rust) scaffold(ctx context.Context, tc *toolchain, project string) error {
	manifest := filepath.Join(project, "Cargo.toml")
	if _, err := os.Stat(manifest); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return ioFailure(err, "failed to inspect scratch project")
	}

	// A half-initialized project from an interrupted run is discarded.
	if err := os.RemoveAll(project); err != nil {
		return ioFailure(err, "failed to reset scratch project")
	}
	if err := os.MkdirAll(filepath.Dir(project), domain.DirPerm); err != nil {
		return ioFailure(err, "failed to create scratch project")
	}

	err := tc.run(ctx, &domain.Command{
		Name: "cargo",
		Args: []string{"init", "--lib", "--vcs", "none", "--name", rustCrateName, project},
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(manifest, []byte(rustManifest), domain.FilePerm); err != nil {
		return ioFailure(err, "failed to write crate manifest")
	}
	return nil
}

func (r *Rust) buildBinary(ctx context.Context, tc *toolchain, bc domain.BuildContext) (domain.Outcome, error) {
	if err := tc.require("cargo"); err != nil {
		return domain.Outcome{}, err
	}

	project := filepath.Join(bc.Cache, "comptime")
	if err := os.RemoveAll(project); err != nil {
		return domain.Outcome{}, ioFailure(err, "failed to reset comptime project")
	}
	if err := os.MkdirAll(bc.Cache, domain.DirPerm); err != nil {
		return domain.Outcome{}, ioFailure(err, "failed to create cache directory")
	}

	err := tc.run(ctx, &domain.Command{
		Name: "cargo",
		Args: []string{"init", "--bin", "--vcs", "none", "--name", rustComptimeName, project},
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	if err := copyInto(bc.Input, filepath.Join(project, "src", "main.rs")); err != nil {
		return domain.Outcome{}, ioFailure(err, "failed to write crate source")
	}

	targetDir := filepath.Join(bc.Cache, "target")
	args := append([]string{"build", "--target", wasiTarget, "--target-dir", targetDir}, bc.Args...)
	if err := tc.run(ctx, &domain.Command{Name: "cargo", Args: args, Dir: project}); err != nil {
		return domain.Outcome{}, err
	}

	profile := "debug"
	if hasFlag(bc.Args, "--release", "-r") {
		profile = "release"
	}
	binary := filepath.Join(targetDir, wasiTarget, profile, rustComptimeName+".wasm")
	if err := moveInto(binary, filepath.Join(bc.OutDir, bc.Module+".wasm")); err != nil {
		return domain.Outcome{}, ioFailure(err, "failed to relocate comptime binary")
	}

	return domain.Outcome{}, nil
}
