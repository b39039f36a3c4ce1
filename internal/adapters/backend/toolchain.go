package backend

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

// toolchain runs the external processes of one backend invocation.
type toolchain struct {
	exec ports.Executor
	log  io.Writer
}

func newToolchain(exec ports.Executor, log io.Writer) *toolchain {
	if log == nil {
		log = io.Discard
	}
	return &toolchain{exec: exec, log: log}
}

// require fails with a ToolchainMissingError for the first tool that is not on PATH.
func (t *toolchain) require(tools ...string) error {
	for _, tool := range tools {
		if _, err := t.exec.LookPath(tool); err != nil {
			return domain.NewToolchainMissingError(tool, zerr.With(zerr.Wrap(err, "required tool not found"), "tool", tool))
		}
	}
	return nil
}

// run executes cmd. Its output is mirrored to the log; stderr becomes the diagnostic of a BuildFailure.
func (t *toolchain) run(ctx context.Context, cmd *domain.Command) error {
	_, err := t.output(ctx, cmd)
	return err
}

// output executes cmd and returns its stdout.
func (t *toolchain) output(ctx context.Context, cmd *domain.Command) (string, error) {
	var stdout, stderr bytes.Buffer
	err := t.exec.Execute(ctx, cmd, io.MultiWriter(&stdout, t.log), io.MultiWriter(&stderr, t.log))
	if err != nil {
		return "", domain.NewBuildFailure(err, stderr.String())
	}
	return stdout.String(), nil
}

// scratch creates a fresh temporary directory below the backend's cache directory.
func scratch(bc domain.BuildContext) (string, func(), error) {
	if err := os.MkdirAll(bc.Cache, domain.DirPerm); err != nil {
		return "", nil, domain.NewIOFailure(zerr.Wrap(err, "failed to create cache directory"))
	}
	dir, err := os.MkdirTemp(bc.Cache, "build-")
	if err != nil {
		return "", nil, domain.NewIOFailure(zerr.Wrap(err, "failed to create scratch directory"))
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// copyInto copies the file at src to dst, creating parent directories.
func copyInto(src, dst string) error {
	//nolint:gosec // src is a toolchain file or a block input
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}
	return os.WriteFile(dst, data, domain.FilePerm)
}

// moveInto renames src to dst, copying when they are on different file systems.
func moveInto(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyInto(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// hasFlag reports whether args contain flag, either alone or as flag=value.
func hasFlag(args []string, flags ...string) bool {
	for _, a := range args {
		for _, f := range flags {
			if a == f || strings.HasPrefix(a, f+"=") {
				return true
			}
		}
	}
	return false
}

func ioFailure(err error, msg string) error {
	return domain.NewIOFailure(zerr.Wrap(err, msg))
}
