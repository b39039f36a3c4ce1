package orchestrator

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/zerr"
)

const wasmOpt = "wasm-opt"

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// postProcess optimizes and strips every module in dir as configured.
// A missing wasm-opt is reported once and the module is left unoptimized.
func (o *Orchestrator) postProcess(
	ctx context.Context,
	backendID, dir string,
	artifacts []domain.Artifact,
	log io.Writer,
) error {
	if !o.opts.Optimize.Enabled() && !o.opts.Strip {
		return nil
	}
	for _, a := range artifacts {
		if !strings.HasSuffix(a.Path, ".wasm") {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(a.Path))
		if o.opts.Optimize.Enabled() && o.haveWasmOpt() {
			cmd := &domain.Command{Name: wasmOpt, Args: o.wasmOptArgs(backendID, path)}
			var stderr bytes.Buffer
			if err := o.exec.Execute(ctx, cmd, log, io.MultiWriter(&stderr, log)); err != nil {
				return domain.NewBuildFailure(zerr.With(err, "artifact", a.Path), stderr.String())
			}
		}
		if o.opts.Strip {
			if err := stripFile(path); err != nil {
				return domain.NewIOFailure(zerr.With(zerr.Wrap(err, "failed to strip module"), "artifact", a.Path))
			}
		}
	}
	return nil
}

// wasmOptArgs optimizes path in place with the configured level and the backend's features.
func (o *Orchestrator) wasmOptArgs(backendID, path string) []string {
	args := []string{o.opts.Optimize.Flag()}
	args = append(args, domain.FeatureFlags(o.opts.Features[backendID])...)
	return append(args, path, "-o", path)
}

// postProcessKey describes the post-processing applied to backendID's modules.
// It takes part in the cache key, so a cached module always matches the current settings
// and an unoptimized module stored while wasm-opt was missing is not served once it is installed.
func (o *Orchestrator) postProcessKey(backendID string) []string {
	var parts []string
	if o.opts.Optimize.Enabled() && o.haveWasmOpt() {
		parts = append(parts, o.opts.Optimize.Flag())
		parts = append(parts, domain.FeatureFlags(o.opts.Features[backendID])...)
	}
	if o.opts.Strip {
		parts = append(parts, "strip")
	}
	return parts
}

func (o *Orchestrator) haveWasmOpt() bool {
	o.wasmOptOnce.Do(func() {
		if _, err := o.exec.LookPath(wasmOpt); err != nil {
			o.logger.Warn("wasm-opt not found, skipping optimization")
			return
		}
		o.wasmOptFound = true
	})
	return o.wasmOptFound
}

func stripFile(path string) error {
	//nolint:gosec // path is a staged artifact
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	stripped, err := StripCustomSections(data)
	if err != nil {
		return err
	}
	if len(stripped) == len(data) {
		return nil
	}
	return os.WriteFile(path, stripped, domain.FilePerm)
}

// StripCustomSections removes every custom section (id 0) from a binary module.
// Names, producers and DWARF data all live in custom sections.
func StripCustomSections(module []byte) ([]byte, error) {
	if len(module) < 8 || !bytes.Equal(module[:4], wasmMagic) {
		return nil, zerr.New("not a wasm module")
	}

	out := make([]byte, 0, len(module))
	out = append(out, module[:8]...)

	rest := module[8:]
	for len(rest) > 0 {
		id := rest[0]
		size, n := binary.Uvarint(rest[1:])
		if n <= 0 || size > uint64(len(rest)-1-n) {
			return nil, zerr.With(zerr.New("truncated wasm section"), "section", int(id))
		}
		end := 1 + n + int(size)
		if id != 0 {
			out = append(out, rest[:end]...)
		}
		rest = rest[end:]
	}
	return out, nil
}
