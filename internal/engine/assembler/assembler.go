// Package assembler plans output slots for blocks and promotes finished builds into the output tree.
package assembler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

// Assembler owns the output root of one document.
type Assembler struct {
	outDir string
	prefix string
	logger ports.Logger
}

// New creates an Assembler writing below outDir.
// prefix is the logical path the document uses to reach outDir.
func New(outDir, prefix string, logger ports.Logger) *Assembler {
	return &Assembler{
		outDir: outDir,
		prefix: strings.Trim(filepath.ToSlash(prefix), "/"),
		logger: logger,
	}
}

// Assemble promotes the staged artifacts of every succeeded result into its slot and writes
// the manifest and the aggregate glue script. Failed results and promotion failures are returned
// as block errors in result order. The returned error is only set when the manifest could not be written.
func (a *Assembler) Assemble(
	ctx context.Context,
	results []domain.BuildResult,
) (*domain.OutputManifest, []*domain.BlockError, error) {
	if err := os.MkdirAll(a.outDir, domain.DirPerm); err != nil {
		return nil, nil, zerr.With(zerr.Wrap(err, domain.ErrManifestWriteFailed.Error()), "path", a.outDir)
	}

	manifest := &domain.OutputManifest{Modules: []domain.ManifestEntry{}}
	var script strings.Builder
	var errs []*domain.BlockError

	for _, r := range results {
		if !r.Succeeded() {
			errs = append(errs, r.Err)
			continue
		}
		if err := ctx.Err(); err != nil {
			_ = os.RemoveAll(r.StagingDir)
			errs = append(errs, domain.AsBlockError(r.Name,
				domain.NewBuildFailure(zerr.Wrap(err, "build cancelled"), "")))
			continue
		}
		if err := promote(r.StagingDir, r.Slot.Dir); err != nil {
			errs = append(errs, domain.AsBlockError(r.Name, domain.NewIOFailure(
				zerr.With(zerr.Wrap(err, "failed to promote artifacts"), "path", r.Slot.Dir))))
			continue
		}

		manifest.Modules = append(manifest.Modules, domain.ManifestEntry{
			Name:      r.Name,
			Dir:       r.Slot.Out,
			Artifacts: r.Artifacts,
		})
		script.WriteString(normalizeGlue(r.Glue))
	}
	manifest.Script = script.String()

	data, err := manifest.Encode()
	if err != nil {
		return nil, errs, zerr.Wrap(err, domain.ErrManifestWriteFailed.Error())
	}
	if err := writeFileAtomic(filepath.Join(a.outDir, domain.ManifestFileName), data); err != nil {
		return nil, errs, zerr.Wrap(err, domain.ErrManifestWriteFailed.Error())
	}
	if err := writeFileAtomic(filepath.Join(a.outDir, domain.GlueFileName), []byte(manifest.Script)); err != nil {
		return nil, errs, zerr.Wrap(err, domain.ErrManifestWriteFailed.Error())
	}

	return manifest, errs, nil
}

// Cleanup removes a staging root and the staging directory above it once it is empty.
func (a *Assembler) Cleanup(stagingRoot string) {
	if err := os.RemoveAll(stagingRoot); err != nil {
		a.logger.Warn("failed to remove staging directory " + stagingRoot + ": " + err.Error())
	}
	_ = os.Remove(filepath.Dir(stagingRoot))
}

// promote replaces dst with the staging directory src.
func promote(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// normalizeGlue ends non-empty glue with exactly one newline.
func normalizeGlue(glue string) string {
	glue = strings.TrimRight(glue, "\r\n")
	if glue == "" {
		return ""
	}
	return glue + "\n"
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, domain.FilePerm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
