package domain

import (
	"os"
	"path/filepath"
)

const (
	// AppDirName is the directory name used under the user cache directory.
	AppDirName = "wasmblock"

	// StoreDirName is the name of the content addressable store directory.
	StoreDirName = "store"

	// WorkDirName is the name of the per-backend incremental state directory.
	WorkDirName = "work"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "wasmblock.yaml"

	// ManifestFileName is the name of the manifest written to the output root.
	ManifestFileName = "manifest.json"

	// GlueFileName is the name of the aggregate glue script written to the output root.
	GlueFileName = "glue.js"

	// StagingDirName is the directory under the output root holding in-flight artifacts.
	StagingDirName = ".staging"

	// DefaultOutDir is the default output directory, relative to the document.
	DefaultOutDir = "wasm"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultCacheRoot returns the shared cache directory, <user cache dir>/wasmblock.
// It falls back to the system temp directory when no user cache directory is known.
func DefaultCacheRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppDirName)
}

// StorePath returns the store directory below a cache root.
func StorePath(cacheRoot string) string {
	return filepath.Join(cacheRoot, StoreDirName)
}

// WorkPath returns the incremental state directory of a backend below a cache root.
func WorkPath(cacheRoot, backendID string) string {
	return filepath.Join(cacheRoot, WorkDirName, backendID)
}
