package domain

import "go.trai.ch/zerr"

var (
	// ErrConfiguration is returned when a required build-contract entry is missing or invalid.
	ErrConfiguration = zerr.New("configuration error")

	// ErrToolchainMissing is returned when a required external compiler cannot be found.
	ErrToolchainMissing = zerr.New("toolchain missing")

	// ErrBuildFailure is returned when a backend process exits with a nonzero status.
	ErrBuildFailure = zerr.New("build failed")

	// ErrIOFailure is returned when staging or promotion of artifacts fails.
	ErrIOFailure = zerr.New("artifact io failed")

	// ErrCacheCorruption marks a malformed or partial cache entry. It is never surfaced to callers.
	ErrCacheCorruption = zerr.New("cache entry corrupt")

	// ErrBackendNotFound is returned when no backend is registered for a language tag.
	ErrBackendNotFound = zerr.New("no backend registered for language")

	// ErrDuplicateBackend is returned when two backends claim the same id or language tag.
	ErrDuplicateBackend = zerr.New("duplicate backend registration")

	// ErrInvalidExportName is returned when an export symbol is not a valid identifier.
	ErrInvalidExportName = zerr.New("invalid export name")

	// ErrContractEntryMissing is returned when a build-contract entry is empty.
	ErrContractEntryMissing = zerr.New("build contract entry missing")

	// ErrContractPathNotAbsolute is returned when a build-contract path must be absolute but is not.
	ErrContractPathNotAbsolute = zerr.New("build contract path must be absolute")

	// ErrBlocksFailed is returned when at least one block of a batch failed.
	ErrBlocksFailed = zerr.New("one or more blocks failed to build")

	// ErrDocumentReadFailed is returned when the input document cannot be read.
	ErrDocumentReadFailed = zerr.New("failed to read document")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigInvalid is returned when the config file has invalid values.
	ErrConfigInvalid = zerr.New("invalid configuration")

	// ErrEnvFileReadFailed is returned when the toolchain env file cannot be read.
	ErrEnvFileReadFailed = zerr.New("failed to read env file")

	// ErrStoreCreateFailed is returned when the cache store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create cache store directory")

	// ErrStoreWriteFailed is returned when a cache entry cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write cache entry")

	// ErrStoreMarshalFailed is returned when a cache entry cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal cache entry")

	// ErrStoreCleanFailed is returned when the cache cannot be removed.
	ErrStoreCleanFailed = zerr.New("failed to clean cache")

	// ErrManifestWriteFailed is returned when the output manifest cannot be written.
	ErrManifestWriteFailed = zerr.New("failed to write output manifest")

	// ErrComptimeFailed is returned when a comptime binary cannot be evaluated.
	ErrComptimeFailed = zerr.New("comptime evaluation failed")

	// ErrComptimeOutput is returned when a comptime binary prints something other than a JSON object.
	ErrComptimeOutput = zerr.New("comptime output must be a JSON object")

	// ErrComptimeUnsupported is returned when a comptime block targets a backend without a binary mode.
	ErrComptimeUnsupported = zerr.New("backend does not support comptime blocks")

	// ErrInvalidBlockAttribute is returned when a build block's info string holds an unknown attribute.
	ErrInvalidBlockAttribute = zerr.New("invalid build block attribute")

	// ErrScriptNotFound is returned when a configured backend script does not exist.
	ErrScriptNotFound = zerr.New("backend script not found")
)
