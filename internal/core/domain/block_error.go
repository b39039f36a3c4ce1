package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a block-level failure.
type ErrorKind uint8

const (
	// KindConfiguration means a build-contract entry was missing or invalid.
	KindConfiguration ErrorKind = iota + 1
	// KindToolchainMissing means a required compiler was not found.
	KindToolchainMissing
	// KindBuildFailure means the backend exited nonzero.
	KindBuildFailure
	// KindIOFailure means staging or promotion of artifacts failed.
	KindIOFailure
	// KindCacheCorruption means a cache entry was malformed. Only used for logging.
	KindCacheCorruption
)

// String returns the name of the kind as shown to users.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindToolchainMissing:
		return "toolchain missing"
	case KindBuildFailure:
		return "build failure"
	case KindIOFailure:
		return "io failure"
	case KindCacheCorruption:
		return "cache corruption"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindToolchainMissing:
		return ErrToolchainMissing
	case KindBuildFailure:
		return ErrBuildFailure
	case KindIOFailure:
		return ErrIOFailure
	case KindCacheCorruption:
		return ErrCacheCorruption
	default:
		return nil
	}
}

// BlockError is the failure of a single block.
// It matches the sentinel of its kind through errors.Is.
type BlockError struct {
	Kind  ErrorKind
	Block string
	// Tool names the missing executable for KindToolchainMissing.
	Tool string
	// Diagnostic is the backend's error-channel output, unmodified.
	Diagnostic string
	Err        error
}

// Error implements error.
func (e *BlockError) Error() string {
	prefix := e.Kind.String()
	if e.Block != "" {
		prefix = fmt.Sprintf("%s: %s", e.Block, prefix)
	}
	if e.Err == nil {
		return prefix
	}
	return prefix + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *BlockError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the error's kind.
func (e *BlockError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewConfigurationError wraps err as a configuration failure.
func NewConfigurationError(err error) *BlockError {
	return &BlockError{Kind: KindConfiguration, Err: err}
}

// NewToolchainMissingError reports that tool could not be found.
func NewToolchainMissingError(tool string, err error) *BlockError {
	return &BlockError{Kind: KindToolchainMissing, Tool: tool, Err: err}
}

// NewBuildFailure wraps err with the backend's diagnostic output.
func NewBuildFailure(err error, diagnostic string) *BlockError {
	return &BlockError{Kind: KindBuildFailure, Diagnostic: diagnostic, Err: err}
}

// NewIOFailure wraps err as an artifact staging or promotion failure.
func NewIOFailure(err error) *BlockError {
	return &BlockError{Kind: KindIOFailure, Err: err}
}

// AsBlockError returns err as a *BlockError attributed to block.
// Errors that are not block errors are treated as build failures.
func AsBlockError(block string, err error) *BlockError {
	if err == nil {
		return nil
	}
	var be *BlockError
	if errors.As(err, &be) {
		out := *be
		if out.Block == "" {
			out.Block = block
		}
		return &out
	}
	return &BlockError{Kind: KindBuildFailure, Block: block, Err: err}
}
