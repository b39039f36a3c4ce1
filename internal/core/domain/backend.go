package domain

import (
	"path/filepath"
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

// Family groups backends by their build model.
type Family string

const (
	// FamilyProjectReuse backends keep a scaffolded project and regenerate host bindings.
	FamilyProjectReuse Family = "project-reuse"
	// FamilyDirectCompile backends compile the source file straight to a freestanding module.
	FamilyDirectCompile Family = "direct-compile"
	// FamilyRuntimeShim backends ship a runtime bootstrap script next to the module.
	FamilyRuntimeShim Family = "runtime-shim"
	// FamilyEmscripten backends emit a self-loading script.
	FamilyEmscripten Family = "emscripten"
	// FamilyScript backends are user scripts that emit their own glue.
	FamilyScript Family = "script"
)

// ReusePolicy tells whether a backend shares a scratch project between builds.
type ReusePolicy string

const (
	// ReuseFresh backends start from nothing on every build.
	ReuseFresh ReusePolicy = "fresh"
	// ReuseScratch backends share one scratch project per backend kind.
	ReuseScratch ReusePolicy = "scratch"
)

// ParseReusePolicy parses a reuse policy name. Empty means fresh.
func ParseReusePolicy(s string) (ReusePolicy, bool) {
	switch ReusePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReuseFresh:
		return ReuseFresh, true
	case ReuseScratch:
		return ReuseScratch, true
	default:
		return "", false
	}
}

// GlueTemplate renders the glue snippet for a module from its logical output path,
// its module name and its export list.
type GlueTemplate func(out, module string, exports []string) string

// BackendDescriptor describes a registered backend. It is immutable once registered.
type BackendDescriptor struct {
	ID        string
	Languages []string
	// Extension is the file extension given to the block source, without the dot.
	Extension string
	// TagExtensions overrides Extension for individual language tags.
	TagExtensions map[string]string
	Family    Family
	Reuse     ReusePolicy
	// Tools lists the executables the backend needs on PATH.
	Tools []string
	// Comptime reports whether the backend supports the standalone binary mode.
	Comptime bool
	// Glue renders the glue snippet. Nil for backends that emit their own glue.
	Glue GlueTemplate
}

// SourceExtension returns the file extension for a block written in tag.
func (d BackendDescriptor) SourceExtension(tag string) string {
	if ext, ok := d.TagExtensions[NormalizeTag(tag)]; ok {
		return ext
	}
	return d.Extension
}

// Accepts reports whether the backend handles tag.
func (d BackendDescriptor) Accepts(tag string) bool {
	tag = NormalizeTag(tag)
	for _, l := range d.Languages {
		if NormalizeTag(l) == tag {
			return true
		}
	}
	return false
}

// BuildContext is the per-invocation build contract handed to a backend.
// It is constructed once per build and never mutated.
type BuildContext struct {
	// Input is the absolute path of the block's source file.
	Input string
	// Out is the logical, document-relative output directory used inside glue.
	Out string
	// OutDir is the absolute directory artifacts must be written to.
	OutDir string
	// Cache is the directory the backend may use for incremental state.
	Cache string
	// Exports are the declared host-import names.
	Exports []string
	// Comptime selects standalone binary mode.
	Comptime bool
	// Args are forwarded verbatim to the toolchain.
	Args []string
	// Module is the module name used for artifact file names.
	Module string
}

// Contract environment entry names.
const (
	EnvInput    = "WASMBLOCK_INPUT"
	EnvOut      = "WASMBLOCK_OUT"
	EnvOutDir   = "WASMBLOCK_OUT_DIR"
	EnvCache    = "WASMBLOCK_CACHE"
	EnvExports  = "WASMBLOCK_EXPORTS"
	EnvComptime = "WASMBLOCK_COMPTIME"
	EnvModule   = "WASMBLOCK_MODULE"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Validate checks that every contract entry is present and well formed.
func (c BuildContext) Validate() error {
	required := []struct {
		key, value string
		abs        bool
	}{
		{EnvInput, c.Input, true},
		{EnvOut, c.Out, false},
		{EnvOutDir, c.OutDir, true},
		{EnvCache, c.Cache, true},
		{EnvModule, c.Module, false},
	}
	for _, r := range required {
		if r.value == "" {
			return NewConfigurationError(zerr.With(ErrContractEntryMissing, "entry", r.key))
		}
		if r.abs && !filepath.IsAbs(r.value) {
			return NewConfigurationError(zerr.With(zerr.With(ErrContractPathNotAbsolute, "entry", r.key), "path", r.value))
		}
	}
	if filepath.IsAbs(c.Out) || strings.HasPrefix(c.Out, "/") {
		return NewConfigurationError(zerr.With(zerr.New("logical output path must be relative"), "out", c.Out))
	}
	for _, name := range c.Exports {
		if !identifierRegex.MatchString(name) {
			return NewConfigurationError(zerr.With(ErrInvalidExportName, "export", name))
		}
	}
	return nil
}

// Env renders the contract as KEY=VALUE environment entries.
func (c BuildContext) Env() []string {
	comptime := ""
	if c.Comptime {
		comptime = "1"
	}
	return []string{
		EnvInput + "=" + c.Input,
		EnvOut + "=" + c.Out,
		EnvOutDir + "=" + c.OutDir,
		EnvCache + "=" + c.Cache,
		EnvExports + "=" + strings.Join(c.Exports, " "),
		EnvComptime + "=" + comptime,
		EnvModule + "=" + c.Module,
	}
}

// Outcome is what a backend reports on success.
type Outcome struct {
	// Glue is the complete glue snippet. It references artifacts only through BuildContext.Out.
	Glue string
}
