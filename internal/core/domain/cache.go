package domain

import (
	"regexp"
	"strings"
	"time"
)

// Tokens standing in for the block-specific parts of cached glue,
// so an entry can be materialized for any block that shares its key.
// GlueIdentToken is GlueIdent(GlueOutToken), so a template rendered for GlueOutToken is relocatable as is.
const (
	GlueOutToken   = "@@WASMBLOCK_OUT@@"
	GlueIdentToken = "__WASMBLOCK_OUT__"
)

// CacheKey identifies a build result. Digest is computed over the backend id and the block content.
type CacheKey struct {
	Backend string `json:"backend"`
	Digest  string `json:"digest"`
}

// String returns "backend/digest".
func (k CacheKey) String() string {
	return k.Backend + "/" + k.Digest
}

// IsZero reports whether the key is unset.
func (k CacheKey) IsZero() bool {
	return k.Backend == "" && k.Digest == ""
}

// Artifact is one file produced by a build, relative to the block's output directory.
type Artifact struct {
	// Path is slash separated and relative.
	Path string `json:"path"`
	Size int64  `json:"size"`
	// Digest is the xxhash of the content in hex.
	Digest string `json:"digest"`
	// Source is the absolute location of the content. It is not persisted.
	Source string `json:"-"`
}

// CacheEntry is a previously produced artifact set and its glue text.
type CacheEntry struct {
	Key       CacheKey   `json:"key"`
	Artifacts []Artifact `json:"artifacts"`
	Glue      string     `json:"glue"`
	CreatedAt time.Time  `json:"created_at"`
}

// RelocateGlue replaces the logical output path and its identifier in glue with tokens.
// The path is only replaced where it starts a path segment and is followed by a slash,
// the identifier only where it stands alone. A file stem or an identifier fragment that
// happens to equal out is left untouched.
func RelocateGlue(glue, out string) string {
	out = strings.Trim(out, "/")
	if out == "" {
		return glue
	}
	path := regexp.MustCompile(`(^|[^A-Za-z0-9_.\-])` + regexp.QuoteMeta(out) + `/`)
	glue = replaceBounded(path, glue, "${1}"+GlueOutToken+"/")

	ident := regexp.MustCompile("(^|[^A-Za-z0-9_$./\\-\"'`])" + regexp.QuoteMeta(GlueIdent(out)) + `($|[^A-Za-z0-9_$\-])`)
	return replaceBounded(ident, glue, "${1}"+GlueIdentToken+"${2}")
}

// replaceBounded repeats the replacement until it settles, since adjacent matches share their boundary.
func replaceBounded(re *regexp.Regexp, s, repl string) string {
	for {
		next := re.ReplaceAllString(s, repl)
		if next == s {
			return s
		}
		s = next
	}
}

// MaterializeGlue substitutes the tokens in cached glue for the block mounted at out.
func MaterializeGlue(glue, out string) string {
	out = strings.Trim(out, "/")
	glue = strings.ReplaceAll(glue, GlueOutToken, out)
	return strings.ReplaceAll(glue, GlueIdentToken, GlueIdent(out))
}

// CacheStats summarizes the cache for the cache command.
type CacheStats struct {
	Root    string
	Entries int
	Bytes   int64
}
