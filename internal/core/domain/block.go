package domain

import (
	"slices"
	"strings"
)

// SourceBlock is a single embedded source snippet destined to become one module plus glue.
// It is created once by extraction and never mutated.
type SourceBlock struct {
	// Language is the language tag as written in the document.
	Language string
	// Source is the raw source text.
	Source string
	// Name is the declared block name. It may be empty or collide with other blocks.
	Name string
	// Exports are the host-import symbol names the block declares, in order.
	Exports []string
	// Comptime selects the standalone binary build mode.
	Comptime bool
	// Args are forwarded verbatim to the toolchain.
	Args []string
	// Line is the 1-based line of the block in its document. It never affects caching.
	Line int
}

// Tag returns the normalized language tag.
func (b SourceBlock) Tag() string {
	return NormalizeTag(b.Language)
}

// Clone returns a deep copy of the block.
func (b SourceBlock) Clone() SourceBlock {
	b.Exports = slices.Clone(b.Exports)
	b.Args = slices.Clone(b.Args)
	return b
}

// NormalizeTag lowercases and trims a language tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeSource canonicalizes source text so that insignificant whitespace does not change cache keys.
// Line endings become LF, trailing whitespace is trimmed per line, and trailing blank lines are dropped.
func NormalizeSource(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")

	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
