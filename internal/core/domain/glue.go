package domain

import (
	"strings"
	"unicode"
)

// ModuleName is the file stem of every block's artifacts. It does not depend on the block name,
// so blocks that share a cache key share byte-identical artifacts.
const ModuleName = "module"

// GlueIdent returns the JavaScript identifier a block's glue binds its module to.
// It is derived from the logical output path, which is unique per block.
func GlueIdent(out string) string {
	var b strings.Builder
	for _, r := range strings.Trim(out, "/") {
		if r < unicode.MaxASCII && (r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	id := b.String()
	if id == "" || unicode.IsDigit(rune(id[0])) || reservedWords[id] {
		id = "_" + id
	}
	return id
}

var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true, "else": true,
	"enum": true, "export": true, "extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true, "instanceof": true, "let": true,
	"new": true, "null": true, "return": true, "static": true, "super": true, "switch": true,
	"this": true, "throw": true, "true": true, "try": true, "typeof": true, "var": true,
	"void": true, "while": true, "with": true, "yield": true,
}
