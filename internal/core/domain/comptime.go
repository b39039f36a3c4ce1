package domain

import (
	"encoding/json"
	"strings"
)

// JSDecl is a constant produced by running a comptime binary.
type JSDecl struct {
	Name string
	// Value is a JSON encoded value.
	Value json.RawMessage
}

// String renders the declaration as JavaScript.
func (d JSDecl) String() string {
	return "const " + d.Name + " = " + string(d.Value) + ";"
}

// RenderDecls renders declarations one per line.
func RenderDecls(decls []JSDecl) string {
	if len(decls) == 0 {
		return ""
	}
	lines := make([]string, len(decls))
	for i, d := range decls {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n") + "\n"
}
