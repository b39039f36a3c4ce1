package domain

import (
	"bytes"
	"encoding/json"
)

// ManifestEntry maps one block to its output subdirectory.
type ManifestEntry struct {
	Name      string   `json:"name"`
	Dir       string   `json:"dir"`
	Artifacts []string `json:"artifacts"`
}

// OutputManifest is consumed by the document renderer.
type OutputManifest struct {
	Modules []ManifestEntry `json:"modules"`
	// Script is the concatenated glue in block order.
	Script string `json:"script"`
}

// Encode serializes the manifest deterministically.
func (m *OutputManifest) Encode() ([]byte, error) {
	out := *m
	if out.Modules == nil {
		out.Modules = []ManifestEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
