package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/wasmblock/internal/core/domain"
)

func TestPrefixFor(t *testing.T) {
	doc := filepath.FromSlash("/work/site")

	tests := []struct {
		name string
		out  string
		want string
	}{
		{name: "below document", out: "/work/site/static/wasm", want: "static/wasm"},
		{name: "document dir", out: "/work/site", want: ""},
		{name: "outside document", out: "/srv/www/modules", want: "modules"},
		{name: "sibling", out: "/work/other", want: "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prefixFor(doc, filepath.FromSlash(tt.out)))
		})
	}
}

func TestWatchPaths(t *testing.T) {
	root := t.TempDir()
	docDir := filepath.Join(root, "docs", "guide")
	require.NoError(t, os.MkdirAll(docDir, 0o750))
	doc := filepath.Join(docDir, "README.md")

	t.Run("explicit config", func(t *testing.T) {
		paths, err := watchPaths(doc, filepath.Join(root, "custom.yaml"))
		require.NoError(t, err)
		assert.Equal(t, []string{doc, filepath.Join(root, "custom.yaml")}, paths)
	})

	t.Run("config found upwards", func(t *testing.T) {
		cfg := filepath.Join(root, "docs", domain.ConfigFileName)
		require.NoError(t, os.WriteFile(cfg, []byte("version: \"1\"\n"), 0o600))

		paths, err := watchPaths(doc, "")
		require.NoError(t, err)
		assert.Equal(t, []string{doc, cfg}, paths)
	})
}
