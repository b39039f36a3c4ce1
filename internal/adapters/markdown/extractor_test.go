package markdown_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/wasmblock/internal/adapters/markdown"
	"go.trai.ch/wasmblock/internal/core/domain"
)

const document = "# Demo\n" +
	"\n" +
	"```go\n" +
	"package ignored\n" +
	"```\n" +
	"\n" +
	"```wasm:rust name=demo exports=log,alert -- --release --features simd\n" +
	"pub fn add(a: i32, b: i32) -> i32 { a + b }\n" +
	"```\n" +
	"\n" +
	"- list item\n" +
	"\n" +
	"  ```wasm:Zig comptime\n" +
	"  pub fn main() void {}\n" +
	"  ```\n" +
	"\n" +
	"~~~wasm:wat\n" +
	"(module)\n" +
	"~~~\n"

func TestExtract(t *testing.T) {
	blocks, err := markdown.NewExtractor().Extract([]byte(document))
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	assert.Equal(t, domain.SourceBlock{
		Language: "rust",
		Source:   "pub fn add(a: i32, b: i32) -> i32 { a + b }\n",
		Name:     "demo",
		Exports:  []string{"log", "alert"},
		Args:     []string{"--release", "--features", "simd"},
		Line:     7,
	}, blocks[0])

	assert.Equal(t, "Zig", blocks[1].Language)
	assert.Equal(t, "zig", blocks[1].Name)
	assert.True(t, blocks[1].Comptime)
	assert.Equal(t, "pub fn main() void {}\n", blocks[1].Source)
	assert.Equal(t, 13, blocks[1].Line)

	assert.Equal(t, "wat", blocks[2].Language)
	assert.Equal(t, "(module)\n", blocks[2].Source)
	assert.Empty(t, blocks[2].Exports)
	assert.Empty(t, blocks[2].Args)
}

func TestExtract_NoBlocks(t *testing.T) {
	blocks, err := markdown.NewExtractor().Extract([]byte("plain text\n\n```js\nx\n```\n"))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestExtract_InvalidInfo(t *testing.T) {
	tests := []struct {
		name string
		info string
	}{
		{name: "unknown attribute", info: "wasm:rust optimize"},
		{name: "comptime with value", info: "wasm:rust comptime=yes"},
		{name: "missing language", info: "wasm:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "text\n\n```" + tt.info + "\nbody\n```\n"
			_, err := markdown.NewExtractor().Extract([]byte(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), domain.ErrInvalidBlockAttribute.Error())
		})
	}
}
