package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/wasmblock/internal/core/domain"
)

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "only blank lines", in: "\n\n  \n", want: ""},
		{name: "crlf", in: "a\r\nb\r\n", want: "a\nb\n"},
		{name: "trailing spaces", in: "fn main() {}  \t\n", want: "fn main() {}\n"},
		{name: "adds final newline", in: "x", want: "x\n"},
		{name: "keeps leading indentation", in: "  x\n", want: "  x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.NormalizeSource(tt.in))
		})
	}
}

func TestBuildContext_Validate(t *testing.T) {
	valid := domain.BuildContext{
		Input:   "/tmp/in/input.rs",
		Out:     "wasm/demo",
		OutDir:  "/tmp/out/demo",
		Cache:   "/tmp/cache/rust",
		Module:  "demo",
		Exports: []string{"log", "$alert"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *domain.BuildContext)
	}{
		{name: "missing input", mutate: func(c *domain.BuildContext) { c.Input = "" }},
		{name: "relative input", mutate: func(c *domain.BuildContext) { c.Input = "input.rs" }},
		{name: "missing out", mutate: func(c *domain.BuildContext) { c.Out = "" }},
		{name: "absolute out", mutate: func(c *domain.BuildContext) { c.Out = "/wasm/demo" }},
		{name: "relative out dir", mutate: func(c *domain.BuildContext) { c.OutDir = "out" }},
		{name: "missing cache", mutate: func(c *domain.BuildContext) { c.Cache = "" }},
		{name: "missing module", mutate: func(c *domain.BuildContext) { c.Module = "" }},
		{name: "bad export", mutate: func(c *domain.BuildContext) { c.Exports = []string{"not-valid"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			c.Exports = append([]string(nil), valid.Exports...)
			tt.mutate(&c)

			err := c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestBuildContext_Env(t *testing.T) {
	c := domain.BuildContext{
		Input:    "/in/input.zig",
		Out:      "wasm/add",
		OutDir:   "/out/add",
		Cache:    "/cache/zig",
		Module:   "add",
		Exports:  []string{"foo", "bar"},
		Comptime: true,
	}

	env := c.Env()
	assert.Contains(t, env, "WASMBLOCK_EXPORTS=foo bar")
	assert.Contains(t, env, "WASMBLOCK_COMPTIME=1")
	assert.Contains(t, env, "WASMBLOCK_OUT=wasm/add")

	c.Comptime = false
	assert.Contains(t, c.Env(), "WASMBLOCK_COMPTIME=")
}

func TestBlockError_Is(t *testing.T) {
	err := domain.NewToolchainMissingError("wasm-pack", errors.New("not found"))

	assert.ErrorIs(t, err, domain.ErrToolchainMissing)
	assert.NotErrorIs(t, err, domain.ErrBuildFailure)

	wrapped := domain.AsBlockError("demo", err)
	assert.Equal(t, "demo", wrapped.Block)
	assert.Equal(t, "wasm-pack", wrapped.Tool)
	assert.Contains(t, wrapped.Error(), "demo: toolchain missing")
}

func TestAsBlockError_PlainError(t *testing.T) {
	be := domain.AsBlockError("x", errors.New("boom"))
	require.NotNil(t, be)
	assert.Equal(t, domain.KindBuildFailure, be.Kind)
	assert.Nil(t, domain.AsBlockError("x", nil))
}

func TestGlueRelocation(t *testing.T) {
	tests := []struct {
		name string
		glue string
		from string
		to   string
		want string
	}{
		{
			name: "nested out",
			glue: "const wasm_demo = await load(\"/wasm/demo/module.wasm\");\n",
			from: "wasm/demo",
			to:   "wasm/demo-2",
			want: "const wasm_demo_2 = await load(\"/wasm/demo-2/module.wasm\");\n",
		},
		{
			name: "out equal to the module stem",
			glue: "const module = await load(\"./module/module.wasm\");\nmodule.main();\n",
			from: "module",
			to:   "b",
			want: "const b = await load(\"./b/module.wasm\");\nb.main();\n",
		},
		{
			name: "identifier differs from out",
			glue: "const demo = await load(\"/demo/module.js\");\n",
			from: "demo",
			to:   "my-mod",
			want: "const my_mod = await load(\"/my-mod/module.js\");\n",
		},
		{
			name: "fragments stay",
			glue: "init_demo(demo, \"demo.js\", \"/x/demo-old/\");\n",
			from: "demo",
			to:   "other",
			want: "init_demo(other, \"demo.js\", \"/x/demo-old/\");\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cached := domain.RelocateGlue(tt.glue, tt.from)
			assert.Equal(t, tt.want, domain.MaterializeGlue(cached, tt.to))
		})
	}
}

func TestGlueIdentToken(t *testing.T) {
	assert.Equal(t, domain.GlueIdentToken, domain.GlueIdent(domain.GlueOutToken))
}

func TestGlueIdent(t *testing.T) {
	tests := map[string]string{
		"wasm/demo":   "wasm_demo",
		"wasm/demo-2": "wasm_demo_2",
		"/out/x/":     "out_x",
		"9lives":      "_9lives",
		"class":       "_class",
		"":            "_",
		"wasm/héllo":  "wasm_h_llo",
	}
	for in, want := range tests {
		assert.Equal(t, want, domain.GlueIdent(in), in)
	}
}

func TestOutputManifest_Encode(t *testing.T) {
	m := &domain.OutputManifest{
		Modules: []domain.ManifestEntry{{Name: "demo", Dir: "wasm/demo", Artifacts: []string{"demo.wasm"}}},
		Script:  "<script>\n",
	}

	first, err := m.Encode()
	require.NoError(t, err)
	second, err := m.Encode()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"script": "<script>\n"`)

	empty, err := (&domain.OutputManifest{}).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"modules": []`)
}

func TestRenderDecls(t *testing.T) {
	decls := []domain.JSDecl{
		{Name: "answer", Value: []byte("42")},
		{Name: "greeting", Value: []byte(`"hi"`)},
	}
	assert.Equal(t, "const answer = 42;\nconst greeting = \"hi\";\n", domain.RenderDecls(decls))
	assert.Empty(t, domain.RenderDecls(nil))
}
