package backend_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"go.trai.ch/wasmblock/internal/adapters/backend"
	"go.trai.ch/wasmblock/internal/core/domain"
)

func TestGlueTemplates(t *testing.T) {
	tests := []struct {
		name     string
		template domain.GlueTemplate
		out      string
		exports  []string
	}{
		{name: "bindgen", template: backend.BindgenGlue, out: "wasm/demo"},
		{name: "direct_no_exports", template: backend.DirectGlue, out: "wasm/add"},
		{name: "direct_exports", template: backend.DirectGlue, out: "wasm/add", exports: []string{"foo", "bar"}},
		{name: "shim_exports", template: backend.ShimGlue, out: "wasm/hello", exports: []string{"log"}},
		{name: "shim_no_exports", template: backend.ShimGlue, out: "wasm/hello"},
		{name: "emscripten", template: backend.EmscriptenGlue, out: "wasm/c-demo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.template(tt.out, domain.ModuleName, tt.exports)
			goldie.New(t).Assert(t, "glue_"+tt.name, []byte(got))
		})
	}
}

func TestDirectGlue_ExportForwarding(t *testing.T) {
	glue := backend.DirectGlue("wasm/add", domain.ModuleName, []string{"foo", "bar"})
	assert.Contains(t, glue, "{ env: { foo, bar } }")

	glue = backend.DirectGlue("wasm/add", domain.ModuleName, nil)
	assert.NotContains(t, glue, "env")
}

func TestGlue_QuotesPaths(t *testing.T) {
	glue := backend.BindgenGlue(`wasm/we"ird`, domain.ModuleName, nil)
	assert.Contains(t, glue, `"/wasm/we\"ird/module.js"`)
}

func TestGlue_Relocatable(t *testing.T) {
	templates := map[string]domain.GlueTemplate{
		"bindgen":    backend.BindgenGlue,
		"direct":     backend.DirectGlue,
		"shim":       backend.ShimGlue,
		"emscripten": backend.EmscriptenGlue,
	}
	for name, tmpl := range templates {
		t.Run(name, func(t *testing.T) {
			cached := tmpl(domain.GlueOutToken, domain.ModuleName, []string{"log"})
			for _, out := range []string{"wasm/demo-2", "module", "b", "my-mod"} {
				assert.Equal(t, tmpl(out, domain.ModuleName, []string{"log"}), domain.MaterializeGlue(cached, out), out)
			}
		})
	}
}
