package backend

import (
	"encoding/json"
	"strings"

	"go.trai.ch/wasmblock/internal/core/domain"
)

// Glue templates render one block's loader snippet. Each snippet binds only identifiers derived from the
// block's logical output path, so the snippets of a whole document concatenate into one module script.

// BindgenGlue loads a wasm-bindgen module through its generated bindings.
func BindgenGlue(out, module string, _ []string) string {
	id := domain.GlueIdent(out)
	var b strings.Builder
	b.WriteString("import init_" + id + ", * as " + id + " from " + jsString("/"+joinOut(out, module+".js")) + ";\n")
	b.WriteString("await init_" + id + "();\n")
	return b.String()
}

// DirectGlue instantiates a freestanding module. Declared exports become its env imports.
func DirectGlue(out, module string, exports []string) string {
	id := domain.GlueIdent(out)
	src := jsString("./" + joinOut(out, module+".wasm"))
	if len(exports) == 0 {
		return "const " + id + " = (await WebAssembly.instantiateStreaming(fetch(" + src + "))).instance.exports;\n"
	}
	return "const " + id + " = (await WebAssembly.instantiateStreaming(fetch(" + src + "), { env: " +
		objectLiteral(exports) + " })).instance.exports;\n"
}

// ShimGlue loads the Go runtime bootstrap script, then instantiates and runs the module through it.
func ShimGlue(out, module string, exports []string) string {
	id := domain.GlueIdent(out)
	goVar := id + "_go"
	instVar := id + "_inst"

	var b strings.Builder
	b.WriteString("import " + jsString("./"+joinOut(out, wasmExecFile)) + ";\n")
	b.WriteString("const " + goVar + " = new Go();\n")
	if len(exports) > 0 {
		b.WriteString(goVar + ".importObject.env = " + objectLiteral(exports) + ";\n")
	}
	b.WriteString("const " + instVar + " = await WebAssembly.instantiateStreaming(fetch(" +
		jsString("./"+joinOut(out, module+".wasm")) + "), " + goVar + ".importObject);\n")
	b.WriteString(goVar + ".run(" + instVar + ".instance);\n")
	b.WriteString("const " + id + " = " + instVar + ".instance.exports;\n")
	return b.String()
}

// EmscriptenGlue appends the self-loading script emitted by emcc to the page and waits for it.
func EmscriptenGlue(out, module string, _ []string) string {
	var b strings.Builder
	b.WriteString("await new Promise((resolve, reject) => {\n")
	b.WriteString("  const s = document.createElement(\"script\");\n")
	b.WriteString("  s.src = " + jsString("/"+joinOut(out, module+".js")) + ";\n")
	b.WriteString("  s.async = true;\n")
	b.WriteString("  s.onload = resolve;\n")
	b.WriteString("  s.onerror = reject;\n")
	b.WriteString("  document.head.appendChild(s);\n")
	b.WriteString("});\n")
	return b.String()
}

// objectLiteral renders shorthand properties. Export names are validated identifiers.
func objectLiteral(names []string) string {
	return "{ " + strings.Join(names, ", ") + " }"
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	// encoding/json escapes U+2028 and U+2029, so the literal is valid in every JavaScript engine.
	return strings.TrimSuffix(b.String(), "\n")
}

func joinOut(out, file string) string {
	out = strings.Trim(out, "/")
	if out == "" {
		return file
	}
	return out + "/" + file
}
