package backend_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/wasmblock/internal/adapters/backend"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports/mocks"
)

func newContext(t *testing.T, ext string) domain.BuildContext {
	t.Helper()
	root := t.TempDir()
	input := filepath.Join(root, "in", "input."+ext)
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o750))
	require.NoError(t, os.WriteFile(input, []byte("source\n"), 0o600))
	outDir := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o750))

	return domain.BuildContext{
		Input:  input,
		Out:    "wasm/demo",
		OutDir: outDir,
		Cache:  filepath.Join(root, "cache"),
		Module: domain.ModuleName,
	}
}

func allToolsPresent(exec *mocks.MockExecutor) {
	exec.EXPECT().LookPath(gomock.Any()).DoAndReturn(func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}).AnyTimes()
}

func TestZig_BuildLib(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	allToolsPresent(exec)

	bc := newContext(t, "zig")
	bc.Exports = []string{"foo", "bar"}
	bc.Args = []string{"-O", "ReleaseSmall"}

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.Equal(t, "zig", cmd.Name)
			assert.Equal(t, []string{
				"build-lib", bc.Input, "-target", "wasm32-freestanding", "-dynamic", "-rdynamic",
				"-femit-bin=" + filepath.Join(bc.OutDir, "module.wasm"),
				"-O", "ReleaseSmall",
			}, cmd.Args)
			assert.NotEmpty(t, cmd.Dir)
			return nil
		})

	outcome, err := backend.NewZig(exec).Build(t.Context(), bc, nil)
	require.NoError(t, err)
	assert.Contains(t, outcome.Glue, "{ env: { foo, bar } }")
}

func TestZig_Comptime(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	allToolsPresent(exec)

	bc := newContext(t, "zig")
	bc.Comptime = true

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.Equal(t, "build-exe", cmd.Args[0])
			assert.Contains(t, cmd.Args, "wasm32-wasi")
			return nil
		})

	outcome, err := backend.NewZig(exec).Build(t.Context(), bc, nil)
	require.NoError(t, err)
	assert.Empty(t, outcome.Glue)
}

func TestWat_ToolchainMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	exec.EXPECT().LookPath("wat2wasm").Return("", errors.New("not found"))

	_, err := backend.NewWat(exec).Build(t.Context(), newContext(t, "wat"), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolchainMissing)
	var be *domain.BlockError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "wat2wasm", be.Tool)
}

func TestWat_ComptimeUnsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)

	bc := newContext(t, "wat")
	bc.Comptime = true

	_, err := backend.NewWat(exec).Build(t.Context(), bc, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestWat_BuildFailureKeepsDiagnostic(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	allToolsPresent(exec)

	const diag = "input.wat:1:2: error: unexpected token\n"
	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *domain.Command, _, stderr io.Writer) error {
			_, _ = io.WriteString(stderr, diag)
			return errors.New("exit status 1")
		})

	_, err := backend.NewWat(exec).Build(t.Context(), newContext(t, "wat"), io.Discard)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildFailure)
	var be *domain.BlockError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, diag, be.Diagnostic)
}

func TestRust_ModeSwitch(t *testing.T) {
	t.Run("browser module", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		exec := mocks.NewMockExecutor(ctrl)
		allToolsPresent(exec)

		bc := newContext(t, "rs")
		project := filepath.Join(bc.Cache, "project")

		gomock.InOrder(
			exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
					assert.Equal(t, "cargo", cmd.Name)
					assert.Equal(t, []string{"init", "--lib", "--vcs", "none", "--name", "wasmblock_out", project}, cmd.Args)
					return os.MkdirAll(filepath.Join(project, "src"), 0o750)
				}),
			exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
					assert.Equal(t, "wasm-pack", cmd.Name)
					assert.Contains(t, cmd.Args, "--out-dir")
					assert.Contains(t, cmd.Args, bc.OutDir)
					require.NoError(t, os.WriteFile(filepath.Join(bc.OutDir, "module.js"), []byte("js"), 0o600))
					require.NoError(t, os.WriteFile(filepath.Join(bc.OutDir, "module_bg.wasm"), []byte("wasm"), 0o600))
					return os.WriteFile(filepath.Join(bc.OutDir, "package.json"), []byte("{}"), 0o600)
				}),
		)

		outcome, err := backend.NewRust(exec).Build(t.Context(), bc, nil)
		require.NoError(t, err)
		assert.Contains(t, outcome.Glue, `"/wasm/demo/module.js"`)

		lib, err := os.ReadFile(filepath.Join(project, "src", "lib.rs"))
		require.NoError(t, err)
		assert.Equal(t, "source\n", string(lib))
		manifest, err := os.ReadFile(filepath.Join(project, "Cargo.toml"))
		require.NoError(t, err)
		assert.Contains(t, string(manifest), `crate-type = ["cdylib"]`)

		assert.ElementsMatch(t, []string{"module.js", "module_bg.wasm"}, listDir(t, bc.OutDir))
	})

	t.Run("comptime binary", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		exec := mocks.NewMockExecutor(ctrl)
		allToolsPresent(exec)

		bc := newContext(t, "rs")
		bc.Comptime = true
		project := filepath.Join(bc.Cache, "comptime")

		gomock.InOrder(
			exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
					assert.Equal(t, []string{"init", "--bin", "--vcs", "none", "--name", "wasmblock_comptime", project}, cmd.Args)
					return os.MkdirAll(filepath.Join(project, "src"), 0o750)
				}),
			exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
					assert.Equal(t, "cargo", cmd.Name)
					assert.Contains(t, cmd.Args, "wasm32-wasip1")
					bin := filepath.Join(bc.Cache, "target", "wasm32-wasip1", "debug", "wasmblock_comptime.wasm")
					require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o750))
					return os.WriteFile(bin, []byte("wasi"), 0o600)
				}),
		)

		outcome, err := backend.NewRust(exec).Build(t.Context(), bc, nil)
		require.NoError(t, err)
		assert.Empty(t, outcome.Glue)
		assert.Equal(t, []string{"module.wasm"}, listDir(t, bc.OutDir))
	})
}

func TestRust_ReusesScaffold(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	allToolsPresent(exec)

	bc := newContext(t, "rs")
	project := filepath.Join(bc.Cache, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(project, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(project, "Cargo.toml"), []byte("[package]\n"), 0o600))

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.Equal(t, "wasm-pack", cmd.Name)
			return nil
		})

	_, err := backend.NewRust(exec).Build(t.Context(), bc, nil)
	require.NoError(t, err)
}

func TestGo_CopiesShim(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	allToolsPresent(exec)

	goroot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(goroot, "lib", "wasm"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(goroot, "lib", "wasm", "wasm_exec.js"), []byte("shim"), 0o600))

	bc := newContext(t, "go")
	bc.Exports = []string{"log"}

	gomock.InOrder(
		exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd *domain.Command, stdout, _ io.Writer) error {
				assert.Equal(t, []string{"env", "GOROOT"}, cmd.Args)
				_, _ = io.WriteString(stdout, goroot+"\n")
				return nil
			}),
		exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
				assert.Contains(t, cmd.Env, "GOOS=js")
				assert.Equal(t, ".", cmd.Args[len(cmd.Args)-1])
				src, err := os.ReadFile(filepath.Join(cmd.Dir, "main.go"))
				require.NoError(t, err)
				assert.Equal(t, "source\n", string(src))
				return nil
			}),
	)

	outcome, err := backend.NewGo(exec).Build(t.Context(), bc, nil)
	require.NoError(t, err)
	assert.Contains(t, outcome.Glue, "importObject.env = { log }")

	shim, err := os.ReadFile(filepath.Join(bc.OutDir, "wasm_exec.js"))
	require.NoError(t, err)
	assert.Equal(t, "shim", string(shim))
}

func TestTinyGo_Comptime(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	allToolsPresent(exec)

	bc := newContext(t, "go")
	bc.Comptime = true

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.Equal(t, "tinygo", cmd.Name)
			assert.Contains(t, cmd.Args, "wasip1")
			return nil
		})

	outcome, err := backend.NewTinyGo(exec).Build(t.Context(), bc, nil)
	require.NoError(t, err)
	assert.Empty(t, outcome.Glue)
	assert.NoFileExists(t, filepath.Join(bc.OutDir, "wasm_exec.js"))
}

func TestEmscripten_Build(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)
	allToolsPresent(exec)

	bc := newContext(t, "cpp")
	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.Equal(t, "emcc", cmd.Name)
			assert.Equal(t, bc.Input, cmd.Args[0])
			assert.Contains(t, cmd.Args, filepath.Join(bc.OutDir, "module.js"))
			return nil
		})

	outcome, err := backend.NewEmscripten(exec).Build(t.Context(), bc, nil)
	require.NoError(t, err)
	assert.Contains(t, outcome.Glue, `"/wasm/demo/module.js"`)

	d := backend.NewEmscripten(exec).Descriptor()
	assert.Equal(t, "cpp", d.SourceExtension("C++"))
	assert.Equal(t, "c", d.SourceExtension("c"))
}

func TestScript_Contract(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)

	script := filepath.Join(t.TempDir(), "build.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o700))

	bc := newContext(t, "txt")
	bc.Args = []string{"--fast"}
	bc.Exports = []string{"a", "b"}

	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, stdout, stderr io.Writer) error {
			assert.Equal(t, script, cmd.Name)
			assert.Equal(t, []string{"--fast"}, cmd.Args)
			assert.Contains(t, cmd.Env, "WASMBLOCK_EXPORTS=a b")
			assert.Contains(t, cmd.Env, "WASMBLOCK_OUT_DIR="+bc.OutDir)
			_, _ = io.WriteString(stderr, "compiling\n")
			_, _ = io.WriteString(stdout, "console.log(1);\n")
			return nil
		})

	b := backend.NewScript(exec, domain.ScriptBackend{ID: "custom", Script: script, Languages: []string{"txt"}})
	outcome, err := b.Build(t.Context(), bc, nil)
	require.NoError(t, err)
	assert.Equal(t, "console.log(1);\n", outcome.Glue)
}

func TestScript_Missing(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)

	b := backend.NewScript(exec, domain.ScriptBackend{ID: "custom", Script: "/nonexistent/build.sh"})
	_, err := b.Build(t.Context(), newContext(t, "txt"), nil)

	assert.ErrorIs(t, err, domain.ErrToolchainMissing)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
