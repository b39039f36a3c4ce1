package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/wasmblock/internal/adapters/backend"
	"go.trai.ch/wasmblock/internal/adapters/cas"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/wasmblock/internal/core/ports/mocks"
	"go.trai.ch/wasmblock/internal/engine/orchestrator"
)

var emptyModule = []byte("\x00asm\x01\x00\x00\x00")

// fakeBackend writes an empty module and glue naming its output path.
type fakeBackend struct {
	desc  domain.BackendDescriptor
	build func(ctx context.Context, bc domain.BuildContext) (domain.Outcome, error)

	mu        sync.Mutex
	contexts  []domain.BuildContext
	active    int
	maxActive int
}

func newFake(id string, reuse domain.ReusePolicy, languages ...string) *fakeBackend {
	return &fakeBackend{desc: domain.BackendDescriptor{
		ID:        id,
		Languages: languages,
		Extension: "src",
		Family:    domain.FamilyDirectCompile,
		Reuse:     reuse,
		Comptime:  true,
	}}
}

func (f *fakeBackend) Descriptor() domain.BackendDescriptor { return f.desc }

func (f *fakeBackend) Build(ctx context.Context, bc domain.BuildContext, _ io.Writer) (domain.Outcome, error) {
	f.mu.Lock()
	f.contexts = append(f.contexts, bc)
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.build != nil {
		return f.build(ctx, bc)
	}
	if err := os.WriteFile(filepath.Join(bc.OutDir, bc.Module+".wasm"), emptyModule, 0o600); err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Glue: "load(\"./" + bc.Out + "/" + bc.Module + ".wasm\", " + domain.GlueIdent(bc.Out) + ");\n"}, nil
}

func (f *fakeBackend) calls() []domain.BuildContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.BuildContext(nil), f.contexts...)
}

type testMocks struct {
	tracer    *mocks.MockTracer
	metrics   *mocks.MockMetrics
	logger    *mocks.MockLogger
	exec      *mocks.MockExecutor
	evaluator *mocks.MockComptimeEvaluator
}

func testConfig(t *testing.T) domain.Config {
	t.Helper()
	cfg := domain.DefaultConfig()
	cfg.OutDir = t.TempDir()
	cfg.CacheRoot = t.TempDir()
	cfg.Parallelism = 4
	return cfg
}

// setupOrchestrator wires an orchestrator over a real cache store and the given backends.
func setupOrchestrator(
	t *testing.T,
	cfg domain.Config,
	backends ...ports.Backend,
) (*orchestrator.Orchestrator, testMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := testMocks{
		tracer:    mocks.NewMockTracer(ctrl),
		metrics:   mocks.NewMockMetrics(ctrl),
		logger:    mocks.NewMockLogger(ctrl),
		exec:      mocks.NewMockExecutor(ctrl),
		evaluator: mocks.NewMockComptimeEvaluator(ctrl),
	}

	mockSpan := mocks.NewMockSpan(ctrl)
	mockSpan.EXPECT().End().AnyTimes()
	mockSpan.EXPECT().RecordError(gomock.Any()).AnyTimes()
	mockSpan.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	mockSpan.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) { return len(p), nil }).AnyTimes()

	m.tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, mockSpan
		},
	).AnyTimes()
	m.tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any()).AnyTimes()
	m.logger.EXPECT().Info(gomock.Any()).AnyTimes()

	reg, err := backend.New(backends...)
	require.NoError(t, err)

	store := cas.NewStore(cfg.CacheRoot, m.logger)
	o := orchestrator.New(reg, store, m.tracer, m.metrics, m.evaluator, m.exec, m.logger, cfg)
	return o, m
}

func allowMetrics(m testMocks) {
	m.metrics.EXPECT().ObserveBlock(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	m.metrics.EXPECT().ObserveBatch(gomock.Any(), gomock.Any()).AnyTimes()
}

func newJob(cfg domain.Config, name, lang, src string) domain.Job {
	return domain.Job{
		Block: domain.SourceBlock{Language: lang, Source: src, Name: name},
		Slot: domain.Slot{
			Name: name,
			Out:  "wasm/" + name,
			Dir:  filepath.Join(cfg.OutDir, name),
		},
	}
}

func TestExecuteBatch_CacheHitSkipsBackend(t *testing.T) {
	cfg := testConfig(t)
	jobs := []domain.Job{
		newJob(cfg, "a", "fake", "one"),
		newJob(cfg, "b", "fake", "two"),
	}

	fake := newFake("fake", domain.ReuseFresh, "fake")
	first, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)
	cold := first.ExecuteBatch(t.Context(), jobs)
	require.Len(t, fake.calls(), 2)

	second, m := setupOrchestrator(t, cfg, fake)
	m.metrics.EXPECT().ObserveBlock("fake", orchestrator.OutcomeCached, gomock.Any()).Times(2)
	m.metrics.EXPECT().ObserveBatch(2, gomock.Any())
	warm := second.ExecuteBatch(t.Context(), jobs)

	assert.Len(t, fake.calls(), 2, "backend must not run for cached blocks")
	for i := range jobs {
		require.True(t, warm[i].Succeeded(), "block %s", jobs[i].Slot.Name)
		assert.True(t, warm[i].Cached)
		assert.Equal(t, cold[i].Glue, warm[i].Glue)
		assert.Equal(t, []string{"module.wasm"}, warm[i].Artifacts)

		data, err := os.ReadFile(filepath.Join(warm[i].StagingDir, "module.wasm"))
		require.NoError(t, err)
		assert.Equal(t, emptyModule, data)
	}
}

func TestExecuteBatch_FailureIsolation(t *testing.T) {
	cfg := testConfig(t)
	fake := newFake("fake", domain.ReuseFresh, "fake")
	broken := newFake("broken", domain.ReuseFresh, "broken")
	broken.build = func(_ context.Context, _ domain.BuildContext) (domain.Outcome, error) {
		return domain.Outcome{}, domain.NewBuildFailure(errors.New("exit status 1"), "error: expected `;`\n")
	}

	o, m := setupOrchestrator(t, cfg, fake, broken)
	allowMetrics(m)

	results := o.ExecuteBatch(t.Context(), []domain.Job{
		newJob(cfg, "x", "broken", "x"),
		newJob(cfg, "y", "fake", "y"),
		newJob(cfg, "z", "fake", "z"),
	})

	require.Len(t, results, 3)
	assert.True(t, results[1].Succeeded())
	assert.True(t, results[2].Succeeded())
	assert.Len(t, fake.calls(), 2, "an early failure must not stop the remaining blocks")

	x := results[0]
	assert.Equal(t, domain.StatusFailed, x.Status)
	require.NotNil(t, x.Err)
	assert.Equal(t, "x", x.Err.Block)
	assert.Equal(t, domain.KindBuildFailure, x.Err.Kind)
	assert.Equal(t, "error: expected `;`\n", x.Diagnostic)
	assert.Empty(t, x.Glue)
	assert.NoDirExists(t, filepath.Join(o.StagingRoot(), "x"))

	stats, err := cas.NewStore(cfg.CacheRoot, nil).Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries, "failed builds are never cached")
}

func TestExecute_BuildContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackendArgs = map[string][]string{"fake": {"-O"}}
	fake := newFake("fake", domain.ReuseFresh, "fake")
	fake.desc.TagExtensions = map[string]string{"fake": "fk"}

	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	job := newJob(cfg, "demo", "FAKE", "src")
	job.Block.Exports = []string{"log", "$alert"}
	job.Block.Args = []string{"--extra"}

	res := o.Execute(t.Context(), job)
	require.True(t, res.Succeeded())

	calls := fake.calls()
	require.Len(t, calls, 1)
	bc := calls[0]
	assert.Equal(t, []string{"log", "$alert"}, bc.Exports)
	assert.Equal(t, []string{"-O", "--extra"}, bc.Args)
	assert.Equal(t, domain.ModuleName, bc.Module)
	assert.Equal(t, "wasm/demo", bc.Out)
	assert.Equal(t, ".fk", filepath.Ext(bc.Input))
	assert.Equal(t, domain.WorkPath(cfg.CacheRoot, "fake"), bc.Cache)
	assert.Equal(t, res.StagingDir, bc.OutDir)
	assert.NoFileExists(t, bc.Input, "input file is temporary")
	assert.Equal(t, "load(\"./wasm/demo/module.wasm\", wasm_demo);\n", res.Glue)
}

func TestExecute_ComptimeIsSeparateBuild(t *testing.T) {
	cfg := testConfig(t)
	fake := newFake("fake", domain.ReuseFresh, "fake")
	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	m.evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, path string) ([]domain.JSDecl, error) {
			assert.Equal(t, "module.wasm", filepath.Base(path))
			return []domain.JSDecl{{Name: "answer", Value: []byte("42")}}, nil
		})

	browser := o.Execute(t.Context(), newJob(cfg, "a", "fake", "same source"))
	comptimeJob := newJob(cfg, "b", "fake", "same source")
	comptimeJob.Block.Comptime = true
	comptime := o.Execute(t.Context(), comptimeJob)

	require.True(t, browser.Succeeded())
	require.True(t, comptime.Succeeded())
	assert.Len(t, fake.calls(), 2, "build mode is part of the cache key")
	assert.False(t, fake.calls()[0].Comptime)
	assert.True(t, fake.calls()[1].Comptime)
	assert.Contains(t, comptime.Glue, "const answer = 42;\n")
	assert.NotContains(t, browser.Glue, "answer")
}

func TestExecute_ComptimeUnsupported(t *testing.T) {
	cfg := testConfig(t)
	fake := newFake("fake", domain.ReuseFresh, "fake")
	fake.desc.Comptime = false
	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	job := newJob(cfg, "a", "fake", "src")
	job.Block.Comptime = true

	res := o.Execute(t.Context(), job)
	require.NotNil(t, res.Err)
	assert.ErrorIs(t, res.Err, domain.ErrConfiguration)
	assert.Empty(t, fake.calls())
}

func TestExecute_UnknownLanguage(t *testing.T) {
	cfg := testConfig(t)
	o, m := setupOrchestrator(t, cfg, newFake("fake", domain.ReuseFresh, "fake"))
	m.metrics.EXPECT().ObserveBlock("cobol", domain.KindConfiguration.String(), gomock.Any())

	res := o.Execute(t.Context(), newJob(cfg, "a", "cobol", "src"))
	require.NotNil(t, res.Err)
	assert.Equal(t, domain.KindConfiguration, res.Err.Kind)
	assert.Equal(t, "a", res.Err.Block)
}

func TestExecute_Timeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Timeout = 5 * time.Second
		fake := newFake("fake", domain.ReuseFresh, "fake")
		fake.build = func(ctx context.Context, _ domain.BuildContext) (domain.Outcome, error) {
			<-ctx.Done()
			return domain.Outcome{}, domain.NewBuildFailure(errors.New("signal: killed"), "compiling...\n")
		}
		o, m := setupOrchestrator(t, cfg, fake)
		allowMetrics(m)

		start := time.Now()
		res := o.Execute(t.Context(), newJob(cfg, "slow", "fake", "loop"))

		assert.Equal(t, 5*time.Second, time.Since(start))
		require.NotNil(t, res.Err)
		assert.Equal(t, domain.KindBuildFailure, res.Err.Kind)
		assert.Contains(t, res.Err.Error(), "timed out")
		assert.Equal(t, "compiling...\n", res.Diagnostic)

		stats, err := cas.NewStore(cfg.CacheRoot, nil).Stats()
		require.NoError(t, err)
		assert.Zero(t, stats.Entries)
	})
}

func TestExecuteBatch_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	fake := newFake("fake", domain.ReuseFresh, "fake")
	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	results := o.ExecuteBatch(ctx, []domain.Job{
		newJob(cfg, "a", "fake", "a"),
		newJob(cfg, "b", "fake", "b"),
	})
	for _, r := range results {
		require.NotNil(t, r.Err)
		assert.Equal(t, domain.KindBuildFailure, r.Err.Kind)
		assert.Contains(t, r.Err.Error(), "cancelled")
	}
	assert.Empty(t, fake.calls())
}

func TestExecuteBatch_ScratchBackendsSerialize(t *testing.T) {
	cfg := testConfig(t)
	cfg.Parallelism = 8
	scratch := newFake("scratch", domain.ReuseScratch, "scratch")
	scratch.build = func(_ context.Context, bc domain.BuildContext) (domain.Outcome, error) {
		time.Sleep(5 * time.Millisecond)
		return domain.Outcome{Glue: "x\n"}, os.WriteFile(filepath.Join(bc.OutDir, "module.wasm"), emptyModule, 0o600)
	}
	o, m := setupOrchestrator(t, cfg, scratch)
	allowMetrics(m)

	var jobs []domain.Job
	for _, name := range []string{"a", "b", "c", "d"} {
		jobs = append(jobs, newJob(cfg, name, "scratch", "source "+name))
	}
	results := o.ExecuteBatch(t.Context(), jobs)

	for _, r := range results {
		assert.True(t, r.Succeeded())
	}
	assert.Len(t, scratch.calls(), 4)
	assert.Equal(t, 1, scratch.maxActive, "builds sharing a scratch project must not overlap")
}

func TestExecuteBatch_SharedKeyGetsOwnGlue(t *testing.T) {
	cfg := testConfig(t)
	fake := newFake("fake", domain.ReuseFresh, "fake")
	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	results := o.ExecuteBatch(t.Context(), []domain.Job{
		newJob(cfg, "left", "fake", "identical"),
		newJob(cfg, "right", "fake", "identical\n\n"),
	})

	assert.LessOrEqual(t, len(fake.calls()), 2)
	for _, r := range results {
		require.True(t, r.Succeeded())
		assert.Equal(t, "load(\"./"+r.Slot.Out+"/module.wasm\", "+domain.GlueIdent(r.Slot.Out)+");\n", r.Glue)
		assert.FileExists(t, filepath.Join(r.StagingDir, "module.wasm"))
	}
	assert.NotEqual(t, results[0].StagingDir, results[1].StagingDir)
}

func TestExecute_CacheHitAcrossNames(t *testing.T) {
	cfg := testConfig(t)
	fake := newFake("fake", domain.ReuseFresh, "fake")
	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	left := o.Execute(t.Context(), newJob(cfg, "left", "fake", "identical"))
	right := o.Execute(t.Context(), newJob(cfg, "right", "fake", "identical\n\n"))

	require.True(t, left.Succeeded())
	require.True(t, right.Succeeded())
	assert.Len(t, fake.calls(), 1, "second block with the same key must come from the cache")
	assert.False(t, left.Cached)
	assert.True(t, right.Cached)
	assert.Equal(t, "load(\"./wasm/right/module.wasm\", wasm_right);\n", right.Glue)
}

func TestExecute_CachedGlueWithoutPrefix(t *testing.T) {
	tests := []struct {
		name     string
		template domain.GlueTemplate
		want     func(out string) string
	}{
		{
			name:     "template glue",
			template: backend.DirectGlue,
			want: func(out string) string {
				return backend.DirectGlue(out, domain.ModuleName, []string{"log"})
			},
		},
		{
			name: "emitted glue",
			want: func(out string) string {
				return "load(\"./" + out + "/module.wasm\", " + domain.GlueIdent(out) + ");\n"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			fake := newFake("fake", domain.ReuseFresh, "fake")
			if tt.template != nil {
				fake.desc.Glue = tt.template
				fake.build = func(_ context.Context, bc domain.BuildContext) (domain.Outcome, error) {
					err := os.WriteFile(filepath.Join(bc.OutDir, bc.Module+".wasm"), emptyModule, 0o600)
					return domain.Outcome{Glue: tt.template(bc.Out, bc.Module, bc.Exports)}, err
				}
			}
			o, m := setupOrchestrator(t, cfg, fake)
			allowMetrics(m)

			var results []domain.BuildResult
			for _, name := range []string{"module", "b", "my-mod"} {
				job := newJob(cfg, name, "fake", "same source")
				job.Slot.Out = name
				job.Block.Exports = []string{"log"}
				results = append(results, o.Execute(t.Context(), job))
			}

			require.Len(t, fake.calls(), 1)
			for _, r := range results {
				require.True(t, r.Succeeded(), r.Name)
				assert.Equal(t, tt.want(r.Slot.Out), r.Glue, r.Name)
			}
		})
	}
}

func TestExecuteBatch_FreshBuildsShareWorkDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoCache = true
	cfg.Parallelism = 32

	exec := mocks.NewMockExecutor(gomock.NewController(t))
	exec.EXPECT().LookPath("zig").Return("/usr/bin/zig", nil).AnyTimes()
	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.DirExists(t, cmd.Dir)
			for _, arg := range cmd.Args {
				if out, ok := strings.CutPrefix(arg, "-femit-bin="); ok {
					return os.WriteFile(out, emptyModule, 0o600)
				}
			}
			return errors.New("no output path")
		}).AnyTimes()

	o, m := setupOrchestrator(t, cfg, backend.NewZig(exec))
	allowMetrics(m)

	for round := range 10 {
		var jobs []domain.Job
		for i := range 64 {
			name := fmt.Sprintf("b%d_%d", round, i)
			jobs = append(jobs, newJob(cfg, name, "zig", "export fn f() void {} // "+name))
		}
		for _, r := range o.ExecuteBatch(t.Context(), jobs) {
			require.True(t, r.Succeeded(), "%s: %v", r.Name, r.Err)
		}
		assert.NoDirExists(t, domain.WorkPath(cfg.CacheRoot, "zig"), "empty work directory is pruned after the batch")
	}
}

func TestExecute_NoCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoCache = true
	fake := newFake("fake", domain.ReuseFresh, "fake")
	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	job := newJob(cfg, "a", "fake", "src")
	require.True(t, o.Execute(t.Context(), job).Succeeded())
	require.True(t, o.Execute(t.Context(), job).Succeeded())

	assert.Len(t, fake.calls(), 2)
	stats, err := cas.NewStore(cfg.CacheRoot, nil).Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestExecute_OptimizeWithoutWasmOpt(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimize = domain.OptimizeSize
	fake := newFake("fake", domain.ReuseFresh, "fake")
	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	m.exec.EXPECT().LookPath("wasm-opt").Return("", errors.New("not found")).Times(1)
	m.logger.EXPECT().Warn("wasm-opt not found, skipping optimization").Times(1)

	assert.True(t, o.Execute(t.Context(), newJob(cfg, "a", "fake", "a")).Succeeded())
	assert.True(t, o.Execute(t.Context(), newJob(cfg, "b", "fake", "b")).Succeeded())
}

func TestExecute_Optimize(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimize = domain.OptimizeSpeedMajor
	cfg.Features = map[string][]string{"fake": {"simd", "bulk_memory"}}
	fake := newFake("fake", domain.ReuseFresh, "fake")
	o, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)

	m.exec.EXPECT().LookPath("wasm-opt").Return("/usr/bin/wasm-opt", nil)
	m.exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			assert.Equal(t, "wasm-opt", cmd.Name)
			require.Len(t, cmd.Args, 6)
			assert.Equal(t, []string{"-O3", "--enable-bulk-memory", "--enable-simd"}, cmd.Args[:3])
			assert.Equal(t, "module.wasm", filepath.Base(cmd.Args[3]))
			assert.Equal(t, []string{"-o", cmd.Args[3]}, cmd.Args[4:])
			return nil
		})

	assert.True(t, o.Execute(t.Context(), newJob(cfg, "a", "fake", "a")).Succeeded())
}

func TestExecute_PostProcessingIsPartOfTheKey(t *testing.T) {
	cfg := testConfig(t)
	fake := newFake("fake", domain.ReuseFresh, "fake")
	plain, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)
	require.True(t, plain.Execute(t.Context(), newJob(cfg, "a", "fake", "a")).Succeeded())

	cfg.Strip = true
	stripped, m := setupOrchestrator(t, cfg, fake)
	allowMetrics(m)
	res := stripped.Execute(t.Context(), newJob(cfg, "a", "fake", "a"))

	require.True(t, res.Succeeded())
	assert.False(t, res.Cached)
	assert.Len(t, fake.calls(), 2)
}
