// Package app implements the application layer for wasmblock.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/wasmblock/internal/adapters/backend"
	"go.trai.ch/wasmblock/internal/adapters/cas"
	"go.trai.ch/wasmblock/internal/adapters/detector"
	"go.trai.ch/wasmblock/internal/adapters/journal"
	"go.trai.ch/wasmblock/internal/adapters/linear"
	"go.trai.ch/wasmblock/internal/adapters/metrics"
	"go.trai.ch/wasmblock/internal/adapters/telemetry"
	"go.trai.ch/wasmblock/internal/adapters/tui"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/wasmblock/internal/engine/assembler"
	"go.trai.ch/wasmblock/internal/engine/orchestrator"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// RegistryFactory builds the backend registry of one build.
type RegistryFactory func(exec ports.Executor, cfg domain.Config) (ports.Registry, error)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	extractor    ports.Extractor
	evaluator    ports.ComptimeEvaluator
	executors    ports.ExecutorFactory
	watcher      ports.Watcher
	logger       ports.Logger
	newRegistry  RegistryFactory
	teaOptions   []tea.ProgramOption
	stdout       io.Writer
	stderr       io.Writer
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	extractor ports.Extractor,
	evaluator ports.ComptimeEvaluator,
	executors ports.ExecutorFactory,
	watcher ports.Watcher,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		extractor:    extractor,
		evaluator:    evaluator,
		executors:    executors,
		watcher:      watcher,
		logger:       log,
		newRegistry:  defaultRegistry,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
}

func defaultRegistry(exec ports.Executor, cfg domain.Config) (ports.Registry, error) {
	return backend.NewRegistry(exec, cfg.Scripts)
}

// WithTeaOptions adds bubbletea program options to the App.
// This is primarily used for testing to disable input/output.
func (a *App) WithTeaOptions(opts ...tea.ProgramOption) *App {
	a.teaOptions = append(a.teaOptions, opts...)
	return a
}

// WithOutput redirects the renderers and reports.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithRegistry replaces the registry of built-in and script backends.
func (a *App) WithRegistry(fn RegistryFactory) *App {
	a.newRegistry = fn
	return a
}

// SetJSONLogs switches the logger to JSON output when it supports it.
func (a *App) SetJSONLogs(enable bool) {
	if l, ok := a.logger.(interface{ SetJSON(bool) }); ok {
		l.SetJSON(enable)
	}
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	Document   string
	ConfigPath string
	// OutDir overrides the configured output root. Relative to the working directory.
	OutDir string
	// Prefix overrides the logical mount path when set.
	Prefix      *string
	NoCache     bool
	Timeout     time.Duration
	Parallelism int
	OutputMode  string
	MetricsFile string
	JournalFile string
	// Optimize overrides the configured wasm-opt level when set.
	Optimize string
}

// Build extracts the blocks of a document, builds them and assembles the output tree.
// It returns domain.ErrBlocksFailed after logging every block error when any block failed.
func (a *App) Build(ctx context.Context, opts BuildOptions) error {
	docPath, err := filepath.Abs(opts.Document)
	if err != nil {
		return zerr.Wrap(err, domain.ErrDocumentReadFailed.Error())
	}

	blocks, err := a.extract(docPath)
	if err != nil {
		return err
	}

	cfg, err := a.resolveConfig(filepath.Dir(docPath), opts)
	if err != nil {
		return err
	}

	return a.build(ctx, blocks, cfg, opts)
}

func (a *App) extract(docPath string) ([]domain.SourceBlock, error) {
	// #nosec G304 -- the document is given by the user
	doc, err := os.ReadFile(docPath)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrDocumentReadFailed.Error()), "path", docPath)
	}
	blocks, err := a.extractor.Extract(doc)
	if err != nil {
		return nil, zerr.With(err, "path", docPath)
	}
	if len(blocks) == 0 {
		a.logger.Warn("no build blocks in " + docPath)
	}
	return blocks, nil
}

// resolveConfig loads the configuration for a document and applies the flag overrides.
func (a *App) resolveConfig(docDir string, opts BuildOptions) (domain.Config, error) {
	cfg, err := a.configLoader.Load(docDir, opts.ConfigPath)
	if err != nil {
		return domain.Config{}, zerr.Wrap(err, "failed to load configuration")
	}

	if opts.OutDir != "" {
		outDir, err := filepath.Abs(opts.OutDir)
		if err != nil {
			return domain.Config{}, zerr.Wrap(err, "failed to resolve output directory")
		}
		cfg.OutDir = outDir
		cfg.Prefix = prefixFor(docDir, outDir)
	}
	if opts.Prefix != nil {
		cfg.Prefix = strings.Trim(filepath.ToSlash(*opts.Prefix), "/")
	}
	if opts.NoCache {
		cfg.NoCache = true
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	if opts.Parallelism > 0 {
		cfg.Parallelism = opts.Parallelism
	}
	if opts.Optimize != "" {
		level, err := domain.ParseOptimizeLevel(opts.Optimize)
		if err != nil {
			return domain.Config{}, err
		}
		cfg.Optimize = level
	}
	return cfg, nil
}

// prefixFor returns the path of outDir relative to the document, or its base name when it lies outside.
func prefixFor(docDir, outDir string) string {
	rel, err := filepath.Rel(docDir, outDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(outDir)
	}
	if rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

//nolint:cyclop,funlen // orchestration function
func (a *App) build(ctx context.Context, blocks []domain.SourceBlock, cfg domain.Config, opts BuildOptions) error {
	exec := a.executors.ForConfig(cfg)
	registry, err := a.newRegistry(exec, cfg)
	if err != nil {
		return domain.NewConfigurationError(err)
	}
	store := cas.NewStore(cfg.CacheRoot, a.logger)

	var recorder *metrics.Recorder
	var observer ports.Metrics = metrics.Noop{}
	if opts.MetricsFile != "" {
		recorder = metrics.NewRecorder(prometheus.NewRegistry())
		observer = recorder
	}

	ctx, interrupt := context.WithCancel(ctx)
	defer interrupt()

	// 1. Initialize Renderer
	renderer, err := a.newRenderer(ctx, opts, interrupt)
	if err != nil {
		return err
	}

	// 2. Initialize Telemetry
	// Spans reach the renderer through the bridge, block output through the tracer.
	bridge := telemetry.NewBridge(renderer)
	tp := setupOTel(bridge)
	defer func() {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}()
	tracer := telemetry.NewOTelTracer("wasmblock").WithRenderer(renderer)

	// 3. Initialize Engine
	orch := orchestrator.New(registry, store, tracer, observer, a.evaluator, exec, a.logger, cfg)
	asm := assembler.New(cfg.OutDir, cfg.Prefix, a.logger)

	var (
		manifest  *domain.OutputManifest
		blockErrs []*domain.BlockError
	)

	// 4. Run Renderer and Build concurrently
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		// A renderer torn down by an interrupt is not a failure of its own.
		if err := renderer.Wait(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				_, _ = fmt.Fprintf(a.stderr, "Build panic: %v\n", r)
				err = zerr.New(fmt.Sprint("build panicked: ", r))
			}
			_ = tracer.Shutdown(context.WithoutCancel(gctx))
			_ = renderer.Stop()
		}()

		results := orch.ExecuteBatch(gctx, asm.Plan(blocks))
		manifest, blockErrs, err = asm.Assemble(gctx, results)
		asm.Cleanup(orch.StagingRoot())
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if recorder != nil {
		if err := recorder.WriteFile(opts.MetricsFile); err != nil {
			a.logger.Warn(fmt.Sprintf("failed to write metrics to %s: %v", opts.MetricsFile, err))
		}
	}

	if len(blockErrs) > 0 {
		for _, be := range blockErrs {
			a.logger.Error(be)
		}
		a.logger.Warn(fmt.Sprintf("%d of %d blocks failed", len(blockErrs), len(blocks)))
		return domain.ErrBlocksFailed
	}

	a.logger.Info(fmt.Sprintf("wrote %d module(s) to %s", len(manifest.Modules), cfg.OutDir))
	return nil
}

// newRenderer picks the progress renderer for the environment and tees it with the journal when requested.
func (a *App) newRenderer(ctx context.Context, opts BuildOptions, interrupt func()) (ports.Renderer, error) {
	mode, err := detector.ResolveMode(detector.DetectEnvironment(), opts.OutputMode)
	if err != nil {
		return nil, err
	}

	var renderer ports.Renderer
	if mode == detector.ModeTUI {
		model := tui.NewModel(a.stderr, tui.WithInterrupt(interrupt))
		optsTea := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(a.stderr)}, a.teaOptions...)
		renderer = tui.NewRenderer(model, optsTea...)
	} else {
		renderer = linear.NewRenderer(a.stdout, a.stderr)
	}

	if opts.JournalFile == "" {
		return renderer, nil
	}
	j, err := journal.Open(opts.JournalFile)
	if err != nil {
		return nil, err
	}
	return journal.Tee(renderer, j), nil
}

// setupOTel configures the OpenTelemetry SDK with the renderer bridge.
func setupOTel(bridge *telemetry.Bridge) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bridge),
	)
	otel.SetTracerProvider(tp)
	return tp
}
