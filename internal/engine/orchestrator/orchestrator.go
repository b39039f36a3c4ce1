// Package orchestrator builds source blocks concurrently, consulting the cache before invoking backends.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Metric outcomes besides the error kinds.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeCached    = "cached"
)

// Orchestrator turns jobs into build results.
type Orchestrator struct {
	registry  ports.Registry
	cache     ports.CacheStore
	tracer    ports.Tracer
	metrics   ports.Metrics
	evaluator ports.ComptimeEvaluator
	exec      ports.Executor
	logger    ports.Logger

	opts        domain.Config
	stagingRoot string

	locks  keyedMutex
	flight singleflight.Group

	// work directories touched by this orchestrator, pruned after a batch
	workMu   sync.Mutex
	workDirs map[string]struct{}

	wasmOptOnce  sync.Once
	wasmOptFound bool
}

// New creates an Orchestrator for one configuration.
// Staged artifacts go to a fresh directory below <cfg.OutDir>/.staging.
// evaluator may be nil, in which case comptime binaries are built but not run.
func New(
	registry ports.Registry,
	cache ports.CacheStore,
	tracer ports.Tracer,
	metrics ports.Metrics,
	evaluator ports.ComptimeEvaluator,
	exec ports.Executor,
	logger ports.Logger,
	cfg domain.Config,
) *Orchestrator {
	return &Orchestrator{
		registry:    registry,
		cache:       cache,
		tracer:      tracer,
		metrics:     metrics,
		evaluator:   evaluator,
		exec:        exec,
		logger:      logger,
		opts:        cfg,
		stagingRoot: filepath.Join(cfg.OutDir, domain.StagingDirName, uuid.NewString()),
	}
}

// StagingRoot returns the directory holding the staged artifacts of every block.
func (o *Orchestrator) StagingRoot() string {
	return o.stagingRoot
}

// ExecuteBatch builds every job with bounded parallelism.
// One failing block never stops the others. Results are in job order.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, jobs []domain.Job) []domain.BuildResult {
	start := time.Now()

	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Slot.Name
	}
	o.tracer.EmitPlan(ctx, names)

	limit := o.opts.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	results := make([]domain.BuildResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = o.Execute(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	o.pruneWorkDirs()

	o.metrics.ObserveBatch(len(jobs), time.Since(start))
	return results
}

// Execute builds a single job.
func (o *Orchestrator) Execute(ctx context.Context, job domain.Job) domain.BuildResult {
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, job.Slot.Name, ports.WithBlock(job.Slot.Name))
	defer span.End()

	res, backendID := o.execute(ctx, job, span)
	res.Duration = time.Since(start)
	if backendID == "" {
		backendID = job.Block.Tag()
	}

	outcome := OutcomeSucceeded
	switch {
	case res.Err != nil:
		span.RecordError(res.Err)
		outcome = res.Err.Kind.String()
	case res.Cached:
		outcome = OutcomeCached
	}
	o.metrics.ObserveBlock(backendID, outcome, res.Duration)

	return res
}

// built is what one backend invocation produced, shared with identical in-flight jobs.
type built struct {
	owner     string
	artifacts []domain.Artifact
	glue      string // relocated
}

func (o *Orchestrator) execute(ctx context.Context, job domain.Job, span ports.Span) (domain.BuildResult, string) {
	if err := ctx.Err(); err != nil {
		return domain.Failed(job, domain.NewBuildFailure(zerr.Wrap(err, "build cancelled"), "")), ""
	}

	backend, err := o.registry.Resolve(job.Block.Language)
	if err != nil {
		return domain.Failed(job, err), ""
	}
	desc := backend.Descriptor()
	span.SetAttribute(domain.SpanAttrBackend, desc.ID)

	if job.Block.Comptime && !desc.Comptime {
		return domain.Failed(job, domain.NewConfigurationError(
			zerr.With(domain.ErrComptimeUnsupported, "backend", desc.ID))), desc.ID
	}

	args := append(slices.Clone(o.opts.BackendArgs[desc.ID]), job.Block.Args...)
	key := Key(desc.ID, job.Block, args, o.postProcessKey(desc.ID)...)
	span.SetAttribute(domain.SpanAttrCacheKey, key.String())

	staging := filepath.Join(o.stagingRoot, job.Slot.Name)
	if err := resetDir(staging); err != nil {
		return domain.Failed(job, domain.NewIOFailure(zerr.Wrap(err, "failed to create staging directory"))), desc.ID
	}

	if res, ok := o.fromCache(job, key, staging); ok {
		span.SetAttribute(domain.SpanAttrCached, true)
		return res, desc.ID
	}

	v, err, _ := o.flight.Do(key.String(), func() (any, error) {
		return o.build(ctx, job, backend, args, key, staging, span)
	})
	if err != nil {
		_ = os.RemoveAll(staging)
		return domain.Failed(job, err), desc.ID
	}

	b, _ := v.(*built)
	artifacts := b.artifacts
	if b.owner != job.Slot.Name {
		if err := materialize(b.artifacts, staging); err != nil {
			_ = os.RemoveAll(staging)
			return domain.Failed(job, domain.NewIOFailure(zerr.Wrap(err, "failed to copy shared artifacts"))), desc.ID
		}
	}

	return domain.BuildResult{
		Name:       job.Slot.Name,
		Slot:       job.Slot,
		Status:     domain.StatusSucceeded,
		StagingDir: staging,
		Artifacts:  artifactPaths(artifacts),
		Glue:       domain.MaterializeGlue(b.glue, job.Slot.Out),
	}, desc.ID
}

// fromCache stages a cached result. A hit that cannot be copied is treated as a miss.
func (o *Orchestrator) fromCache(job domain.Job, key domain.CacheKey, staging string) (domain.BuildResult, bool) {
	if o.opts.NoCache {
		return domain.BuildResult{}, false
	}

	entry, err := o.cache.Get(key)
	if err != nil {
		o.logger.Warn("cache lookup failed for " + key.String() + ": " + err.Error())
		return domain.BuildResult{}, false
	}
	if entry == nil {
		return domain.BuildResult{}, false
	}

	if err := materialize(entry.Artifacts, staging); err != nil {
		o.logger.Warn("cache entry " + key.String() + " could not be restored: " + err.Error())
		if err := resetDir(staging); err != nil {
			o.logger.Warn("failed to reset staging directory: " + err.Error())
		}
		return domain.BuildResult{}, false
	}

	return domain.BuildResult{
		Name:       job.Slot.Name,
		Slot:       job.Slot,
		Status:     domain.StatusSucceeded,
		Cached:     true,
		StagingDir: staging,
		Artifacts:  artifactPaths(entry.Artifacts),
		Glue:       domain.MaterializeGlue(entry.Glue, job.Slot.Out),
	}, true
}

// build runs the backend for job and stores the result in the cache.
func (o *Orchestrator) build(
	ctx context.Context,
	job domain.Job,
	backend ports.Backend,
	args []string,
	key domain.CacheKey,
	staging string,
	log io.Writer,
) (*built, error) {
	desc := backend.Descriptor()

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	inputDir, err := os.MkdirTemp("", "wasmblock-input-")
	if err != nil {
		return nil, domain.NewIOFailure(zerr.Wrap(err, "failed to create input directory"))
	}
	defer func() { _ = os.RemoveAll(inputDir) }()

	input := filepath.Join(inputDir, "input."+desc.SourceExtension(job.Block.Language))
	if err := os.WriteFile(input, []byte(job.Block.Source), domain.FilePerm); err != nil {
		return nil, domain.NewIOFailure(zerr.Wrap(err, "failed to write block source"))
	}

	work := domain.WorkPath(o.opts.CacheRoot, desc.ID)
	if err := os.MkdirAll(work, domain.DirPerm); err != nil {
		return nil, domain.NewIOFailure(zerr.Wrap(err, "failed to create backend work directory"))
	}
	o.trackWorkDir(work)

	bc := domain.BuildContext{
		Input:    input,
		Out:      job.Slot.Out,
		OutDir:   staging,
		Cache:    work,
		Exports:  slices.Clone(job.Block.Exports),
		Comptime: job.Block.Comptime,
		Args:     args,
		Module:   domain.ModuleName,
	}
	if err := bc.Validate(); err != nil {
		return nil, err
	}

	if desc.Reuse == domain.ReuseScratch {
		unlock := o.locks.Lock(desc.ID)
		defer unlock()
	}

	outcome, err := backend.Build(ctx, bc, log)
	if err != nil {
		return nil, o.contextError(ctx, err)
	}

	artifacts, err := scanArtifacts(staging)
	if err != nil {
		return nil, domain.NewIOFailure(zerr.Wrap(err, "failed to scan artifacts"))
	}
	if err := o.postProcess(ctx, desc.ID, staging, artifacts, log); err != nil {
		return nil, o.contextError(ctx, err)
	}

	glue := relocatableGlue(desc, bc, outcome.Glue)
	if bc.Comptime && o.opts.EvaluateComptime && o.evaluator != nil {
		decls, err := o.evaluate(ctx, staging, artifacts)
		if err != nil {
			return nil, o.contextError(ctx, err)
		}
		glue += domain.RenderDecls(decls)
	}

	// Post-processing rewrites modules in place.
	if artifacts, err = scanArtifacts(staging); err != nil {
		return nil, domain.NewIOFailure(zerr.Wrap(err, "failed to scan artifacts"))
	}

	b := &built{
		owner:     job.Slot.Name,
		artifacts: artifacts,
		glue:      glue,
	}

	if !o.opts.NoCache {
		entry := domain.CacheEntry{
			Key:       key,
			Artifacts: artifacts,
			Glue:      b.glue,
			CreatedAt: time.Now().UTC(),
		}
		if err := o.cache.Put(entry, staging); err != nil {
			o.logger.Warn("failed to store cache entry " + key.String() + ": " + err.Error())
		}
	}

	return b, nil
}

func (o *Orchestrator) trackWorkDir(dir string) {
	o.workMu.Lock()
	defer o.workMu.Unlock()
	if o.workDirs == nil {
		o.workDirs = make(map[string]struct{})
	}
	o.workDirs[dir] = struct{}{}
}

// pruneWorkDirs removes the work directories that backends left empty. It runs once no build is in
// flight, since fresh builds create their scratch directories below the shared work directory.
func (o *Orchestrator) pruneWorkDirs() {
	o.workMu.Lock()
	defer o.workMu.Unlock()
	for dir := range o.workDirs {
		// Remove fails on directories with incremental state in them.
		_ = os.Remove(dir)
	}
	clear(o.workDirs)
}

// relocatableGlue replaces the block-specific parts of glue with tokens. Glue rendered from the
// backend's template is rendered again for the tokens; any other glue is rewritten in place.
func relocatableGlue(desc domain.BackendDescriptor, bc domain.BuildContext, glue string) string {
	if desc.Glue != nil && glue == desc.Glue(bc.Out, bc.Module, bc.Exports) {
		return desc.Glue(domain.GlueOutToken, bc.Module, bc.Exports)
	}
	return domain.RelocateGlue(glue, bc.Out)
}

// evaluate runs the single module a comptime build produced.
func (o *Orchestrator) evaluate(ctx context.Context, dir string, artifacts []domain.Artifact) ([]domain.JSDecl, error) {
	var modules []string
	for _, a := range artifacts {
		if filepath.Ext(a.Path) == ".wasm" {
			modules = append(modules, filepath.Join(dir, filepath.FromSlash(a.Path)))
		}
	}
	if len(modules) != 1 {
		return nil, domain.NewBuildFailure(
			zerr.With(zerr.Wrap(domain.ErrComptimeFailed, "expected exactly one module"), "modules", len(modules)), "")
	}
	return o.evaluator.Evaluate(ctx, modules[0])
}

// contextError marks failures caused by the deadline or cancellation.
// The backend's diagnostic output is kept.
func (o *Orchestrator) contextError(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return err
	}

	var diag string
	var be *domain.BlockError
	if errors.As(err, &be) {
		diag = be.Diagnostic
	}

	msg := "build cancelled"
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		msg = "build timed out"
	}
	return domain.NewBuildFailure(zerr.With(zerr.Wrap(ctxErr, msg), "timeout", o.opts.Timeout.String()), diag)
}
