// Package backend holds the closed set of compiler backends and the registry that selects them by language tag.
package backend

import (
	"regexp"
	"sort"

	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Registry = (*Registry)(nil)

var backendIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Registry resolves language tags to backends. It is immutable after construction.
type Registry struct {
	byID  map[string]ports.Backend
	byTag map[string]ports.Backend
}

// Builtins returns the built-in backends.
func Builtins(exec ports.Executor) []ports.Backend {
	return []ports.Backend{
		NewRust(exec),
		NewZig(exec),
		NewWat(exec),
		NewGo(exec),
		NewTinyGo(exec),
		NewEmscripten(exec),
	}
}

// NewRegistry registers the built-in backends and the configured scripts.
// A script may claim tags of a built-in backend, which then no longer resolve to the built-in.
func NewRegistry(exec ports.Executor, scripts []domain.ScriptBackend) (*Registry, error) {
	backends := Builtins(exec)
	for _, s := range scripts {
		backends = append(backends, NewScript(exec, s))
	}
	return New(backends...)
}

// New creates a registry from backends. Later backends win tag conflicts; duplicate ids are an error.
func New(backends ...ports.Backend) (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]ports.Backend, len(backends)),
		byTag: make(map[string]ports.Backend),
	}
	for _, b := range backends {
		d := b.Descriptor()
		if !backendIDRegex.MatchString(d.ID) {
			return nil, zerr.With(zerr.New("invalid backend id"), "backend", d.ID)
		}
		if _, ok := r.byID[d.ID]; ok {
			return nil, zerr.With(domain.ErrDuplicateBackend, "backend", d.ID)
		}
		if len(d.Languages) == 0 {
			return nil, zerr.With(zerr.New("backend declares no languages"), "backend", d.ID)
		}
		r.byID[d.ID] = b
		for _, tag := range d.Languages {
			r.byTag[domain.NormalizeTag(tag)] = b
		}
	}
	return r, nil
}

// Resolve implements ports.Registry.
func (r *Registry) Resolve(tag string) (ports.Backend, error) {
	if b, ok := r.byTag[domain.NormalizeTag(tag)]; ok {
		return b, nil
	}
	return nil, domain.NewConfigurationError(zerr.With(domain.ErrBackendNotFound, "language", tag))
}

// Backends implements ports.Registry.
func (r *Registry) Backends() []ports.Backend {
	out := make([]ports.Backend, 0, len(r.byID))
	for _, b := range r.byID {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor().ID < out[j].Descriptor().ID
	})
	return out
}
