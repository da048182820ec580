// Package registry maps preset and plugin names to descriptors the compiler
// engines understand, and resolves user references (names, name+options
// tuples, or inline descriptors) into activations.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/logger"
)

// Kind separates the plugin and preset namespaces.
type Kind int

const (
	KindPlugin Kind = iota
	KindPreset
)

func (k Kind) String() string {
	if k == KindPreset {
		return "preset"
	}
	return "plugin"
}

func (k Kind) errKind() errs.Kind {
	if k == KindPreset {
		return errs.KindPreset
	}
	return errs.KindPlugin
}

// BuildFunc expands a dynamic preset for one set of options.
type BuildFunc func(opts map[string]interface{}) ([]Activation, error)

// Descriptor is a plugin or preset. Name is the identifier handed to the
// compiler engine. A preset either lists static Plugins or computes them with
// Build.
type Descriptor struct {
	Name    string
	Kind    Kind
	Plugins []Activation
	Build   BuildFunc
}

// Expand returns the plugin activations of a preset for opts. Plugins expand
// to nothing.
func (d *Descriptor) Expand(opts map[string]interface{}) ([]Activation, error) {
	if d.Kind != KindPreset {
		return nil, nil
	}
	if d.Build != nil {
		return d.Build(opts)
	}
	out := make([]Activation, len(d.Plugins))
	copy(out, d.Plugins)
	return out, nil
}

// Activation is a descriptor plus the options it runs with.
type Activation struct {
	Descriptor *Descriptor
	Options    map[string]interface{}
}

// Name is a shortcut for a.Descriptor.Name.
func (a Activation) Name() string {
	if a.Descriptor == nil {
		return ""
	}
	return a.Descriptor.Name
}

// Registry is safe for concurrent use, but registration is expected to finish
// before transforms start.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Descriptor
	presets map[string]*Descriptor
	log     logger.Logger
}

// New returns an empty registry.
func New(log logger.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]*Descriptor),
		presets: make(map[string]*Descriptor),
		log:     logger.OrNop(log),
	}
}

func (r *Registry) table(kind Kind) map[string]*Descriptor {
	if kind == KindPreset {
		return r.presets
	}
	return r.plugins
}

// Register stores d under name in the namespace of d.Kind. An existing entry
// is replaced and a warning is logged.
func (r *Registry) Register(name string, d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(d.Kind)
	if _, exists := t[name]; exists {
		r.log.Warnf("%s %q is already registered, overwriting", d.Kind, name)
	}
	t[name] = d
}

// RegisterPlugin registers a plugin whose engine identifier equals name.
func (r *Registry) RegisterPlugin(name string) *Descriptor {
	d := &Descriptor{Name: name, Kind: KindPlugin}
	r.Register(name, d)
	return d
}

// RegisterPreset registers a preset built by build.
func (r *Registry) RegisterPreset(name string, build BuildFunc) *Descriptor {
	d := &Descriptor{Name: name, Kind: KindPreset, Build: build}
	r.Register(name, d)
	return d
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(kind Kind, name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.table(kind)[name]
	return d, ok
}

// Names lists registered names of one kind, sorted.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := r.table(kind)
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves ref. Inline references pass through untouched; named ones
// must be registered, otherwise a *errs.ConfigurationError names the
// offending identifier.
func (r *Registry) Lookup(kind Kind, ref Ref) (Activation, error) {
	if ref.inline != nil {
		return Activation{Descriptor: ref.inline, Options: ref.options}, nil
	}
	d, ok := r.Get(kind, ref.name)
	if !ok {
		return Activation{}, &errs.ConfigurationError{Kind: kind.errKind(), Name: ref.name}
	}
	if d.Kind != kind {
		return Activation{}, errs.Configf(kind.errKind(), ref.name, "registered as a %s", d.Kind)
	}
	return Activation{Descriptor: d, Options: ref.options}, nil
}

// LookupAll resolves every ref, stopping at the first failure.
func (r *Registry) LookupAll(kind Kind, refs []Ref) ([]Activation, error) {
	out := make([]Activation, 0, len(refs))
	for _, ref := range refs {
		a, err := r.Lookup(kind, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// MustActivate builds a static activation for a registered plugin. It is meant
// for preset tables assembled at startup.
func (r *Registry) MustActivate(name string, opts map[string]interface{}) Activation {
	d, ok := r.Get(KindPlugin, name)
	if !ok {
		panic(fmt.Sprintf("registry: plugin %q not registered", name))
	}
	return Activation{Descriptor: d, Options: opts}
}
