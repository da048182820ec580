// Package envpreset builds the "env" preset: given target environments it
// selects the transform plugins (and optionally the built-ins) those
// environments do not support natively.
package envpreset

import (
	"strings"
	"sync"

	"github.com/sw33tLie/jsenv/pkg/compat"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/logger"
	"github.com/sw33tLie/jsenv/pkg/registry"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

// PresetName is the registry name of the env preset.
const PresetName = "env"

// FeatureTargets pairs a feature with the targeted platforms lacking it.
type FeatureTargets struct {
	Name    string
	Targets targets.Resolved
}

// Report describes one build.
type Report struct {
	Targets                    targets.Resolved
	Transformations            []string
	TransformationsWithTargets []FeatureTargets
	PolyfillsWithTargets       []FeatureTargets
	ModulePlugin               string
}

// Result is the output of Build.
type Result struct {
	Activations []registry.Activation
	// Polyfills is nil unless a built-ins mode was requested.
	Polyfills []string
	Report    Report
}

// Builder builds env presets. The one-shot debug and deprecation flags live
// on the builder, so independent builders never silence each other.
type Builder struct {
	reg      *registry.Registry
	resolver *targets.Resolver
	plugins  *compat.Table
	builtIns *compat.Table
	log      logger.Logger

	mu           sync.Mutex
	debugLogged  bool
	uglifyWarned bool
}

// NewBuilder returns a builder over the embedded support tables.
func NewBuilder(reg *registry.Registry, resolver *targets.Resolver, log logger.Logger) *Builder {
	return NewBuilderWithTables(reg, resolver, compat.Plugins(), compat.BuiltIns(), log)
}

// NewBuilderWithTables returns a builder over custom support tables.
func NewBuilderWithTables(reg *registry.Registry, resolver *targets.Resolver, plugins, builtIns *compat.Table, log logger.Logger) *Builder {
	if resolver == nil {
		resolver = targets.NewResolver("", log)
	}
	return &Builder{
		reg:      reg,
		resolver: resolver,
		plugins:  plugins,
		builtIns: builtIns,
		log:      logger.OrNop(log),
	}
}

// IsRequired reports whether a feature must be compiled for t: always when t
// is empty, otherwise when some targeted platform has no support entry or
// targets a version below the supporting one.
func IsRequired(t targets.Resolved, support compat.Support) bool {
	if len(t) == 0 {
		return true
	}
	for platform, version := range t {
		floor, ok := support[platform]
		if !ok || version.Less(floor) {
			return true
		}
	}
	return false
}

// lackingTargets returns the targeted platforms that do not support the
// feature natively.
func lackingTargets(t targets.Resolved, support compat.Support) targets.Resolved {
	out := make(targets.Resolved)
	for platform, version := range t {
		floor, ok := support[platform]
		if !ok || version.Less(floor) {
			out[platform] = version
		}
	}
	return out
}

// featureSet is an insertion-ordered set of names.
type featureSet struct {
	order []string
	has   map[string]bool
}

func newFeatureSet() *featureSet {
	return &featureSet{has: make(map[string]bool)}
}

func (s *featureSet) add(name string) {
	if s.has[name] {
		return
	}
	s.has[name] = true
	s.order = append(s.order, name)
}

func (s *featureSet) contains(name string) bool { return s.has[name] }

func (s *featureSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// filterItems walks table in order, keeping required features that are not
// excluded, then adds defaults (unless excluded) and includes.
func filterItems(table *compat.Table, include []string, exclude map[string]bool, t targets.Resolved, defaults []string) *featureSet {
	set := newFeatureSet()
	for _, f := range table.Features() {
		if exclude[f.Name] {
			continue
		}
		if IsRequired(t, f.Support) {
			set.add(f.Name)
		}
	}
	for _, name := range defaults {
		if !exclude[name] {
			set.add(name)
		}
	}
	for _, name := range include {
		if !exclude[name] {
			set.add(name)
		}
	}
	return set
}

// platformDefaults returns the web built-ins unless node is the only target.
func platformDefaults(t targets.Resolved) []string {
	if len(t) == 0 {
		return compat.DefaultWebIncludes
	}
	for name := range t {
		if name != "node" {
			return compat.DefaultWebIncludes
		}
	}
	return nil
}

type partition struct {
	plugins  []string
	builtIns []string
}

// split validates names and sorts them into plugins and built-ins.
func (b *Builder) split(names []string) (partition, error) {
	var p partition
	for _, name := range names {
		switch {
		case b.builtIns.Has(name) || compat.IsDefaultWebInclude(name):
			p.builtIns = append(p.builtIns, name)
		case b.plugins.Has(name):
			p.plugins = append(p.plugins, name)
		case compat.IsBuiltInName(name):
			return p, &errs.ConfigurationError{Kind: errs.KindBuiltIn, Name: name}
		default:
			if _, ok := b.reg.Get(registry.KindPlugin, name); !ok {
				return p, &errs.ConfigurationError{Kind: errs.KindPlugin, Name: name}
			}
			p.plugins = append(p.plugins, name)
		}
	}
	return p, nil
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Build computes the plugin activations for opts.
func (b *Builder) Build(opts Options) (*Result, error) {
	modules := opts.modules()
	modulePlugin := ""
	if modules != ModulesNone {
		mp, ok := compat.ModuleTransformations[modules]
		if !ok {
			return nil, errs.Configf(errs.KindOption, "modules", "unknown module type %q", modules)
		}
		modulePlugin = mp
	}
	switch opts.UseBuiltIns {
	case "", BuiltInsUsage, BuiltInsEntry:
	default:
		return nil, errs.Configf(errs.KindOption, "useBuiltIns", "unknown mode %q", opts.UseBuiltIns)
	}

	if opts.Targets.Uglify {
		b.warnUglify()
	}
	resolved, err := b.resolver.Resolve(opts.Targets)
	if err != nil {
		return nil, err
	}

	include, err := b.split(normalizeNames(opts.Include))
	if err != nil {
		return nil, err
	}
	exclude, err := b.split(normalizeNames(opts.Exclude))
	if err != nil {
		return nil, err
	}
	excludePlugins := toSet(exclude.plugins)
	excludeBuiltIns := toSet(exclude.builtIns)
	for _, name := range append(append([]string{}, include.plugins...), include.builtIns...) {
		if excludePlugins[name] || excludeBuiltIns[name] {
			b.log.Warnf("%q is both included and excluded; excluding it", name)
		}
	}

	transformTargets := resolved
	if opts.ForceAllTransforms || opts.Targets.Uglify {
		transformTargets = targets.Resolved{}
	}
	transformations := filterItems(b.plugins, include.plugins, excludePlugins, transformTargets, nil)

	var polyfills *featureSet
	if opts.UseBuiltIns != "" {
		polyfills = filterItems(b.builtIns, include.builtIns, excludeBuiltIns, resolved, platformDefaults(resolved))
	}

	res := &Result{}
	if modulePlugin != "" {
		a, err := b.activate(modulePlugin, map[string]interface{}{"loose": opts.Loose})
		if err != nil {
			return nil, err
		}
		res.Activations = append(res.Activations, a)
	}
	for _, name := range transformations.order {
		a, err := b.activate(name, map[string]interface{}{"loose": opts.Loose, "spec": opts.Spec})
		if err != nil {
			return nil, err
		}
		res.Activations = append(res.Activations, a)
	}
	regenerator := transformations.contains("transform-regenerator")

	if b.shouldLogDebug(opts.Debug) {
		b.logDebug(resolved, modules, transformations.order, opts.UseBuiltIns)
	}

	if polyfills != nil {
		res.Polyfills = polyfills.list()
		name := registry.UseBuiltInsEntry
		if opts.UseBuiltIns == BuiltInsUsage {
			name = registry.UseBuiltInsUsage
		}
		a, err := b.activate(name, map[string]interface{}{
			"debug":       opts.Debug,
			"polyfills":   res.Polyfills,
			"regenerator": regenerator,
			"onDebug": func(used []string) {
				for _, p := range used {
					b.logFeature(p, resolved, b.builtIns)
				}
			},
		})
		if err != nil {
			return nil, err
		}
		res.Activations = append(res.Activations, a)
	}

	res.Report = Report{
		Targets:         resolved,
		Transformations: transformations.list(),
		ModulePlugin:    modulePlugin,
	}
	for _, name := range transformations.order {
		support, _ := b.plugins.Lookup(name)
		res.Report.TransformationsWithTargets = append(res.Report.TransformationsWithTargets,
			FeatureTargets{Name: name, Targets: lackingTargets(resolved, support)})
	}
	if polyfills != nil {
		for _, name := range polyfills.order {
			support, _ := b.builtIns.Lookup(name)
			res.Report.PolyfillsWithTargets = append(res.Report.PolyfillsWithTargets,
				FeatureTargets{Name: name, Targets: lackingTargets(resolved, support)})
		}
	}
	if opts.OnPresetBuild != nil {
		opts.OnPresetBuild(res.Report)
	}
	return res, nil
}

func (b *Builder) activate(name string, opts map[string]interface{}) (registry.Activation, error) {
	return b.reg.Lookup(registry.KindPlugin, registry.ByName(name, opts))
}

func (b *Builder) warnUglify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uglifyWarned {
		return
	}
	b.uglifyWarned = true
	b.log.Warnf("The uglify target has been deprecated. Set the top level option `forceAllTransforms: true` instead.")
}

func (b *Builder) shouldLogDebug(debug bool) bool {
	if !debug {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.debugLogged {
		return false
	}
	b.debugLogged = true
	return true
}

func (b *Builder) logDebug(resolved targets.Resolved, modules string, transformations []string, useBuiltIns string) {
	b.log.Infof("env preset: debug option")
	b.log.Infof("Using targets: %s", resolved)
	b.log.Infof("Using modules transform: %s", modules)
	b.log.Infof("Using plugins:")
	for _, name := range transformations {
		b.logFeature(name, resolved, b.plugins)
	}
	if useBuiltIns == "" {
		b.log.Infof("Using polyfills: No polyfills were added, since the `useBuiltIns` option was not set.")
	} else {
		b.log.Infof("Using polyfills with `%s` option:", useBuiltIns)
	}
}

// logFeature prints a feature with the minimum supporting version of every
// targeted platform that lacks it.
func (b *Builder) logFeature(name string, resolved targets.Resolved, table *compat.Table) {
	support, _ := table.Lookup(name)
	lacking := lackingTargets(resolved, support)
	if len(lacking) == 0 {
		b.log.Infof("  %s", name)
		return
	}
	parts := make([]string, 0, len(lacking))
	for _, platform := range lacking.Names() {
		if floor, ok := support[platform]; ok {
			parts = append(parts, platform+" < "+floor.String())
		} else {
			parts = append(parts, platform)
		}
	}
	b.log.Infof("  %s {%s}", name, strings.Join(parts, ", "))
}
