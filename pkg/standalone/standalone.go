// Package standalone is the named-registry front end of the compiler: option
// bags refer to presets and plugins by name, and are resolved against a
// registry before the compiler sees them.
package standalone

import (
	"context"

	"github.com/sw33tLie/jsenv/pkg/compiler"
	"github.com/sw33tLie/jsenv/pkg/envpreset"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/logger"
	"github.com/sw33tLie/jsenv/pkg/registry"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

// Options configure one transform.
type Options struct {
	Filename   string
	Presets    []registry.Ref
	Plugins    []registry.Ref
	SourceMaps compiler.SourceMaps
}

// DecodeOptions reads the JSON shape of transform options: presets and
// plugins as lists of names or [name, options] pairs, plus filename and
// sourceMaps.
func DecodeOptions(m map[string]interface{}) (Options, error) {
	var o Options
	if f, ok := m["filename"]; ok && f != nil {
		s, ok := f.(string)
		if !ok {
			return o, errs.Configf(errs.KindOption, "filename", "expected string, got %T", f)
		}
		o.Filename = s
	}
	var err error
	if o.Presets, err = refList("presets", m["presets"]); err != nil {
		return o, err
	}
	if o.Plugins, err = refList("plugins", m["plugins"]); err != nil {
		return o, err
	}
	if o.SourceMaps, err = compiler.ParseSourceMaps(m["sourceMaps"]); err != nil {
		return o, err
	}
	return o, nil
}

func refList(key string, raw interface{}) ([]registry.Ref, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return registry.ParseRefs(t)
	case []string:
		out := make([]registry.Ref, len(t))
		for i, name := range t {
			out[i] = registry.ByName(name, nil)
		}
		return out, nil
	default:
		return nil, errs.Configf(errs.KindOption, key, "expected a list, got %T", raw)
	}
}

// Names turns a list of names into references without options.
func Names(names ...string) []registry.Ref {
	out := make([]registry.Ref, len(names))
	for i, n := range names {
		out[i] = registry.ByName(n, nil)
	}
	return out
}

// Transformer resolves options and drives a compiler.
type Transformer struct {
	Registry *registry.Registry
	Compiler compiler.Compiler
	Minifier compiler.Minifier
	Log      logger.Logger
}

// New returns a transformer over the default registry with the env preset
// installed.
func New(c compiler.Compiler, m compiler.Minifier, resolver *targets.Resolver, log logger.Logger) *Transformer {
	reg := registry.Default(log)
	envpreset.Register(reg, envpreset.NewBuilder(reg, resolver, log))
	return &Transformer{Registry: reg, Compiler: c, Minifier: m, Log: log}
}

// Prepare resolves every preset and plugin reference and expands presets. It
// fails on the first unknown name, before any compiler work.
func (t *Transformer) Prepare(code string, opts Options) (compiler.Request, error) {
	req := compiler.Request{Code: code, Filename: opts.Filename, SourceMaps: opts.SourceMaps}

	presets, err := t.Registry.LookupAll(registry.KindPreset, opts.Presets)
	if err != nil {
		return req, err
	}
	plugins, err := t.Registry.LookupAll(registry.KindPlugin, opts.Plugins)
	if err != nil {
		return req, err
	}

	for _, p := range presets {
		expanded, err := p.Descriptor.Expand(p.Options)
		if err != nil {
			return req, err
		}
		req.Presets = append(req.Presets, compiler.Preset{
			Name:    p.Name(),
			Options: p.Options,
			Plugins: expanded,
		})
	}
	req.Plugins = plugins
	return req, nil
}

// Transform compiles code. Compile errors from the engine are returned as is.
func (t *Transformer) Transform(ctx context.Context, code string, opts Options) (*compiler.Result, error) {
	req, err := t.Prepare(code, opts)
	if err != nil {
		return nil, err
	}
	res, err := t.Compiler.Transform(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Polyfills = collectPolyfills(req)
	return res, nil
}

// Minify compresses code with the configured minifier.
func (t *Transformer) Minify(ctx context.Context, code, filename string) (*compiler.Result, error) {
	if t.Minifier == nil {
		return nil, errs.Configf(errs.KindOption, "minifier", "no minifier configured")
	}
	return t.Minifier.Minify(ctx, code, filename)
}

// collectPolyfills reads the built-ins selected by an env preset and reports
// them through its debug callback.
func collectPolyfills(req compiler.Request) []string {
	var out []string
	for _, a := range req.Activations() {
		if a.Name() != registry.UseBuiltInsUsage && a.Name() != registry.UseBuiltInsEntry {
			continue
		}
		polyfills, _ := a.Options["polyfills"].([]string)
		out = append(out, polyfills...)
		if debug, _ := a.Options["debug"].(bool); debug {
			if onDebug, ok := a.Options["onDebug"].(func([]string)); ok {
				onDebug(polyfills)
			}
		}
	}
	return out
}
