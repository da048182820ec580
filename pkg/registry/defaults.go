package registry

import (
	"fmt"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/logger"
)

// Built-ins injection plugins, selected by the env preset's useBuiltIns mode.
const (
	UseBuiltInsUsage = "use-built-ins-usage"
	UseBuiltInsEntry = "use-built-ins-entry"
)

// DefaultPlugins is the bundled plugin list.
var DefaultPlugins = []string{
	"check-es2015-constants",
	"external-helpers-2",
	"syntax-async-functions",
	"syntax-async-generators",
	"syntax-class-constructor-call",
	"syntax-class-properties",
	"syntax-decorators",
	"syntax-do-expressions",
	"syntax-exponentiation-operator",
	"syntax-export-extensions",
	"syntax-flow",
	"syntax-function-bind",
	"syntax-jsx",
	"syntax-object-rest-spread",
	"syntax-trailing-function-commas",
	"transform-async-functions",
	"transform-async-to-generator",
	"transform-async-to-module-method",
	"transform-class-constructor-call",
	"transform-class-properties",
	"transform-decorators",
	"transform-decorators-legacy",
	"transform-do-expressions",
	"transform-es2015-arrow-functions",
	"transform-es2015-block-scoped-functions",
	"transform-es2015-block-scoping",
	"transform-es2015-classes",
	"transform-es2015-computed-properties",
	"transform-es2015-destructuring",
	"transform-es2015-duplicate-keys",
	"transform-es2015-for-of",
	"transform-es2015-function-name",
	"transform-es2015-instanceof",
	"transform-es2015-literals",
	"transform-es2015-modules-amd",
	"transform-es2015-modules-commonjs",
	"transform-es2015-modules-systemjs",
	"transform-es2015-modules-umd",
	"transform-es2015-object-super",
	"transform-es2015-parameters",
	"transform-es2015-shorthand-properties",
	"transform-es2015-spread",
	"transform-es2015-sticky-regex",
	"transform-es2015-template-literals",
	"transform-es2015-typeof-symbol",
	"transform-es2015-unicode-regex",
	"transform-es3-member-expression-literals",
	"transform-es3-property-literals",
	"transform-es5-property-mutators",
	"transform-eval",
	"transform-exponentiation-operator",
	"transform-export-extensions",
	"transform-flow-strip-types",
	"transform-function-bind",
	"transform-inline-environment-variables",
	"transform-jscript",
	"transform-member-expression-literals",
	"transform-merge-sibling-variables",
	"transform-minify-booleans",
	"transform-node-env-inline",
	"transform-object-assign",
	"transform-object-rest-spread",
	"transform-object-set-prototype-of-to-assign",
	"transform-property-literals",
	"transform-proto-to-assign",
	"transform-react-constant-elements",
	"transform-react-display-name",
	"transform-react-inline-elements",
	"transform-react-jsx",
	"transform-react-jsx-compat",
	"transform-react-jsx-source",
	"transform-regenerator",
	"transform-remove-console",
	"transform-remove-debugger",
	"transform-runtime",
	"transform-simplify-comparison-operators",
	"transform-strict-mode",
	"transform-undefined-to-void",
	"undeclared-variables-check",
	UseBuiltInsUsage,
	UseBuiltInsEntry,
}

// es2015Order is the es2015 preset's plugin order, without the module
// transform.
var es2015Order = []string{
	"transform-es2015-template-literals",
	"transform-es2015-literals",
	"transform-es2015-function-name",
	"transform-es2015-arrow-functions",
	"transform-es2015-block-scoped-functions",
	"transform-es2015-classes",
	"transform-es2015-object-super",
	"transform-es2015-shorthand-properties",
	"transform-es2015-duplicate-keys",
	"transform-es2015-computed-properties",
	"transform-es2015-for-of",
	"transform-es2015-sticky-regex",
	"transform-es2015-unicode-regex",
	"check-es2015-constants",
	"transform-es2015-spread",
	"transform-es2015-parameters",
	"transform-es2015-destructuring",
	"transform-es2015-block-scoping",
	"transform-es2015-typeof-symbol",
}

// es2015Loose lists the es2015 plugins that honor loose mode.
var es2015Loose = map[string]bool{
	"transform-es2015-template-literals":   true,
	"transform-es2015-classes":             true,
	"transform-es2015-computed-properties": true,
	"transform-es2015-for-of":              true,
	"transform-es2015-spread":              true,
	"transform-es2015-destructuring":       true,
	"transform-es2015-modules-commonjs":    true,
	"transform-es2015-modules-amd":         true,
	"transform-es2015-modules-umd":         true,
	"transform-es2015-modules-systemjs":    true,
}

var es2015Modules = map[string]string{
	"commonjs": "transform-es2015-modules-commonjs",
	"amd":      "transform-es2015-modules-amd",
	"umd":      "transform-es2015-modules-umd",
	"systemjs": "transform-es2015-modules-systemjs",
}

var stages = [][]string{
	// stage-3
	{
		"syntax-trailing-function-commas",
		"transform-async-to-generator",
		"transform-exponentiation-operator",
		"transform-object-rest-spread",
		"syntax-async-generators",
	},
	// stage-2
	{"transform-class-properties", "syntax-decorators"},
	// stage-1
	{"transform-class-constructor-call", "transform-export-extensions"},
	// stage-0
	{"transform-do-expressions", "transform-function-bind"},
}

// Default returns a registry holding the bundled plugins and presets.
func Default(log logger.Logger) *Registry {
	r := New(log)
	for _, name := range DefaultPlugins {
		r.RegisterPlugin(name)
	}

	r.RegisterPreset("es2015", r.es2015)
	r.Register("es2015-no-commonjs", r.staticES2015("es2015-no-commonjs", false))
	r.Register("es2015-loose", r.staticES2015("es2015-loose", true))

	r.Register("react", &Descriptor{Name: "react", Kind: KindPreset, Plugins: []Activation{
		r.MustActivate("syntax-flow", nil),
		r.MustActivate("transform-flow-strip-types", nil),
		r.MustActivate("syntax-jsx", nil),
		r.MustActivate("transform-react-jsx", nil),
		r.MustActivate("transform-react-display-name", nil),
	}})

	var acc []Activation
	for i, group := range stages {
		for _, name := range group {
			acc = append(acc, r.MustActivate(name, nil))
		}
		name := fmt.Sprintf("stage-%d", 3-i)
		plugins := make([]Activation, len(acc))
		copy(plugins, acc)
		r.Register(name, &Descriptor{Name: name, Kind: KindPreset, Plugins: plugins})
	}
	return r
}

func regeneratorOptions() map[string]interface{} {
	return map[string]interface{}{"async": false, "asyncGenerators": false}
}

func (r *Registry) staticES2015(name string, loose bool) *Descriptor {
	plugins := make([]Activation, 0, len(es2015Order)+1)
	for _, p := range es2015Order {
		var opts map[string]interface{}
		if loose && es2015Loose[p] {
			opts = map[string]interface{}{"loose": true}
		}
		plugins = append(plugins, r.MustActivate(p, opts))
	}
	plugins = append(plugins, r.MustActivate("transform-regenerator", regeneratorOptions()))
	return &Descriptor{Name: name, Kind: KindPreset, Plugins: plugins}
}

// es2015 builds the es2015 preset honoring the loose, spec and modules
// options. modules defaults to commonjs and accepts false to drop the module
// transform.
func (r *Registry) es2015(opts map[string]interface{}) ([]Activation, error) {
	loose, err := boolOption(opts, "loose")
	if err != nil {
		return nil, err
	}
	spec, err := boolOption(opts, "spec")
	if err != nil {
		return nil, err
	}
	module := "transform-es2015-modules-commonjs"
	if raw, ok := opts["modules"]; ok {
		switch v := raw.(type) {
		case bool:
			if v {
				return nil, errs.Configf(errs.KindOption, "modules", "must be false or one of amd, commonjs, systemjs, umd")
			}
			module = ""
		case string:
			m, ok := es2015Modules[v]
			if !ok {
				return nil, errs.Configf(errs.KindOption, "modules", "unknown module type %q", v)
			}
			module = m
		default:
			return nil, errs.Configf(errs.KindOption, "modules", "expected string or false, got %T", raw)
		}
	}

	order := es2015Order
	if module != "" {
		order = append(append([]string{}, es2015Order...), module)
	}
	out := make([]Activation, 0, len(order)+1)
	for _, p := range order {
		var o map[string]interface{}
		if loose && es2015Loose[p] {
			o = map[string]interface{}{"loose": true}
		}
		if spec && (p == "transform-es2015-template-literals" || p == "transform-es2015-arrow-functions") {
			if o == nil {
				o = map[string]interface{}{}
			}
			o["spec"] = true
		}
		out = append(out, r.MustActivate(p, o))
	}
	out = append(out, r.MustActivate("transform-regenerator", regeneratorOptions()))
	return out, nil
}

func boolOption(opts map[string]interface{}, key string) (bool, error) {
	raw, ok := opts[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, errs.Configf(errs.KindOption, key, "expected boolean, got %T", raw)
	}
	return b, nil
}
