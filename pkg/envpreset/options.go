package envpreset

import (
	"strings"

	"github.com/sw33tLie/jsenv/pkg/compat"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

// Module transform modes. ModulesNone leaves import/export untouched.
const (
	ModulesNone     = "false"
	ModulesCommonJS = "commonjs"
)

// Built-ins injection modes. The zero value disables polyfill selection.
const (
	BuiltInsUsage = "usage"
	BuiltInsEntry = "entry"
)

// Options configure one env preset build.
type Options struct {
	Targets            targets.Spec
	Include            []string
	Exclude            []string
	Loose              bool
	Spec               bool
	Modules            string
	UseBuiltIns        string
	Debug              bool
	ForceAllTransforms bool
	// OnPresetBuild, when set, receives the build report.
	OnPresetBuild func(Report)
}

func (o Options) modules() string {
	if o.Modules == "" {
		return ModulesCommonJS
	}
	return o.Modules
}

// DecodeOptions normalizes a loosely typed option bag as found in transform
// options. Keys the preset does not know are ignored, since the bag is shared
// with the compiler.
func DecodeOptions(m map[string]interface{}) (Options, error) {
	o := Options{Modules: ModulesCommonJS}
	var err error

	if o.Targets, err = targets.DecodeSpec(m["targets"]); err != nil {
		return o, err
	}
	if o.Include, err = nameList("include", m["include"]); err != nil {
		return o, err
	}
	if o.Exclude, err = nameList("exclude", m["exclude"]); err != nil {
		return o, err
	}
	for key, dst := range map[string]*bool{
		"loose":              &o.Loose,
		"spec":               &o.Spec,
		"debug":              &o.Debug,
		"forceAllTransforms": &o.ForceAllTransforms,
	} {
		if *dst, err = flag(key, m[key]); err != nil {
			return o, err
		}
	}

	switch v := m["modules"].(type) {
	case nil:
	case bool:
		if v {
			return o, errs.Configf(errs.KindOption, "modules", "must be false or one of amd, commonjs, systemjs, umd")
		}
		o.Modules = ModulesNone
	case string:
		if _, ok := compat.ModuleTransformations[v]; !ok && v != ModulesNone {
			return o, errs.Configf(errs.KindOption, "modules", "unknown module type %q", v)
		}
		o.Modules = v
	default:
		return o, errs.Configf(errs.KindOption, "modules", "expected string or false, got %T", v)
	}

	switch v := m["useBuiltIns"].(type) {
	case nil:
	case bool:
		if v {
			o.UseBuiltIns = BuiltInsEntry
		}
	case string:
		if v != BuiltInsUsage && v != BuiltInsEntry {
			return o, errs.Configf(errs.KindOption, "useBuiltIns", "expected false, %q or %q", BuiltInsUsage, BuiltInsEntry)
		}
		o.UseBuiltIns = v
	default:
		return o, errs.Configf(errs.KindOption, "useBuiltIns", "expected string or boolean, got %T", v)
	}

	if cb, ok := m["onPresetBuild"]; ok && cb != nil {
		fn, ok := cb.(func(Report))
		if !ok {
			return o, errs.Configf(errs.KindOption, "onPresetBuild", "expected func(envpreset.Report), got %T", cb)
		}
		o.OnPresetBuild = fn
	}
	return o, nil
}

func flag(key string, raw interface{}) (bool, error) {
	if raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, errs.Configf(errs.KindOption, key, "expected boolean, got %T", raw)
	}
	return b, nil
}

func nameList(key string, raw interface{}) ([]string, error) {
	var items []string
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		items = t
	case []interface{}:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, errs.Configf(errs.KindOption, key, "entries must be strings, got %T", item)
			}
			items = append(items, s)
		}
	default:
		return nil, errs.Configf(errs.KindOption, key, "expected a list of names, got %T", raw)
	}
	return normalizeNames(items), nil
}

// normalizeNames trims, strips the babel-plugin- prefix and removes
// duplicates, keeping first occurrences.
func normalizeNames(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimPrefix(strings.TrimSpace(s), "babel-plugin-")
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
