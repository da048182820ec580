package envpreset

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sw33tLie/jsenv/pkg/compat"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/registry"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
	warns []string
}

func (l *recordingLogger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errorf(string, ...interface{}) {}
func (l *recordingLogger) Debugf(string, ...interface{}) {}

func (l *recordingLogger) count(list []string, substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range list {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

func newTestBuilder(log *recordingLogger) *Builder {
	return NewBuilder(registry.Default(nil), targets.NewResolver("8.9.0", nil), log)
}

func platforms(kv ...string) targets.Spec {
	s := targets.Spec{Platforms: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		s.Platforms[kv[i]] = kv[i+1]
	}
	return s
}

func names(acts []registry.Activation) []string {
	out := make([]string, len(acts))
	for i, a := range acts {
		out[i] = a.Name()
	}
	return out
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func TestIsRequired(t *testing.T) {
	support := compat.Support{"chrome": compat.MustVersion("49"), "firefox": compat.MustVersion("45")}
	tests := []struct {
		name    string
		targets targets.Resolved
		want    bool
	}{
		{"empty targets", targets.Resolved{}, true},
		{"supported", targets.Resolved{"chrome": compat.MustVersion("49")}, false},
		{"older version", targets.Resolved{"chrome": compat.MustVersion("48")}, true},
		{"platform without entry", targets.Resolved{"ie": compat.MustVersion("11")}, true},
		{"one of many lacking", targets.Resolved{"chrome": compat.MustVersion("60"), "firefox": compat.MustVersion("44")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRequired(tt.targets, support); got != tt.want {
				t.Fatalf("IsRequired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChrome58NeedsNoTransforms(t *testing.T) {
	res, err := newTestBuilder(&recordingLogger{}).Build(Options{
		Targets: platforms("chrome", "58"),
		Modules: ModulesNone,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Activations) != 0 || len(res.Report.Transformations) != 0 {
		t.Fatalf("expected no transforms, got %v", names(res.Activations))
	}
	if res.Polyfills != nil {
		t.Fatalf("polyfills should be nil without useBuiltIns")
	}
}

func TestFullySupportedFeaturesAreNeverSelected(t *testing.T) {
	table := compat.Plugins()
	res, err := newTestBuilder(&recordingLogger{}).Build(Options{
		Targets: platforms("chrome", "55", "firefox", "50"),
		Modules: ModulesNone,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chrome, firefox := compat.MustVersion("55"), compat.MustVersion("50")
	for _, f := range table.Features() {
		c, okC := f.Support["chrome"]
		ff, okF := f.Support["firefox"]
		supported := okC && okF && !chrome.Less(c) && !firefox.Less(ff)
		if supported == contains(res.Report.Transformations, f.Name) {
			t.Fatalf("%s: supported=%v but selected=%v", f.Name, supported, !supported)
		}
	}
}

func TestEmptyTargetsRequireEverything(t *testing.T) {
	res, err := newTestBuilder(&recordingLogger{}).Build(Options{Modules: ModulesNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := compat.Plugins().Names()
	got := res.Report.Transformations
	if len(got) != len(want) {
		t.Fatalf("expected %d transforms, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestIE10RequiresFeaturesWithoutIEEntry(t *testing.T) {
	res, err := newTestBuilder(&recordingLogger{}).Build(Options{Targets: platforms("ie", "10"), Modules: ModulesNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range compat.Plugins().Features() {
		if _, ok := f.Support["ie"]; !ok && !contains(res.Report.Transformations, f.Name) {
			t.Fatalf("%s has no ie entry and must be required", f.Name)
		}
	}
	if !contains(res.Report.Transformations, "transform-es2015-block-scoped-functions") {
		t.Fatalf("ie 10 is below the ie 11 minimum for block-scoped functions")
	}
}

func TestExcludeWinsOverInclude(t *testing.T) {
	log := &recordingLogger{}
	res, err := newTestBuilder(log).Build(Options{
		Targets: targets.Spec{},
		Include: []string{"transform-es2015-classes"},
		Exclude: []string{"babel-plugin-transform-es2015-classes"},
		Modules: ModulesNone,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contains(names(res.Activations), "transform-es2015-classes") {
		t.Fatalf("excluded plugin was activated")
	}
	if log.count(log.warns, "transform-es2015-classes") != 1 {
		t.Fatalf("expected one overlap warning, got %v", log.warns)
	}
}

func TestIncludeAppendsAfterTableOrder(t *testing.T) {
	res, err := newTestBuilder(&recordingLogger{}).Build(Options{
		Targets: platforms("chrome", "58"),
		Include: []string{"transform-class-properties", "transform-es2015-arrow-functions"},
		Modules: ModulesNone,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := names(res.Activations)
	if len(got) != 2 || got[0] != "transform-class-properties" || got[1] != "transform-es2015-arrow-functions" {
		t.Fatalf("unexpected activations %v", got)
	}
}

func TestUnknownIncludeIsConfigurationError(t *testing.T) {
	b := newTestBuilder(&recordingLogger{})
	for _, name := range []string{"transform-nonsense", "es6.nonsense"} {
		_, err := b.Build(Options{Include: []string{name}})
		if !errs.IsConfiguration(err) || !strings.Contains(err.Error(), name) {
			t.Fatalf("expected configuration error naming %s, got %v", name, err)
		}
	}
}

func TestActivationOrder(t *testing.T) {
	res, err := newTestBuilder(&recordingLogger{}).Build(Options{
		Targets:     platforms("ie", "11"),
		Loose:       true,
		UseBuiltIns: BuiltInsUsage,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acts := res.Activations
	if len(acts) < 3 {
		t.Fatalf("expected module, transforms and built-ins, got %v", names(acts))
	}
	first, last := acts[0], acts[len(acts)-1]
	if first.Name() != "transform-es2015-modules-commonjs" || first.Options["loose"] != true {
		t.Fatalf("module transform must come first with loose, got %s %v", first.Name(), first.Options)
	}
	if _, hasSpec := first.Options["spec"]; hasSpec {
		t.Fatalf("module transform should not receive spec")
	}
	if acts[1].Options["loose"] != true || acts[1].Options["spec"] != false {
		t.Fatalf("transform options not propagated: %v", acts[1].Options)
	}
	if last.Name() != registry.UseBuiltInsUsage {
		t.Fatalf("built-ins injection must come last, got %s", last.Name())
	}
	polyfills, _ := last.Options["polyfills"].([]string)
	if !contains(polyfills, "web.timers") || !contains(polyfills, "es6.promise") {
		t.Fatalf("unexpected polyfills %v", polyfills)
	}
	if last.Options["regenerator"] != true {
		t.Fatalf("regenerator flag should be set for ie 11")
	}
	if _, ok := last.Options["onDebug"].(func([]string)); !ok {
		t.Fatalf("onDebug callback missing")
	}
}

func TestNodeOnlyTargetsSkipWebDefaults(t *testing.T) {
	b := newTestBuilder(&recordingLogger{})
	res, err := b.Build(Options{Targets: platforms("node", "current"), UseBuiltIns: BuiltInsEntry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range compat.DefaultWebIncludes {
		if contains(res.Polyfills, name) {
			t.Fatalf("%s should not be added for node-only targets", name)
		}
	}
	if names(res.Activations)[len(res.Activations)-1] != registry.UseBuiltInsEntry {
		t.Fatalf("expected entry injection last")
	}

	res, err = b.Build(Options{Targets: platforms("node", "6", "chrome", "58"), UseBuiltIns: BuiltInsEntry, Exclude: []string{"web.immediate"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(res.Polyfills, "web.timers") || contains(res.Polyfills, "web.immediate") {
		t.Fatalf("unexpected web defaults %v", res.Polyfills)
	}
}

func TestForceAllTransformsIgnoresTargets(t *testing.T) {
	res, err := newTestBuilder(&recordingLogger{}).Build(Options{
		Targets:            platforms("chrome", "58"),
		ForceAllTransforms: true,
		Modules:            ModulesNone,
		UseBuiltIns:        BuiltInsEntry,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Report.Transformations) != compat.Plugins().Len() {
		t.Fatalf("expected every transform, got %d", len(res.Report.Transformations))
	}
	if contains(res.Polyfills, "es6.promise") {
		t.Fatalf("built-ins still follow the resolved targets")
	}
}

func TestUglifyDeprecationOncePerBuilder(t *testing.T) {
	log := &recordingLogger{}
	b := newTestBuilder(log)
	spec := platforms("chrome", "58")
	spec.Uglify = true
	for i := 0; i < 3; i++ {
		res, err := b.Build(Options{Targets: spec, Modules: ModulesNone})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Report.Transformations) != compat.Plugins().Len() {
			t.Fatalf("uglify should force every transform")
		}
	}
	if n := log.count(log.warns, "uglify target has been deprecated"); n != 1 {
		t.Fatalf("expected one deprecation warning, got %d", n)
	}

	other := &recordingLogger{}
	if _, err := newTestBuilder(other).Build(Options{Targets: spec}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := other.count(other.warns, "uglify target has been deprecated"); n != 1 {
		t.Fatalf("independent builder should warn on its own, got %d", n)
	}
}

func TestDebugLoggedOncePerBuilder(t *testing.T) {
	log := &recordingLogger{}
	b := newTestBuilder(log)
	for i := 0; i < 2; i++ {
		if _, err := b.Build(Options{Targets: platforms("ie", "10"), Debug: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := log.count(log.infos, "debug option"); n != 1 {
		t.Fatalf("expected debug header once, got %d", n)
	}
	if log.count(log.infos, "Using modules transform: commonjs") != 1 {
		t.Fatalf("module mode missing from debug output: %v", log.infos)
	}
	if log.count(log.infos, "transform-es2015-arrow-functions {ie}") != 1 {
		t.Fatalf("per-feature breakdown missing: %v", log.infos)
	}
}

func TestOnPresetBuildReport(t *testing.T) {
	var got Report
	called := 0
	_, err := newTestBuilder(&recordingLogger{}).Build(Options{
		Targets:       platforms("chrome", "50", "ie", "11"),
		UseBuiltIns:   BuiltInsUsage,
		OnPresetBuild: func(r Report) { got = r; called++ },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != 1 {
		t.Fatalf("expected one callback, got %d", called)
	}
	if got.ModulePlugin != "transform-es2015-modules-commonjs" {
		t.Fatalf("unexpected module plugin %q", got.ModulePlugin)
	}
	if len(got.TransformationsWithTargets) != len(got.Transformations) || len(got.PolyfillsWithTargets) == 0 {
		t.Fatalf("incomplete report %+v", got)
	}
	for _, ft := range got.TransformationsWithTargets {
		if ft.Name == "transform-es2015-block-scoped-functions" {
			if _, ok := ft.Targets["ie"]; ok {
				t.Fatalf("ie 11 supports block-scoped functions: %v", ft.Targets)
			}
		}
		if len(ft.Targets) == 0 {
			t.Fatalf("%s selected without a lacking platform", ft.Name)
		}
	}
}

func TestRegisterExpandsThroughRegistry(t *testing.T) {
	reg := registry.Default(nil)
	Register(reg, NewBuilder(reg, nil, nil))

	act, err := reg.Lookup(registry.KindPreset, registry.ByName("env", map[string]interface{}{
		"targets": map[string]interface{}{"chrome": "58"},
		"modules": false,
		"include": []interface{}{"transform-es2015-spread"},
	}))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	plugins, err := act.Descriptor.Expand(act.Options)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got := names(plugins); len(got) != 1 || got[0] != "transform-es2015-spread" {
		t.Fatalf("unexpected plugins %v", got)
	}

	_, err = act.Descriptor.Expand(map[string]interface{}{"modules": "esm"})
	if !errs.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDecodeOptions(t *testing.T) {
	o, err := DecodeOptions(map[string]interface{}{
		"include":     []interface{}{"babel-plugin-transform-es2015-spread", "transform-es2015-spread"},
		"useBuiltIns": true,
		"modules":     "umd",
		"loose":       true,
		"presets":     []interface{}{"react"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(o.Include) != 1 || o.Include[0] != "transform-es2015-spread" {
		t.Fatalf("include not normalized: %v", o.Include)
	}
	if o.UseBuiltIns != BuiltInsEntry || o.Modules != "umd" || !o.Loose {
		t.Fatalf("unexpected options %+v", o)
	}

	bad := []map[string]interface{}{
		{"loose": "yes"},
		{"modules": true},
		{"useBuiltIns": "sometimes"},
		{"include": "transform-es2015-spread"},
		{"onPresetBuild": "nope"},
	}
	for i, m := range bad {
		if _, err := DecodeOptions(m); !errs.IsConfiguration(err) {
			t.Fatalf("case %d: expected configuration error, got %v", i, err)
		}
	}
}
