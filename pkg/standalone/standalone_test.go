package standalone

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sw33tLie/jsenv/pkg/compiler"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/registry"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

type fakeCompiler struct {
	calls int
	last  compiler.Request
	err   error
}

func (f *fakeCompiler) Transform(_ context.Context, req compiler.Request) (*compiler.Result, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &compiler.Result{Code: "compiled:" + req.Code}, nil
}

func newTransformer(c compiler.Compiler) *Transformer {
	return New(c, nil, targets.NewResolver("8.0.0", nil), nil)
}

func TestUnknownNamesFailBeforeCompiling(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"preset", Options{Presets: Names("es2015", "lolfail")}, `invalid preset specified in options: "lolfail"`},
		{"plugin", Options{Plugins: Names("doesnotexist")}, `invalid plugin specified in options: "doesnotexist"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompiler{}
			_, err := newTransformer(fc).Transform(context.Background(), "var a;", tt.opts)
			if !errs.IsConfiguration(err) || err.Error() != tt.want {
				t.Fatalf("unexpected error: %v", err)
			}
			if fc.calls != 0 {
				t.Fatalf("compiler must not run, ran %d times", fc.calls)
			}
		})
	}
}

func TestTransformExpandsPresets(t *testing.T) {
	fc := &fakeCompiler{}
	tr := newTransformer(fc)
	res, err := tr.Transform(context.Background(), "x", Options{
		Filename: "x.js",
		Presets: []registry.Ref{
			registry.ByName("env", map[string]interface{}{
				"targets":     map[string]interface{}{"chrome": "58"},
				"modules":     false,
				"useBuiltIns": "entry",
			}),
			registry.ByName("react", nil),
		},
		Plugins: Names("transform-class-properties"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Code != "compiled:x" || fc.calls != 1 {
		t.Fatalf("unexpected result %+v after %d calls", res, fc.calls)
	}
	if len(fc.last.Presets) != 2 || fc.last.Presets[0].Name != "env" || fc.last.Presets[1].Name != "react" {
		t.Fatalf("unexpected presets %+v", fc.last.Presets)
	}
	env := fc.last.Presets[0].Plugins
	if len(env) != 1 || env[0].Name() != registry.UseBuiltInsEntry {
		t.Fatalf("chrome 58 should only need the built-ins injection, got %d activations", len(env))
	}
	if len(res.Polyfills) == 0 {
		t.Fatalf("polyfills missing from result")
	}
	if len(fc.last.Plugins) != 1 || fc.last.Plugins[0].Name() != "transform-class-properties" {
		t.Fatalf("unexpected plugins %+v", fc.last.Plugins)
	}
}

func TestCompileErrorsPassThrough(t *testing.T) {
	ce := &errs.CompileError{Filename: "a.js", Messages: []errs.Message{{Text: "Unexpected token"}}}
	_, err := newTransformer(&fakeCompiler{err: ce}).Transform(context.Background(), "a b", Options{Presets: Names("es2015")})
	var got *errs.CompileError
	if !errors.As(err, &got) || got != ce {
		t.Fatalf("compile error should be returned unchanged, got %v", err)
	}
}

func TestInlineDescriptors(t *testing.T) {
	fc := &fakeCompiler{}
	custom := &registry.Descriptor{Name: "my-plugin", Kind: registry.KindPlugin}
	_, err := newTransformer(fc).Transform(context.Background(), "x", Options{
		Plugins: []registry.Ref{registry.Inline(custom, nil)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.last.Plugins[0].Descriptor != custom {
		t.Fatalf("inline descriptor not passed to the compiler")
	}
}

func TestDecodeOptions(t *testing.T) {
	o, err := DecodeOptions(map[string]interface{}{
		"filename":   "in.js",
		"presets":    []interface{}{"es2015", []interface{}{"env", map[string]interface{}{"loose": true}}},
		"plugins":    []string{"transform-react-jsx"},
		"sourceMaps": "inline",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Filename != "in.js" || len(o.Presets) != 2 || o.Presets[1].Options()["loose"] != true {
		t.Fatalf("unexpected options %+v", o)
	}
	if len(o.Plugins) != 1 || o.SourceMaps != compiler.SourceMapsInline {
		t.Fatalf("unexpected options %+v", o)
	}

	if _, err := DecodeOptions(map[string]interface{}{"presets": "es2015"}); !errs.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMinifyWithoutMinifier(t *testing.T) {
	_, err := newTransformer(&fakeCompiler{}).Minify(context.Background(), "x", "x.js")
	if err == nil || !strings.Contains(err.Error(), "minifier") {
		t.Fatalf("expected missing minifier error, got %v", err)
	}
}
