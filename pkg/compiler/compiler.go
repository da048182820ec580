// Package compiler defines the contract with the external JavaScript compiler
// and provides two engines: esbuild, linked in as a Go library, and a
// babel-standalone bundle hosted in a goja runtime.
package compiler

import (
	"context"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/registry"
)

// SourceMaps selects source map output.
type SourceMaps string

const (
	SourceMapsNone     SourceMaps = ""
	SourceMapsInline   SourceMaps = "inline"
	SourceMapsExternal SourceMaps = "external"
	SourceMapsBoth     SourceMaps = "both"
)

// ParseSourceMaps accepts the values used in transform options: "", "inline",
// "external", "both", true (external) and false.
func ParseSourceMaps(v interface{}) (SourceMaps, error) {
	switch t := v.(type) {
	case nil:
		return SourceMapsNone, nil
	case bool:
		if t {
			return SourceMapsExternal, nil
		}
		return SourceMapsNone, nil
	case string:
		switch SourceMaps(t) {
		case SourceMapsNone, SourceMapsInline, SourceMapsExternal, SourceMapsBoth:
			return SourceMaps(t), nil
		case "false":
			return SourceMapsNone, nil
		case "true":
			return SourceMapsExternal, nil
		}
	}
	return SourceMapsNone, errs.Configf(errs.KindOption, "sourceMaps", "unsupported value %v", v)
}

// Preset is a resolved preset with its expanded plugin list.
type Preset struct {
	Name    string
	Options map[string]interface{}
	Plugins []registry.Activation
}

// Request is one transform call.
type Request struct {
	Code       string
	Filename   string
	Presets    []Preset
	Plugins    []registry.Activation
	SourceMaps SourceMaps
}

// Activations flattens the request: explicit plugins first, then each
// preset's plugins in preset order.
func (r Request) Activations() []registry.Activation {
	out := make([]registry.Activation, 0, len(r.Plugins))
	out = append(out, r.Plugins...)
	for _, p := range r.Presets {
		out = append(out, p.Plugins...)
	}
	return out
}

// Result is the compiler output.
type Result struct {
	Code      string
	Map       string
	Warnings  []errs.Message
	Polyfills []string
}

// Compiler transforms source text. Engines report unparseable input as
// *errs.CompileError.
type Compiler interface {
	Transform(ctx context.Context, req Request) (*Result, error)
}

// Minifier compresses already compiled source.
type Minifier interface {
	Minify(ctx context.Context, code, filename string) (*Result, error)
}
