package compiler

import (
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/logger"
	"github.com/sw33tLie/jsenv/pkg/registry"
)

// esbuildFeatures maps transform plugins to the esbuild syntax features they
// lower. A plugin listed here marks its features unsupported, which makes
// esbuild rewrite them. Only features esbuild can lower are listed; marking
// classes, let/const or generators unsupported makes esbuild fail instead.
var esbuildFeatures = map[string][]string{
	"transform-es2015-arrow-functions":      {"arrow"},
	"transform-es2015-template-literals":    {"template-literal"},
	"transform-es2015-computed-properties":  {"object-extensions"},
	"transform-es2015-shorthand-properties": {"object-extensions"},
	"transform-exponentiation-operator":     {"exponent-operator"},
	"transform-async-to-generator":          {"async-await"},
	"transform-async-functions":             {"async-await"},
	"transform-object-rest-spread":          {"object-rest-spread"},
	"transform-class-properties":            {"class-field", "class-static-field"},
}

var esbuildFormats = map[string]api.Format{
	"transform-es2015-modules-commonjs": api.FormatCommonJS,
}

var jsxPlugins = map[string]bool{
	"syntax-jsx":          true,
	"transform-react-jsx": true,
}

// Esbuild compiles with esbuild. Babel plugins without an esbuild equivalent
// are skipped with a debug message.
type Esbuild struct {
	Log logger.Logger
}

// NewEsbuild returns the esbuild engine.
func NewEsbuild(log logger.Logger) *Esbuild {
	return &Esbuild{Log: logger.OrNop(log)}
}

func (e *Esbuild) log() logger.Logger { return logger.OrNop(e.Log) }

func (e *Esbuild) options(req Request) api.TransformOptions {
	opts := api.TransformOptions{
		Sourcefile: req.Filename,
		Loader:     api.LoaderJS,
		Format:     api.FormatDefault,
		Sourcemap:  esbuildSourceMap(req.SourceMaps),
		LogLevel:   api.LogLevelSilent,
	}
	supported := make(map[string]bool)
	for _, a := range req.Activations() {
		name := a.Name()
		if jsxPlugins[name] {
			opts.Loader = api.LoaderJSX
		}
		if f, ok := esbuildFormats[name]; ok {
			opts.Format = f
			continue
		}
		features, ok := esbuildFeatures[name]
		if !ok {
			if !jsxPlugins[name] && !isHostPlugin(a) {
				e.log().Debugf("esbuild: no equivalent for plugin %s, skipping", name)
			}
			continue
		}
		for _, f := range features {
			supported[f] = false
		}
	}
	if len(supported) > 0 {
		opts.Supported = supported
	}
	return opts
}

// Transform implements Compiler.
func (e *Esbuild) Transform(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := api.Transform(req.Code, e.options(req))
	return esbuildResult(req.Filename, res)
}

// Minify implements Minifier.
func (e *Esbuild) Minify(ctx context.Context, code, filename string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := api.Transform(code, api.TransformOptions{
		Sourcefile:        filename,
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LogLevel:          api.LogLevelSilent,
	})
	return esbuildResult(filename, res)
}

func esbuildResult(filename string, res api.TransformResult) (*Result, error) {
	if len(res.Errors) > 0 {
		return nil, &errs.CompileError{Filename: filename, Messages: esbuildMessages(res.Errors)}
	}
	return &Result{
		Code:     string(res.Code),
		Map:      string(res.Map),
		Warnings: esbuildMessages(res.Warnings),
	}, nil
}

func esbuildMessages(msgs []api.Message) []errs.Message {
	out := make([]errs.Message, 0, len(msgs))
	for _, m := range msgs {
		msg := errs.Message{Text: strings.TrimSpace(m.Text)}
		if m.Location != nil {
			msg.File = m.Location.File
			msg.Line = m.Location.Line
			msg.Column = m.Location.Column
		}
		out = append(out, msg)
	}
	return out
}

func esbuildSourceMap(s SourceMaps) api.SourceMap {
	switch s {
	case SourceMapsInline:
		return api.SourceMapInline
	case SourceMapsExternal:
		return api.SourceMapExternal
	case SourceMapsBoth:
		return api.SourceMapInlineAndExternal
	default:
		return api.SourceMapNone
	}
}

// isHostPlugin reports whether a is handled outside the compiler, such as
// the built-ins injection of the env preset.
func isHostPlugin(a registry.Activation) bool {
	name := a.Name()
	return name == registry.UseBuiltInsUsage || name == registry.UseBuiltInsEntry
}
