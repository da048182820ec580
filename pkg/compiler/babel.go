package compiler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/logger"
	"github.com/sw33tLie/jsenv/pkg/registry"
)

// babelShim adapts a Request to Babel.transform. Presets the bundle knows are
// passed by name; the others (such as env) contribute their expanded plugins.
const babelShim = `(function (code, reqJSON) {
  var req = JSON.parse(reqJSON);
  var plugins = req.plugins.slice();
  var presets = [];
  req.presets.forEach(function (p) {
    if (Babel.availablePresets && Babel.availablePresets[p.name]) {
      presets.push(p.options ? [p.name, p.options] : p.name);
    } else {
      p.plugins.forEach(function (pl) { plugins.push(pl); });
    }
  });
  var result = Babel.transform(code, {
    filename: req.filename,
    sourceMaps: req.sourceMaps,
    presets: presets,
    plugins: plugins
  });
  return {code: String(result.code), map: result.map ? JSON.stringify(result.map) : ""};
})`

type babelPreset struct {
	Name    string                 `json:"name"`
	Options map[string]interface{} `json:"options,omitempty"`
	Plugins []interface{}          `json:"plugins"`
}

type babelRequest struct {
	Filename   string        `json:"filename,omitempty"`
	SourceMaps interface{}   `json:"sourceMaps"`
	Presets    []babelPreset `json:"presets"`
	Plugins    []interface{} `json:"plugins"`
}

// Babel runs a babel-standalone bundle inside a goja runtime. A runtime is
// single threaded, so calls are serialized.
type Babel struct {
	mu        sync.Mutex
	runtime   *goja.Runtime
	transform goja.Callable
	version   string
	log       logger.Logger
}

// LoadBabel reads a babel-standalone bundle from path.
func LoadBabel(path string, log logger.Logger) (*Babel, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading babel bundle")
	}
	return NewBabel(filepath.Base(path), string(src), log)
}

// NewBabel evaluates src, which must define a global Babel object with a
// transform function.
func NewBabel(name, src string, log logger.Logger) (*Babel, error) {
	b := &Babel{runtime: goja.New(), log: logger.OrNop(log)}
	if _, err := b.runtime.RunString("this.global = this.global || this; this.window = this.window || this;"); err != nil {
		return nil, err
	}
	if _, err := b.runtime.RunScript(name, src); err != nil {
		return nil, errors.Wrapf(err, "evaluating %s", name)
	}
	babel := b.runtime.Get("Babel")
	if babel == nil || goja.IsUndefined(babel) || goja.IsNull(babel) {
		return nil, errors.Errorf("%s does not define a global Babel object", name)
	}
	if _, ok := goja.AssertFunction(babel.ToObject(b.runtime).Get("transform")); !ok {
		return nil, errors.Errorf("Babel.transform in %s is not a function", name)
	}
	if v := babel.ToObject(b.runtime).Get("version"); v != nil && !goja.IsUndefined(v) {
		b.version = v.String()
	}

	v, err := b.runtime.RunString(babelShim)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.Errorf("expected result to be goja.Callable, got %T", v)
	}
	b.transform = fn
	b.log.Debugf("loaded babel bundle %s (version %q)", name, b.version)
	return b, nil
}

// Version is the bundle's Babel.version, if it has one.
func (b *Babel) Version() string { return b.version }

func babelPlugins(acts []registry.Activation) []interface{} {
	out := make([]interface{}, 0, len(acts))
	for _, a := range acts {
		if isHostPlugin(a) {
			continue
		}
		if len(a.Options) == 0 {
			out = append(out, a.Name())
			continue
		}
		out = append(out, []interface{}{a.Name(), a.Options})
	}
	return out
}

func babelSourceMaps(s SourceMaps) interface{} {
	switch s {
	case SourceMapsInline, SourceMapsBoth:
		return string(s)
	case SourceMapsExternal:
		return true
	default:
		return false
	}
}

// Transform implements Compiler.
func (b *Babel) Transform(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload := babelRequest{
		Filename:   req.Filename,
		SourceMaps: babelSourceMaps(req.SourceMaps),
		Plugins:    babelPlugins(req.Plugins),
		Presets:    make([]babelPreset, 0, len(req.Presets)),
	}
	for _, p := range req.Presets {
		payload.Presets = append(payload.Presets, babelPreset{
			Name:    p.Name,
			Options: p.Options,
			Plugins: babelPlugins(p.Plugins),
		})
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding babel options")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.runtime.ClearInterrupt()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			b.runtime.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	v, err := b.transform(nil, b.runtime.ToValue(req.Code), b.runtime.ToValue(string(encoded)))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, b.compileError(req.Filename, err)
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, errors.Errorf("unexpected babel result %T", v)
	}
	res := &Result{Code: obj.Get("code").String()}
	if m := obj.Get("map"); m != nil && !goja.IsUndefined(m) {
		res.Map = m.String()
	}
	return res, nil
}

// compileError converts a thrown Babel error into a CompileError, keeping the
// location Babel attaches to syntax errors.
func (b *Babel) compileError(filename string, err error) error {
	ex, ok := err.(*goja.Exception)
	if !ok {
		return errors.Wrap(err, "babel transform")
	}
	msg := errs.Message{Text: ex.Error(), File: filename}
	if obj, ok := ex.Value().(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			msg.Text = m.String()
		}
		if loc, ok := obj.Get("loc").(*goja.Object); ok {
			if line := loc.Get("line"); line != nil {
				msg.Line = int(line.ToInteger())
			}
			if col := loc.Get("column"); col != nil {
				msg.Column = int(col.ToInteger())
			}
		}
	}
	return &errs.CompileError{Filename: filename, Messages: []errs.Message{msg}}
}
