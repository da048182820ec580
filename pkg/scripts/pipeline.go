package scripts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sw33tLie/jsenv/pkg/compiler"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/logger"
	"github.com/sw33tLie/jsenv/pkg/standalone"
)

// Default transform options for scripts without data-presets or
// data-plugins.
var (
	DefaultPresets = []string{"react", "es2015"}
	DefaultPlugins = []string{
		"transform-class-properties",
		"transform-object-rest-spread",
		"transform-flow-strip-types",
	}
)

const inlineName = "Inline Babel script"

const precompileWarning = "You are using the in-browser Babel transformer. Be sure to precompile your scripts for production - https://babeljs.io/docs/setup/"

// Transformer compiles one script.
type Transformer interface {
	Transform(ctx context.Context, code string, opts standalone.Options) (*compiler.Result, error)
}

// Fetcher loads an external script body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Executor runs compiled code. name is the script URL or inline name.
type Executor interface {
	Execute(ctx context.Context, name, code string) error
}

// Failure records a script that was not executed, or whose transform or
// execution failed.
type Failure struct {
	Name string
	Err  error
}

// Report summarizes a run.
type Report struct {
	Found    int
	Executed []string
	Failures []Failure
}

// Pipeline runs scripts in document order.
type Pipeline struct {
	Transformer Transformer
	Fetcher     Fetcher
	Executor    Executor
	Presets     []string
	Plugins     []string
	SourceMaps  compiler.SourceMaps
	Log         logger.Logger

	warnOnce sync.Once
}

// NewPipeline returns a pipeline with the default transform options and
// inline source maps.
func NewPipeline(t Transformer, f Fetcher, e Executor, log logger.Logger) *Pipeline {
	return &Pipeline{
		Transformer: t,
		Fetcher:     f,
		Executor:    e,
		Presets:     DefaultPresets,
		Plugins:     DefaultPlugins,
		SourceMaps:  compiler.SourceMapsInline,
		Log:         log,
	}
}

type completion struct {
	index   int
	content string
	err     error
}

// run holds the dispatcher state of one Run call. Only the goroutine that
// called Run touches it.
type run struct {
	p           *Pipeline
	log         logger.Logger
	scripts     []*Descriptor
	report      *Report
	inlineCount int
}

// Run fetches external scripts concurrently and executes every script in
// document order. Pending scripts start as loaded when inline and as loading
// otherwise. A nil Fetcher falls back to NewHTTPFetcher. A script that is neither loaded nor failed blocks later
// scripts unless it is async. Fetch, transform and execution failures are
// recorded and never stop the remaining scripts. Run returns when every
// script is executed or failed, or with ctx.Err() and a partial report when
// ctx ends first.
func (p *Pipeline) Run(ctx context.Context, scripts []*Descriptor) (*Report, error) {
	r := &run{p: p, log: logger.OrNop(p.Log), scripts: scripts, report: &Report{Found: len(scripts)}}
	if len(scripts) == 0 {
		return r.report, nil
	}
	p.warnOnce.Do(func() { r.log.Warnf(precompileWarning) })

	pending := 0
	for _, d := range scripts {
		if d.State == StatePending {
			d.State = StateLoaded
			if !d.IsInline() {
				d.State = StateLoading
			}
		}
		if d.State == StateLoading {
			pending++
		}
	}
	fetcher := p.Fetcher
	if fetcher == nil && pending > 0 {
		fetcher = NewHTTPFetcher()
	}
	done := make(chan completion, pending)
	for i, d := range scripts {
		if d.State != StateLoading {
			continue
		}
		go func(i int, url string) {
			content, err := fetcher.Fetch(ctx, url)
			done <- completion{index: i, content: content, err: err}
		}(i, d.URL)
	}

	r.sweep(ctx)
	for !r.finished() {
		select {
		case <-ctx.Done():
			return r.report, ctx.Err()
		case c := <-done:
			if err := ctx.Err(); err != nil {
				return r.report, err
			}
			r.apply(c)
		drain:
			for {
				select {
				case c := <-done:
					r.apply(c)
				default:
					break drain
				}
			}
			r.sweep(ctx)
		}
	}
	return r.report, nil
}

func (r *run) apply(c completion) {
	d := r.scripts[c.index]
	if c.err != nil {
		d.State = StateError
		var ne *errs.NetworkError
		if !errors.As(c.err, &ne) {
			c.err = &errs.NetworkError{URL: d.URL, Err: c.err}
		}
		r.log.Errorf("Could not load %s: %v", d.URL, c.err)
		r.report.Failures = append(r.report.Failures, Failure{Name: d.URL, Err: c.err})
		return
	}
	d.Content = c.content
	d.State = StateLoaded
}

func (r *run) finished() bool {
	for _, d := range r.scripts {
		if d.State != StateExecuted && d.State != StateError {
			return false
		}
	}
	return true
}

// sweep executes loaded scripts in order, stopping at the first blocking
// script that is still loading.
func (r *run) sweep(ctx context.Context) {
	for _, d := range r.scripts {
		switch {
		case d.State == StateLoaded:
			d.State = StateExecuted
			r.execute(ctx, d)
		case d.State == StateLoading && !d.Async:
			return
		}
	}
}

func (r *run) name(d *Descriptor) string {
	if !d.IsInline() {
		return d.URL
	}
	r.inlineCount++
	if r.inlineCount > 1 {
		return fmt.Sprintf("%s (%d)", inlineName, r.inlineCount)
	}
	return inlineName
}

func (r *run) execute(ctx context.Context, d *Descriptor) {
	name := r.name(d)
	presets, plugins := r.p.Presets, r.p.Plugins
	if d.Presets != nil {
		presets = d.Presets
	}
	if d.Plugins != nil {
		plugins = d.Plugins
	}

	res, err := r.p.Transformer.Transform(ctx, d.Content, standalone.Options{
		Filename:   name,
		Presets:    standalone.Names(presets...),
		Plugins:    standalone.Names(plugins...),
		SourceMaps: r.p.SourceMaps,
	})
	if err != nil {
		r.log.Errorf("transforming %s: %v", name, err)
		r.report.Failures = append(r.report.Failures, Failure{Name: name, Err: err})
		return
	}
	if err := r.p.Executor.Execute(ctx, name, res.Code); err != nil {
		r.log.Errorf("executing %s: %v", name, err)
		r.report.Failures = append(r.report.Failures, Failure{Name: name, Err: err})
		return
	}
	r.report.Executed = append(r.report.Executed, name)
}
