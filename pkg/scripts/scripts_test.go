package scripts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sw33tLie/jsenv/pkg/compiler"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/standalone"
)

type echoTransformer struct {
	mu   sync.Mutex
	opts []standalone.Options
	fail map[string]bool
}

func (e *echoTransformer) Transform(_ context.Context, code string, opts standalone.Options) (*compiler.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts = append(e.opts, opts)
	if e.fail[opts.Filename] {
		return nil, &errs.CompileError{Filename: opts.Filename, Messages: []errs.Message{{Text: "Unexpected token"}}}
	}
	return &compiler.Result{Code: code}, nil
}

type recordingExecutor struct {
	mu     sync.Mutex
	names  []string
	onExec func(name string)
}

func (r *recordingExecutor) Execute(_ context.Context, name, _ string) error {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	if r.onExec != nil {
		r.onExec(name)
	}
	return nil
}

func (r *recordingExecutor) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// fetchFunc adapts a function to Fetcher.
type fetchFunc func(ctx context.Context, url string) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) (string, error) { return f(ctx, url) }

func external(url string, async bool) *Descriptor {
	return &Descriptor{URL: url, State: StateLoading, Async: async}
}

func inline(content string) *Descriptor {
	return &Descriptor{Content: content, State: StateLoaded}
}

func TestScan(t *testing.T) {
	page := `<html><head></head><body>
<script type="text/babel">const a = 1;</script>
<script type="text/javascript">var ignored = true;</script>
<script type="text/jsx;harmony=true" src="js/app.jsx" async></script>
<script type="TEXT/BABEL" data-presets="es2015, react" data-plugins="transform-react-jsx">b</script>
<script>var plain = 1;</script>
</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	base, _ := url.Parse("https://example.com/pages/index.html")
	found := Scan(doc, base)
	if len(found) != 3 {
		t.Fatalf("expected 3 scripts, got %d", len(found))
	}
	if !found[0].IsInline() || found[0].State != StateLoaded || found[0].Content != "const a = 1;" {
		t.Fatalf("unexpected inline script %+v", found[0])
	}
	if found[1].URL != "https://example.com/pages/js/app.jsx" || found[1].State != StateLoading || !found[1].Async {
		t.Fatalf("unexpected external script %+v", found[1])
	}
	if len(found[2].Presets) != 2 || found[2].Presets[1] != "react" || len(found[2].Plugins) != 1 {
		t.Fatalf("data attributes not read: %+v", found[2])
	}
}

func TestDocumentOrderWithSlowFirstScript(t *testing.T) {
	releaseA := make(chan struct{})
	bFetched := make(chan struct{})
	fetcher := fetchFunc(func(ctx context.Context, u string) (string, error) {
		if u == "a.js" {
			select {
			case <-releaseA:
				return "a", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		defer close(bFetched)
		return "b", nil
	})
	exec := &recordingExecutor{}
	p := NewPipeline(&echoTransformer{}, fetcher, exec, nil)

	go func() {
		<-bFetched
		time.Sleep(20 * time.Millisecond)
		close(releaseA)
	}()

	report, err := p.Run(context.Background(), []*Descriptor{external("a.js", false), external("b.js", false)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := exec.executed()
	if len(got) != 2 || got[0] != "a.js" || got[1] != "b.js" {
		t.Fatalf("scripts ran out of order: %v", got)
	}
	if len(report.Executed) != 2 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestAsyncScriptDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	never := fetchFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	exec := &recordingExecutor{onExec: func(string) { cancel() }}
	p := NewPipeline(&echoTransformer{}, never, exec, nil)

	report, err := p.Run(ctx, []*Descriptor{external("a.js", true), inline("b")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation once B ran, got %v", err)
	}
	if got := exec.executed(); len(got) != 1 || got[0] != "Inline Babel script" {
		t.Fatalf("B should run despite A loading, got %v", got)
	}
	if len(report.Executed) != 1 {
		t.Fatalf("partial report missing: %+v", report)
	}
}

func TestAsyncScriptRunsInItsSlotOnceLoaded(t *testing.T) {
	releaseA := make(chan struct{})
	fetcher := fetchFunc(func(ctx context.Context, _ string) (string, error) {
		<-releaseA
		return "a", nil
	})
	exec := &recordingExecutor{onExec: func(name string) {
		if name == "Inline Babel script" {
			close(releaseA)
		}
	}}
	p := NewPipeline(&echoTransformer{}, fetcher, exec, nil)

	if _, err := p.Run(context.Background(), []*Descriptor{external("a.js", true), inline("b")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := exec.executed()
	if len(got) != 2 || got[0] != "Inline Babel script" || got[1] != "a.js" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestFetchErrorIsSkipped(t *testing.T) {
	fetcher := fetchFunc(func(context.Context, string) (string, error) {
		return "", &errs.NetworkError{URL: "missing.js", Status: 404}
	})
	exec := &recordingExecutor{}
	p := NewPipeline(&echoTransformer{}, fetcher, exec, nil)

	report, err := p.Run(context.Background(), []*Descriptor{external("missing.js", false), inline("one"), inline("two")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := exec.executed()
	if len(got) != 2 || got[0] != "Inline Babel script" || got[1] != "Inline Babel script (2)" {
		t.Fatalf("unexpected executions %v", got)
	}
	if len(report.Failures) != 1 || !errs.IsNetwork(report.Failures[0].Err) {
		t.Fatalf("expected one network failure, got %+v", report.Failures)
	}
}

func TestPendingDescriptorsAreStarted(t *testing.T) {
	fetcher := fetchFunc(func(context.Context, string) (string, error) { return "remote", nil })
	exec := &recordingExecutor{}
	p := NewPipeline(&echoTransformer{}, fetcher, exec, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := p.Run(ctx, []*Descriptor{{Content: "a"}, {URL: "b.js"}, inline("c")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := exec.executed()
	want := []string{"Inline Babel script", "b.js", "Inline Babel script (2)"}
	if len(got) != len(want) {
		t.Fatalf("unexpected executions %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected executions %v", got)
		}
	}
	if len(report.Executed) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestNilFetcherUsesHTTPFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.js")
	if err := os.WriteFile(path, []byte("var app = 1;"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	exec := &recordingExecutor{}
	p := NewPipeline(&echoTransformer{}, nil, exec, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := p.Run(ctx, []*Descriptor{external("file://"+path, false)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := exec.executed(); len(got) != 1 || got[0] != "file://"+path || len(report.Failures) != 0 {
		t.Fatalf("unexpected run %v, %+v", got, report)
	}
}

func TestTransformFailureDoesNotStopPipeline(t *testing.T) {
	tr := &echoTransformer{fail: map[string]bool{"Inline Babel script": true}}
	exec := &recordingExecutor{}
	p := NewPipeline(tr, nil, exec, nil)

	report, err := p.Run(context.Background(), []*Descriptor{inline("bad"), inline("good")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := exec.executed(); len(got) != 1 || got[0] != "Inline Babel script (2)" {
		t.Fatalf("unexpected executions %v", got)
	}
	if len(report.Failures) != 1 || !errs.IsCompile(report.Failures[0].Err) {
		t.Fatalf("expected compile failure, got %+v", report.Failures)
	}
}

func TestDefaultAndPerScriptOptions(t *testing.T) {
	tr := &echoTransformer{}
	p := NewPipeline(tr, nil, &recordingExecutor{}, nil)
	custom := inline("x")
	custom.Presets = []string{"es2015"}

	if _, err := p.Run(context.Background(), []*Descriptor{inline("y"), custom}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, second := tr.opts[0], tr.opts[1]
	if len(first.Presets) != 2 || first.Presets[0].Name() != "react" || len(first.Plugins) != 3 {
		t.Fatalf("defaults not applied: %+v", first)
	}
	if first.SourceMaps != compiler.SourceMapsInline {
		t.Fatalf("inline source maps expected")
	}
	if len(second.Presets) != 1 || second.Presets[0].Name() != "es2015" || len(second.Plugins) != 3 {
		t.Fatalf("override not applied: %+v", second)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.js" {
			w.Write([]byte("const ok = true;"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	body, err := f.Fetch(context.Background(), srv.URL+"/ok.js")
	if err != nil || body != "const ok = true;" {
		t.Fatalf("unexpected fetch result %q, %v", body, err)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.js")
	var ne *errs.NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusNotFound {
		t.Fatalf("expected 404 network error, got %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "local.js")
	if err := os.WriteFile(path, []byte("local"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	body, err = f.Fetch(context.Background(), "file://"+path)
	if err != nil || body != "local" {
		t.Fatalf("unexpected file fetch %q, %v", body, err)
	}

	origin, _ := url.Parse("https://example.com/")
	strict := &HTTPFetcher{Origin: origin, SameSite: true}
	if _, err := strict.Fetch(context.Background(), srv.URL+"/ok.js"); !errs.IsNetwork(err) {
		t.Fatalf("cross-site fetch should be refused, got %v", err)
	}
}

func TestSameSite(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"www.example.com", "cdn.example.com", true},
		{"example.co.uk", "static.example.co.uk", true},
		{"example.com", "example.org", false},
		{"127.0.0.1", "127.0.0.1", true},
		{"127.0.0.1", "localhost", false},
	}
	for _, tt := range tests {
		got, err := SameSite(tt.a, tt.b)
		if err != nil || got != tt.want {
			t.Fatalf("SameSite(%s, %s) = %v, %v", tt.a, tt.b, got, err)
		}
	}
}

func TestHeadInjectorAndVM(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head><title>t</title></head><body></body></html>"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	inj := NewHeadInjector(doc)
	if err := inj.Execute(context.Background(), "Inline Babel script", "var x = 1 < 2;"); err != nil {
		t.Fatalf("inject: %v", err)
	}
	out, err := inj.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `<script data-source="Inline Babel script">var x = 1 < 2;</script></head>`) {
		t.Fatalf("script not appended to head:\n%s", out)
	}

	vm := NewVMExecutor(nil)
	if err := vm.Execute(context.Background(), "a.js", "var answer = 6 * 7; console.log('answer', answer);"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := vm.Runtime().Get("answer").ToInteger(); got != 42 {
		t.Fatalf("unexpected global %d", got)
	}
	if err := vm.Execute(context.Background(), "b.js", "throw new Error('boom')"); err == nil {
		t.Fatalf("expected error from throwing script")
	}
}
