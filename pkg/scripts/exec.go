package scripts

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sw33tLie/jsenv/pkg/logger"
)

// HeadInjector appends every executed script to the document head, the way
// a browser would receive it.
type HeadInjector struct {
	doc *goquery.Document
}

// NewHeadInjector injects into doc.
func NewHeadInjector(doc *goquery.Document) *HeadInjector {
	return &HeadInjector{doc: doc}
}

// Execute implements Executor.
func (h *HeadInjector) Execute(_ context.Context, name, code string) error {
	head := h.doc.Find("head").First()
	if head.Length() == 0 {
		head = h.doc.Find("html").First()
	}
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "data-source", Val: name}},
	}
	node.AppendChild(&html.Node{Type: html.TextNode, Data: code})
	head.AppendNodes(node)
	return nil
}

// Render returns the document as HTML.
func (h *HeadInjector) Render() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, h.doc.Get(0)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// VMExecutor runs scripts in a shared goja runtime. console.log and friends
// go to the logger.
type VMExecutor struct {
	mu      sync.Mutex
	runtime *goja.Runtime
}

// NewVMExecutor returns an executor with a fresh runtime.
func NewVMExecutor(log logger.Logger) *VMExecutor {
	log = logger.OrNop(log)
	rt := goja.New()
	console := rt.NewObject()
	format := func(call goja.FunctionCall) string {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		return strings.Join(parts, " ")
	}
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		log.Infof("%s", format(call))
		return goja.Undefined()
	})
	_ = console.Set("warn", func(call goja.FunctionCall) goja.Value {
		log.Warnf("%s", format(call))
		return goja.Undefined()
	})
	_ = console.Set("error", func(call goja.FunctionCall) goja.Value {
		log.Errorf("%s", format(call))
		return goja.Undefined()
	})
	_ = rt.Set("console", console)
	_ = rt.Set("window", rt.GlobalObject())
	return &VMExecutor{runtime: rt}
}

// Runtime exposes the underlying runtime, for inspecting globals.
func (v *VMExecutor) Runtime() *goja.Runtime { return v.runtime }

// Execute implements Executor.
func (v *VMExecutor) Execute(ctx context.Context, name, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.runtime.ClearInterrupt()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			v.runtime.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	_, err := v.runtime.RunScript(name, code)
	return err
}
