// Package scripts finds text/babel and text/jsx script tags in an HTML
// document, fetches external ones concurrently and executes all of them in
// document order.
package scripts

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// State is the lifecycle position of a script.
type State int

const (
	StatePending State = iota
	StateLoading
	StateLoaded
	StateError
	StateExecuted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	case StateExecuted:
		return "executed"
	default:
		return "pending"
	}
}

// ScriptTypes are the type attribute values picked up by Scan. Parameters
// after ";" are ignored, so "text/jsx;harmony=true" matches.
var ScriptTypes = []string{"text/jsx", "text/babel"}

// Descriptor is one candidate script. After Scan only the pipeline
// dispatcher mutates it.
type Descriptor struct {
	// URL is empty for inline scripts.
	URL     string
	Content string
	State   State
	Async   bool
	// Presets and Plugins override the pipeline defaults when set.
	Presets []string
	Plugins []string
}

// IsInline reports whether the script body came from the document.
func (d *Descriptor) IsInline() bool { return d.URL == "" }

func isTransformable(typ string) bool {
	typ = strings.ToLower(strings.TrimSpace(strings.SplitN(typ, ";", 2)[0]))
	for _, t := range ScriptTypes {
		if typ == t {
			return true
		}
	}
	return false
}

func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Scan returns the transformable scripts of doc in document order. External
// sources are resolved against base when it is not nil.
func Scan(doc *goquery.Document, base *url.URL) []*Descriptor {
	var out []*Descriptor
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !isTransformable(typ) {
			return
		}
		_, async := s.Attr("async")
		d := &Descriptor{Async: async}
		if presets, ok := s.Attr("data-presets"); ok {
			d.Presets = splitNames(presets)
		}
		if plugins, ok := s.Attr("data-plugins"); ok {
			d.Plugins = splitNames(plugins)
		}

		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			d.URL = resolve(base, strings.TrimSpace(src))
			d.State = StateLoading
		} else {
			d.Content = s.Text()
			d.State = StateLoaded
		}
		out = append(out, d)
	})
	return out
}

func resolve(base *url.URL, src string) string {
	if base == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
