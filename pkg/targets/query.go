package targets

import (
	"strings"

	"github.com/sw33tLie/jsenv/pkg/compat"
	"github.com/sw33tLie/jsenv/pkg/errs"
)

var browserAliases = map[string]string{
	"and_chr":       "chrome",
	"and_ff":        "firefox",
	"chromeandroid": "chrome",
	"explorer":      "ie",
	"ff":            "firefox",
	"ie_mob":        "ie",
	"ios_saf":       "ios",
	"op":            "opera",
}

// StaticQuerier understands comma-separated "<browser> <version>" terms, such
// as "chrome 58, ie 11, ios_saf 10.0-10.2". A range resolves to its lower
// bound. Other query forms ("last 2 versions", "> 1%") are rejected.
type StaticQuerier struct{}

// Query implements BrowserQuerier.
func (StaticQuerier) Query(q string) (map[string]string, error) {
	out := make(map[string]string)
	lowest := make(map[string]compat.Version)
	for _, term := range strings.Split(q, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		fields := strings.Fields(term)
		if len(fields) != 2 {
			return nil, errs.Configf(errs.KindTarget, term, "unsupported browser query")
		}
		browser := strings.ToLower(fields[0])
		if alias, ok := browserAliases[browser]; ok {
			browser = alias
		}
		raw := fields[1]
		if i := strings.IndexByte(raw, '-'); i > 0 {
			raw = raw[:i]
		}
		v, err := compat.ParseVersion(raw)
		if err != nil {
			return nil, errs.Configf(errs.KindTarget, term, "unsupported browser query: %v", err)
		}
		if cur, seen := lowest[browser]; seen && !v.Less(cur) {
			continue
		}
		lowest[browser] = v
		out[browser] = raw
	}
	if len(out) == 0 {
		return nil, errs.Configf(errs.KindTarget, q, "empty browser query")
	}
	return out, nil
}
