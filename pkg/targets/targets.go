// Package targets turns a user target specification (explicit platform
// versions, a browser query, or nothing) into the resolved platform → version
// mapping the env preset filters against.
package targets

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sw33tLie/jsenv/pkg/compat"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/logger"
)

// CurrentNode is the placeholder accepted for node: "current" or node: true.
const CurrentNode = "current"

// Spec is the unresolved target specification.
type Spec struct {
	// Platforms maps a platform name to a version string, or to CurrentNode
	// for node.
	Platforms map[string]string
	// Browsers holds browser queries, applied before Platforms.
	Browsers []string
	// Uglify is the deprecated "compile everything" switch.
	Uglify bool
}

// IsEmpty reports whether the spec targets nothing, which means every feature
// is required.
func (s Spec) IsEmpty() bool {
	return len(s.Platforms) == 0 && len(s.Browsers) == 0
}

// DecodeSpec converts loosely typed option data (as decoded from JSON, YAML or
// viper) into a Spec. Accepted: nil, or an object whose "browsers" key is a
// string or list of strings, whose "uglify" key is a boolean, and whose other
// keys map platforms to a version string or number. node also accepts
// "current" and true.
func DecodeSpec(v interface{}) (Spec, error) {
	var s Spec
	if v == nil {
		return s, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		if typed, ok := v.(map[string]string); ok {
			m = make(map[string]interface{}, len(typed))
			for k, val := range typed {
				m[k] = val
			}
		} else {
			return s, errs.Configf(errs.KindTarget, "targets", "expected an object, got %T", v)
		}
	}

	for key, raw := range m {
		name := strings.ToLower(strings.TrimSpace(key))
		switch name {
		case "browsers":
			q, err := decodeQueries(raw)
			if err != nil {
				return s, err
			}
			s.Browsers = append(s.Browsers, q...)
		case "uglify":
			b, ok := raw.(bool)
			if !ok && raw != nil {
				return s, errs.Configf(errs.KindTarget, "uglify", "expected boolean, got %T", raw)
			}
			s.Uglify = b
		default:
			ver, err := decodeVersion(name, raw)
			if err != nil {
				return s, err
			}
			if s.Platforms == nil {
				s.Platforms = make(map[string]string)
			}
			s.Platforms[name] = ver
		}
	}
	return s, nil
}

func decodeQueries(raw interface{}) ([]string, error) {
	switch t := raw.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, errs.Configf(errs.KindTarget, "browsers", "query must be a string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errs.Configf(errs.KindTarget, "browsers", "expected string or list, got %T", raw)
	}
}

func decodeVersion(platform string, raw interface{}) (string, error) {
	switch t := raw.(type) {
	case string:
		return t, nil
	case bool:
		if t && platform == "node" {
			return CurrentNode, nil
		}
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}
	return "", errs.Configf(errs.KindTarget, platform, "unsupported version value %v", raw)
}

// Resolved maps recognized platforms to versions.
type Resolved map[string]compat.Version

// Names returns the targeted platforms, sorted.
func (r Resolved) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OnlyNode reports whether node is the sole targeted platform.
func (r Resolved) OnlyNode() bool {
	_, ok := r["node"]
	return ok && len(r) == 1
}

func (r Resolved) String() string {
	if len(r) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(r))
	for _, name := range r.Names() {
		parts = append(parts, fmt.Sprintf("%s: %s", name, r[name]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// BrowserQuerier expands a browser query into platform → version entries.
type BrowserQuerier interface {
	Query(q string) (map[string]string, error)
}

// Resolver resolves target specifications. It holds no per-call state.
type Resolver struct {
	Querier BrowserQuerier
	// CurrentNode is the version substituted for node: "current".
	CurrentNode string
	Log         logger.Logger
}

// NewResolver returns a resolver using the static querier.
func NewResolver(currentNode string, log logger.Logger) *Resolver {
	return &Resolver{Querier: StaticQuerier{}, CurrentNode: currentNode, Log: log}
}

// Resolve expands queries, then applies explicit platform entries on top of
// them. Unrecognized platforms are dropped; malformed versions fail with a
// *errs.ConfigurationError.
func (r *Resolver) Resolve(spec Spec) (Resolved, error) {
	log := logger.OrNop(r.Log)
	out := make(Resolved)

	if len(spec.Browsers) > 0 {
		q := r.Querier
		if q == nil {
			q = StaticQuerier{}
		}
		for _, query := range spec.Browsers {
			entries, err := q.Query(query)
			if err != nil {
				return nil, err
			}
			for platform, raw := range entries {
				platform = strings.ToLower(platform)
				if !compat.IsPlatform(platform) {
					log.Debugf("dropping unknown platform %q from query %q", platform, query)
					continue
				}
				v, err := compat.ParseVersion(raw)
				if err != nil {
					return nil, errs.Configf(errs.KindTarget, platform, "%v", err)
				}
				if cur, seen := out[platform]; !seen || v.Less(cur) {
					out[platform] = v
				}
			}
		}
	}

	names := make([]string, 0, len(spec.Platforms))
	for name := range spec.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw := spec.Platforms[name]
		platform := strings.ToLower(name)
		if !compat.IsPlatform(platform) {
			log.Debugf("dropping unknown target platform %q", platform)
			continue
		}
		if raw == CurrentNode {
			if platform != "node" {
				return nil, errs.Configf(errs.KindTarget, platform, "%q is only valid for node", CurrentNode)
			}
			if r.CurrentNode == "" {
				return nil, errs.Configf(errs.KindTarget, platform, "current node version is not configured")
			}
			raw = r.CurrentNode
		}
		v, err := compat.ParseVersion(raw)
		if err != nil {
			return nil, errs.Configf(errs.KindTarget, platform, "%v", err)
		}
		out[platform] = v
	}
	return out, nil
}
