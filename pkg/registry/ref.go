package registry

import (
	"fmt"

	"github.com/sw33tLie/jsenv/pkg/errs"
)

// Ref is a reference to a plugin or preset: either a registered name or an
// inline descriptor, each with an optional option bag.
type Ref struct {
	name    string
	inline  *Descriptor
	options map[string]interface{}
}

// ByName references a registered entry.
func ByName(name string, opts map[string]interface{}) Ref {
	return Ref{name: name, options: opts}
}

// Inline references a descriptor directly, bypassing the registry.
func Inline(d *Descriptor, opts map[string]interface{}) Ref {
	return Ref{inline: d, options: opts}
}

// Name is the referenced name, or the inline descriptor's name.
func (r Ref) Name() string {
	if r.inline != nil {
		return r.inline.Name
	}
	return r.name
}

// IsInline reports whether r carries its own descriptor.
func (r Ref) IsInline() bool { return r.inline != nil }

// Options returns the option bag, possibly nil.
func (r Ref) Options() map[string]interface{} { return r.options }

func (r Ref) String() string {
	if len(r.options) == 0 {
		return r.Name()
	}
	return fmt.Sprintf("%s %v", r.Name(), r.options)
}

// ParseRef converts the loose shapes accepted on the wire into a Ref:
// "name", ["name"], ["name", {options}], a *Descriptor, or
// [*Descriptor, {options}].
func ParseRef(v interface{}) (Ref, error) {
	switch t := v.(type) {
	case Ref:
		return t, nil
	case string:
		return ByName(t, nil), nil
	case *Descriptor:
		return Inline(t, nil), nil
	case []string:
		items := make([]interface{}, len(t))
		for i, s := range t {
			items[i] = s
		}
		return parseTuple(items)
	case []interface{}:
		return parseTuple(t)
	default:
		return Ref{}, errs.Configf(errs.KindOption, fmt.Sprintf("%v", v), "expected a name, [name, options] or descriptor, got %T", v)
	}
}

// ParseRefs applies ParseRef to a list.
func ParseRefs(list []interface{}) ([]Ref, error) {
	out := make([]Ref, 0, len(list))
	for _, item := range list {
		ref, err := ParseRef(item)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func parseTuple(items []interface{}) (Ref, error) {
	if len(items) == 0 || len(items) > 2 {
		return Ref{}, errs.Configf(errs.KindOption, fmt.Sprintf("%v", items), "expected [name] or [name, options]")
	}
	var opts map[string]interface{}
	if len(items) == 2 && items[1] != nil {
		m, ok := items[1].(map[string]interface{})
		if !ok {
			return Ref{}, errs.Configf(errs.KindOption, fmt.Sprintf("%v", items[0]), "options must be an object, got %T", items[1])
		}
		opts = m
	}
	switch head := items[0].(type) {
	case string:
		return ByName(head, opts), nil
	case *Descriptor:
		return Inline(head, opts), nil
	default:
		return Ref{}, errs.Configf(errs.KindOption, fmt.Sprintf("%v", head), "expected a name or descriptor, got %T", head)
	}
}
