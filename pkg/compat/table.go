// Package compat holds the static feature support data: for every transform
// plugin and built-in, the first version of each platform that supports it
// natively.
package compat

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

//go:embed data/plugins.json
var pluginsJSON []byte

//go:embed data/built-ins.json
var builtInsJSON []byte

// Platforms the support tables know about. Targets naming anything else are
// dropped during resolution.
var Platforms = []string{
	"android",
	"chrome",
	"edge",
	"electron",
	"firefox",
	"ie",
	"ios",
	"node",
	"opera",
	"safari",
}

// IsPlatform reports whether name is a recognized platform.
func IsPlatform(name string) bool {
	i := sort.SearchStrings(Platforms, name)
	return i < len(Platforms) && Platforms[i] == name
}

// Support maps platform to the minimum natively supporting version.
type Support map[string]Version

// Feature is one row of a Table.
type Feature struct {
	Name    string
	Support Support
}

// Table is an ordered, read-only feature support table.
type Table struct {
	features []Feature
	index    map[string]int
}

// Load parses a feature → platform → version JSON object, keeping the
// document order of features.
func Load(data []byte) (*Table, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("support table is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("support table must be a JSON object")
	}

	t := &Table{index: make(map[string]int)}
	var loadErr error
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !value.IsObject() {
			loadErr = fmt.Errorf("feature %s: expected object, got %s", name, value.Type)
			return false
		}
		support := make(Support)
		value.ForEach(func(platform, version gjson.Result) bool {
			v, err := ParseVersion(version.String())
			if err != nil {
				loadErr = fmt.Errorf("feature %s, platform %s: %w", name, platform.String(), err)
				return false
			}
			support[platform.String()] = v
			return true
		})
		if loadErr != nil {
			return false
		}
		if _, dup := t.index[name]; dup {
			loadErr = fmt.Errorf("feature %s listed twice", name)
			return false
		}
		t.index[name] = len(t.features)
		t.features = append(t.features, Feature{Name: name, Support: support})
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return t, nil
}

// MustLoad panics on malformed embedded data.
func MustLoad(data []byte) *Table {
	t, err := Load(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Plugins returns the transform plugin table.
func Plugins() *Table { return MustLoad(pluginsJSON) }

// BuiltIns returns the built-ins (polyfill) table.
func BuiltIns() *Table { return MustLoad(builtInsJSON) }

// Features returns the rows in table order.
func (t *Table) Features() []Feature { return t.features }

// Names returns feature names in table order.
func (t *Table) Names() []string {
	out := make([]string, len(t.features))
	for i, f := range t.features {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the support row for name.
func (t *Table) Lookup(name string) (Support, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.features[i].Support, true
}

// Has reports whether name is in the table.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len is the number of features.
func (t *Table) Len() int { return len(t.features) }
