package compat

import "strings"

// DefaultWebIncludes are built-ins added whenever any browser-like platform is
// targeted.
var DefaultWebIncludes = []string{
	"web.timers",
	"web.immediate",
	"web.dom.iterable",
}

// ModuleTransformations maps a modules option value to its transform plugin.
var ModuleTransformations = map[string]string{
	"amd":      "transform-es2015-modules-amd",
	"commonjs": "transform-es2015-modules-commonjs",
	"systemjs": "transform-es2015-modules-systemjs",
	"umd":      "transform-es2015-modules-umd",
}

// IsDefaultWebInclude reports whether name is one of DefaultWebIncludes.
func IsDefaultWebInclude(name string) bool {
	for _, n := range DefaultWebIncludes {
		if n == name {
			return true
		}
	}
	return false
}

// IsBuiltInName reports whether name follows the core-js module naming used
// for built-ins (es6.*, es7.*, web.*).
func IsBuiltInName(name string) bool {
	return strings.HasPrefix(name, "es6.") || strings.HasPrefix(name, "es7.") || strings.HasPrefix(name, "web.")
}
