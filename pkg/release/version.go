package release

import (
	"strings"

	"golang.org/x/mod/semver"
)

// canonical turns an npm version or simple range ("^6.26.0", "~6.1", "6.0.0")
// into the "v"-prefixed form semver expects.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "^~=>< ")
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return ""
	}
	return "v" + v
}

// StripRange drops the range operator of an npm dependency spec.
func StripRange(spec string) string {
	return strings.TrimPrefix(canonical(spec), "v")
}

// CompareVersions compares two npm versions. Invalid versions sort before
// valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// ValidVersion reports whether v is a full semantic version, with or without
// a range operator.
func ValidVersion(v string) bool {
	return semver.IsValid(canonical(v))
}

// MaxVersion returns the highest valid version of vs, or "" when none is
// valid.
func MaxVersion(vs ...string) string {
	best := ""
	for _, v := range vs {
		if !ValidVersion(v) {
			continue
		}
		if best == "" || CompareVersions(v, best) > 0 {
			best = StripRange(v)
		}
	}
	return best
}
