package release

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sw33tLie/jsenv/pkg/logger"
	"github.com/sw33tLie/jsenv/pkg/whttp"
)

// DefaultManifestURL is the babel-standalone package.json on GitHub.
const DefaultManifestURL = "https://raw.githubusercontent.com/babel/babel-standalone/master/package.json"

// DefaultPrefix selects the dev dependencies that make up "Babel".
const DefaultPrefix = "babel-"

// DefaultBlacklist holds babel-prefixed packages versioned independently of
// Babel itself.
var DefaultBlacklist = []string{"babel-loader"}

// Checker determines the latest stable Babel version from the dev
// dependencies of a manifest.
type Checker struct {
	NPM         *NPMClient
	HTTP        *retryablehttp.Client
	ManifestURL string
	Prefix      string
	Blacklist   []string
	Log         logger.Logger
}

// NewChecker returns a checker for the babel-standalone manifest on GitHub.
func NewChecker(log logger.Logger) *Checker {
	return &Checker{
		NPM:         NewNPMClient(),
		HTTP:        whttp.NewClient(2, 0),
		ManifestURL: DefaultManifestURL,
		Prefix:      DefaultPrefix,
		Blacklist:   DefaultBlacklist,
		Log:         log,
	}
}

// BabelPackages returns the dev dependency names the checker considers, in
// manifest order.
func (c *Checker) BabelPackages(m *Manifest) []string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	var names []string
	for _, dep := range m.DevDependencies() {
		if strings.HasPrefix(dep.Name, prefix) && !c.blacklisted(dep.Name) {
			names = append(names, dep.Name)
		}
	}
	return names
}

func (c *Checker) blacklisted(name string) bool {
	for _, b := range c.Blacklist {
		if b == name {
			return true
		}
	}
	return false
}

// Latest fetches the configured manifest and returns the latest Babel version
// published on npm.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	client := c.HTTP
	if client == nil {
		client = whttp.NewClient(2, 0)
	}
	m, err := FetchManifest(ctx, client, c.ManifestURL)
	if err != nil {
		return "", err
	}
	return c.LatestFor(ctx, m)
}

// LatestFor returns the highest "latest" dist-tag among the Babel packages
// of m. Every lookup must succeed.
func (c *Checker) LatestFor(ctx context.Context, m *Manifest) (string, error) {
	log := logger.OrNop(c.Log)
	names := c.BabelPackages(m)
	if len(names) == 0 {
		return "", fmt.Errorf("no %s dev dependencies in manifest", c.Prefix)
	}
	npm := c.NPM
	if npm == nil {
		npm = NewNPMClient()
	}
	versions, errList := npm.LatestAll(ctx, names)
	if len(errList) > 0 {
		return "", fmt.Errorf("looking up %d of %d packages failed, first error: %w", len(errList), len(names), errList[0])
	}

	all := make([]string, 0, len(names))
	for _, name := range names {
		log.Debugf("%s latest is %s", name, versions[name])
		all = append(all, versions[name])
	}
	latest := MaxVersion(all...)
	if latest == "" {
		return "", fmt.Errorf("npm returned no valid versions for %s", strings.Join(names, ", "))
	}
	return latest, nil
}

// LatestInManifest returns the highest version among the Babel dev
// dependency ranges already written in m.
func (c *Checker) LatestInManifest(m *Manifest) string {
	byName := make(map[string]string)
	for _, dep := range m.DevDependencies() {
		byName[dep.Name] = dep.Range
	}
	var ranges []string
	for _, name := range c.BabelPackages(m) {
		ranges = append(ranges, byName[name])
	}
	return MaxVersion(ranges...)
}
