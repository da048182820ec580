package release

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/whttp"
)

// Dependency is one entry of a manifest dependency map.
type Dependency struct {
	Name  string
	Range string
}

// Manifest is a package.json document. Edits go through sjson so key order
// and formatting survive a rewrite.
type Manifest struct {
	raw []byte
}

// ParseManifest validates raw as a JSON object.
func ParseManifest(raw []byte) (*Manifest, error) {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, errors.New("package manifest is not a JSON object")
	}
	return &Manifest{raw: append([]byte(nil), raw...)}, nil
}

// LoadManifest reads a package.json file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}

// FetchManifest downloads a package.json.
func FetchManifest(ctx context.Context, client *retryablehttp.Client, url string) (*Manifest, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:     url,
		Method:  http.MethodGet,
		Headers: []whttp.WHTTPHeader{{Name: "User-Agent", Value: CheckerUserAgent}},
	}, client)
	if err != nil {
		return nil, &errs.NetworkError{URL: url, Err: err}
	}
	if res.StatusCode != http.StatusOK {
		return nil, &errs.NetworkError{URL: url, Status: res.StatusCode}
	}
	return ParseManifest(res.Body)
}

// Name returns the package name.
func (m *Manifest) Name() string { return gjson.GetBytes(m.raw, "name").String() }

// Version returns the package version.
func (m *Manifest) Version() string { return gjson.GetBytes(m.raw, "version").String() }

// DevDependencies returns devDependencies in document order.
func (m *Manifest) DevDependencies() []Dependency {
	var out []Dependency
	gjson.GetBytes(m.raw, "devDependencies").ForEach(func(k, v gjson.Result) bool {
		out = append(out, Dependency{Name: k.String(), Range: v.String()})
		return true
	})
	return out
}

// SetVersion sets the package version.
func (m *Manifest) SetVersion(v string) error {
	raw, err := sjson.SetBytes(m.raw, "version", v)
	if err != nil {
		return fmt.Errorf("setting version: %w", err)
	}
	m.raw = raw
	return nil
}

// SetDevDependency sets the range of one dev dependency.
func (m *Manifest) SetDevDependency(name, rng string) error {
	raw, err := sjson.SetBytes(m.raw, "devDependencies."+escapePath(name), rng)
	if err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}
	m.raw = raw
	return nil
}

// Bytes returns the document, ending with a newline.
func (m *Manifest) Bytes() []byte {
	out := append([]byte(nil), m.raw...)
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out
}

// Save writes the document to path.
func (m *Manifest) Save(path string) error {
	return os.WriteFile(path, m.Bytes(), 0o644)
}

func escapePath(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
