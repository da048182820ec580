package release

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/whttp"
)

const (
	// DefaultRegistry is the public npm registry.
	DefaultRegistry = "https://registry.npmjs.com"
	// CheckerUserAgent identifies version lookups to npm and GitHub.
	CheckerUserAgent = "Babel-Standalone-Update-Checker/1.0"

	abbreviatedMetadata = "application/vnd.npm.install-v1+json"
	defaultConcurrency  = 8
)

// NPMClient looks up package metadata on an npm registry.
type NPMClient struct {
	Client      *retryablehttp.Client
	Registry    string
	Concurrency int
}

// NewNPMClient returns a client for the public registry with a couple of
// retries.
func NewNPMClient() *NPMClient {
	return &NPMClient{
		Client:      whttp.NewClient(2, 30*time.Second),
		Registry:    DefaultRegistry,
		Concurrency: defaultConcurrency,
	}
}

func (c *NPMClient) packageURL(name string) string {
	registry := strings.TrimSuffix(c.Registry, "/")
	if registry == "" {
		registry = DefaultRegistry
	}
	// Scoped names escape the slash: @babel%2Fcore.
	return registry + "/" + url.PathEscape(name)
}

// Latest returns the "latest" dist-tag of a package.
func (c *NPMClient) Latest(ctx context.Context, name string) (string, error) {
	u := c.packageURL(name)
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:    u,
		Method: http.MethodGet,
		Headers: []whttp.WHTTPHeader{
			{Name: "Accept", Value: abbreviatedMetadata},
			{Name: "User-Agent", Value: CheckerUserAgent},
		},
	}, c.Client)
	if err != nil {
		return "", &errs.NetworkError{URL: u, Err: err}
	}
	if res.StatusCode != http.StatusOK {
		return "", &errs.NetworkError{URL: u, Status: res.StatusCode}
	}
	latest := gjson.GetBytes(res.Body, `dist-tags.latest`).String()
	if latest == "" {
		return "", fmt.Errorf("%s: no latest dist-tag", name)
	}
	return latest, nil
}

// LatestAll looks up every name using a bounded worker pool. The returned map
// only holds successful lookups.
func (c *NPMClient) LatestAll(ctx context.Context, names []string) (map[string]string, []error) {
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out, nil
	}
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if concurrency > len(names) {
		concurrency = len(names)
	}

	nameChan := make(chan string, len(names))

	var mu sync.Mutex
	var allErrors []error

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range nameChan {
				v, err := c.Latest(ctx, name)
				mu.Lock()
				if err != nil {
					allErrors = append(allErrors, err)
				} else {
					out[name] = v
				}
				mu.Unlock()
			}
		}()
	}

	for _, name := range names {
		nameChan <- name
	}
	close(nameChan)
	wg.Wait()

	return out, allErrors
}
