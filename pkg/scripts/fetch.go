package scripts

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/whttp"
)

// HTTPFetcher loads scripts over HTTP(S) and from file:// URLs. Only a 200
// response counts as loaded.
type HTTPFetcher struct {
	Client *retryablehttp.Client
	// Origin, when set together with SameSite, restricts fetches to hosts
	// sharing the origin's registrable domain.
	Origin   *url.URL
	SameSite bool
}

// NewHTTPFetcher returns a fetcher that does not retry.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: whttp.NewClient(0, 0)}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &errs.NetworkError{URL: rawURL, Err: err}
	}
	switch u.Scheme {
	case "file":
		body, err := os.ReadFile(u.Path)
		if err != nil {
			return "", &errs.NetworkError{URL: rawURL, Err: err}
		}
		return string(body), nil
	case "http", "https":
	default:
		return "", &errs.NetworkError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	if f.SameSite && f.Origin != nil {
		same, err := SameSite(f.Origin.Hostname(), u.Hostname())
		if err != nil {
			return "", &errs.NetworkError{URL: rawURL, Err: err}
		}
		if !same {
			return "", &errs.NetworkError{URL: rawURL, Err: fmt.Errorf("%s is not on the same site as %s", u.Hostname(), f.Origin.Hostname())}
		}
	}

	client := f.Client
	if client == nil {
		client = whttp.NewClient(0, 0)
	}
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:     rawURL,
		Method:  http.MethodGet,
		Headers: []whttp.WHTTPHeader{{Name: "Accept", Value: "text/plain, */*"}},
	}, client)
	if err != nil {
		return "", &errs.NetworkError{URL: rawURL, Err: err}
	}
	if res.StatusCode != http.StatusOK {
		return "", &errs.NetworkError{URL: rawURL, Status: res.StatusCode}
	}
	return string(res.Body), nil
}

// SameSite reports whether two hosts share a registrable domain. IP
// addresses and single-label hosts must match exactly.
func SameSite(a, b string) (bool, error) {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true, nil
	}
	if net.ParseIP(a) != nil || net.ParseIP(b) != nil || !strings.Contains(a, ".") || !strings.Contains(b, ".") {
		return false, nil
	}
	da, err := publicsuffix.Domain(a)
	if err != nil {
		return false, err
	}
	db, err := publicsuffix.Domain(b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}
