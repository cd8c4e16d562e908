package gateway

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Class is the routing class of an intercepted request. It determines which
// cache strategy serves the request; it is derived per request, never stored.
type Class string

const (
	ClassAPI          Class = "api"
	ClassNavigation   Class = "navigation"
	ClassDynamicAsset Class = "dynamic_asset"
	ClassOther        Class = "other"
)

// ClassifierConfig carries the classification inputs. Injected at
// construction so routers for different deployments can coexist in tests.
type ClassifierConfig struct {
	// APIPrefix marks origin API calls, e.g. "/api/".
	APIPrefix string
	// FontHosts are third-party hosts whose responses are safe to cache
	// aggressively (matched against the request host, subdomains included).
	FontHosts []string
	// AssetExtensions are path suffixes classified as dynamic assets,
	// e.g. ".png", ".woff2".
	AssetExtensions []string
}

type predicate struct {
	class Class
	match func(r *http.Request, u *url.URL) bool
}

// Classifier assigns a routing class to every intercepted request.
// Predicates are tested in priority order; the first match wins.
type Classifier struct {
	predicates []predicate
}

// NewClassifier builds a classifier from the supplied configuration.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	apiPrefix := cfg.APIPrefix
	fontHosts := append([]string(nil), cfg.FontHosts...)
	extensions := append([]string(nil), cfg.AssetExtensions...)

	return &Classifier{
		predicates: []predicate{
			{
				class: ClassAPI,
				match: func(_ *http.Request, u *url.URL) bool {
					return apiPrefix != "" && strings.HasPrefix(u.Path, apiPrefix)
				},
			},
			{
				class: ClassNavigation,
				match: func(r *http.Request, _ *url.URL) bool {
					return isNavigation(r)
				},
			},
			{
				class: ClassDynamicAsset,
				match: func(_ *http.Request, u *url.URL) bool {
					if hostMatches(u.Host, fontHosts) {
						return true
					}
					ext := strings.ToLower(path.Ext(u.Path))
					for _, want := range extensions {
						if ext == want {
							return true
						}
					}
					return false
				},
			},
		},
	}
}

// Classify returns the routing class for the request. The catch-all OTHER
// makes classification total; it can never fail.
func (c *Classifier) Classify(r *http.Request) Class {
	u := RequestURL(r)
	for _, p := range c.predicates {
		if p.match(r, u) {
			return p.class
		}
	}
	return ClassOther
}

// RequestURL returns the URL the client actually asked for. Proxy-style
// absolute-form requests keep their host; origin-form requests stay relative.
func RequestURL(r *http.Request) *url.URL {
	if r.URL.IsAbs() {
		return r.URL
	}
	cpy := *r.URL
	cpy.Scheme = ""
	cpy.Host = ""
	return &cpy
}

func isNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func hostMatches(host string, allowed []string) bool {
	if host == "" {
		return false
	}
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	for _, want := range allowed {
		if host == want || strings.HasSuffix(host, "."+want) {
			return true
		}
	}
	return false
}
