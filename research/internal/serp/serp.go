// Package serp adapts the external keyword-search provider into lists of
// candidate domains.
//
// The provider answers JSON with ranked result objects carrying page URLs.
// The adapter walks the configured result paths, pulls the URLs, and
// reduces them to deduplicated registrable domains in ranking order.
package serp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"domainscout/research/internal/fetcher"
)

// Config describes how to call and read the search provider.
type Config struct {
	// URLTemplate is the search endpoint with a {query} placeholder,
	// e.g. "https://google-search116.p.rapidapi.com/?query={query}&gl=US".
	URLTemplate string `yaml:"url_template"`
	// Headers are sent on every request, ${ENV_VAR} expanded.
	Headers map[string]string `yaml:"headers"`
	// ResultPaths are dot-notation paths tried for the result array.
	// Defaults cover the provider's known shapes: "results", "organic".
	ResultPaths []string `yaml:"result_paths"`
	// URLKeys are the object keys tried for the page URL. Default: url, link.
	URLKeys []string `yaml:"url_keys"`
}

func (c *Config) defaults() {
	if len(c.ResultPaths) == 0 {
		c.ResultPaths = []string{"results", "organic"}
	}
	if len(c.URLKeys) == 0 {
		c.URLKeys = []string{"url", "link"}
	}
}

// PayloadError reports a provider payload with no recognizable result
// array. The pipeline treats it as zero candidates, not a task failure.
type PayloadError struct {
	Keyword string
	Detail  string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("serp: malformed payload for %q: %s", e.Keyword, e.Detail)
}

// Adapter turns keywords into candidate domains.
type Adapter struct {
	client *fetcher.Client
	config Config
	logger *slog.Logger
}

// New creates an Adapter.
func New(client *fetcher.Client, cfg Config, logger *slog.Logger) *Adapter {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{client: client, config: cfg, logger: logger}
}

// Search returns the candidate domains for keyword, lowercased and
// deduplicated, in the provider's ranking order. An empty list is a valid
// outcome. A payload without any known result array yields a PayloadError.
func (a *Adapter) Search(ctx context.Context, keyword string) ([]string, error) {
	endpoint := strings.ReplaceAll(a.config.URLTemplate, "{query}", url.QueryEscape(keyword))

	raw, err := a.client.DoJSON(ctx, "serp", http.MethodGet, endpoint, a.config.Headers, nil)
	if err != nil {
		if fetcher.IsMalformed(err) {
			return nil, &PayloadError{Keyword: keyword, Detail: err.Error()}
		}
		return nil, err
	}

	urls, found := a.resultURLs(raw)
	if !found {
		return nil, &PayloadError{Keyword: keyword, Detail: "no result array at configured paths"}
	}

	seen := make(map[string]struct{}, len(urls))
	domains := make([]string, 0, len(urls))
	for _, u := range urls {
		d, ok := Domain(u)
		if !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	return domains, nil
}

// resultURLs walks every configured path and collects URLs from the
// objects found there. found is false only when no path resolved to an
// array at all.
func (a *Adapter) resultURLs(raw any) (urls []string, found bool) {
	for _, path := range a.config.ResultPaths {
		items, ok := walk(raw, path)
		if !ok {
			continue
		}
		found = true
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range a.config.URLKeys {
				if s, ok := obj[key].(string); ok && s != "" {
					urls = append(urls, s)
					break
				}
			}
		}
	}
	return urls, found
}

// walk resolves a dot-notation path to an array. An empty path means the
// root itself must be an array.
func walk(v any, path string) ([]any, bool) {
	current := v
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = obj[part]
			if !ok {
				return nil, false
			}
		}
	}
	arr, ok := current.([]any)
	return arr, ok
}

// Domain reduces a page URL to its registrable domain: lowercased host,
// port and "www." stripped, then cut to eTLD+1. Hosts the public suffix
// list cannot place (bare IPs, single labels) fall back to the cleaned
// host when it still contains a dot.
func Domain(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") || strings.HasPrefix(host, ".") {
		return "", false
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d, true
	}
	return host, true
}
