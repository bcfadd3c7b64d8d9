// Package whois resolves a domain's registration age through the external
// WHOIS provider.
//
// Lookups never fail hard: every outcome is encoded in the record's
// status, so one dead domain cannot abort a research run.
package whois

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"domainscout/research/internal/fetcher"
	"domainscout/research/internal/task"
)

// Config describes how to call and read the WHOIS provider.
type Config struct {
	// Endpoint receives a POST with body {"query": "<domain>"}.
	Endpoint string `yaml:"endpoint"`
	// Headers are sent on every request, ${ENV_VAR} expanded.
	Headers map[string]string `yaml:"headers"`
	// CreatedPath is the dot-notation path of the creation date field.
	// The value there may be a string or a list of strings (some
	// registrars report one date per registrar event); the first entry
	// wins. Default: "result.creation_date".
	CreatedPath string `yaml:"created_path"`
}

func (c *Config) defaults() {
	if c.CreatedPath == "" {
		c.CreatedPath = "result.creation_date"
	}
}

// Resolver turns domains into task records.
type Resolver struct {
	client *fetcher.Client
	config Config
	logger *slog.Logger
}

// New creates a Resolver.
func New(client *fetcher.Client, cfg Config, logger *slog.Logger) *Resolver {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, config: cfg, logger: logger}
}

// Resolve looks up domain and returns its record, attributed to keyword.
// The status distinguishes provider throttling (worth retrying in a later
// run) from permanent failures and from answers without a parseable date.
// Age is always computed against the caller's evaluation instant, never an
// implicit wall clock.
func (r *Resolver) Resolve(ctx context.Context, domain, keyword string) task.Record {
	rec := task.Record{Domain: domain, Keyword: keyword}

	body, err := json.Marshal(map[string]string{"query": domain})
	if err != nil {
		rec.Status = task.LookupFailed
		return rec
	}

	raw, err := r.client.DoJSON(ctx, "whois", http.MethodPost, r.config.Endpoint, r.config.Headers, body)
	if err != nil {
		switch {
		case fetcher.IsRateLimited(err):
			rec.Status = task.LookupRateLimited
		case fetcher.IsMalformed(err):
			rec.Status = task.LookupNotFound
		default:
			rec.Status = task.LookupFailed
		}
		r.logger.Debug("whois lookup failed", "domain", domain, "status", rec.Status, "error", err)
		return rec
	}

	created, ok := CreationDate(raw, r.config.CreatedPath)
	if !ok {
		rec.Status = task.LookupNotFound
		return rec
	}
	rec.Created = created
	rec.Status = task.LookupOK
	return rec
}

// CreationDate digs the creation date out of a decoded WHOIS payload.
func CreationDate(raw any, path string) (time.Time, bool) {
	current := raw
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return time.Time{}, false
		}
		current, ok = obj[part]
		if !ok {
			return time.Time{}, false
		}
	}

	var s string
	switch v := current.(type) {
	case string:
		s = v
	case []any:
		if len(v) == 0 {
			return time.Time{}, false
		}
		s, _ = v[0].(string)
	default:
		return time.Time{}, false
	}
	return ParseDate(s)
}

// Layouts registrars actually emit, most common first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"2006/01/02",
	"20060102",
	"January 2, 2006",
	"Mon Jan 2 15:04:05 MST 2006",
	"2006-01-02T15:04:05-0700",
}

// ParseDate parses a WHOIS date string against the known layouts.
// An unparseable string reports false rather than an error; the caller
// records the domain as not_found.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
