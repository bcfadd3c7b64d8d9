// Package pipeline executes one research run: search each keyword,
// deduplicate the candidates, resolve their registration ages, and feed
// matching records back to the task's tracker.
//
// A run tolerates per-keyword and per-domain failures; only internal
// faults or cancellation end it early.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"domainscout/research/internal/task"
)

// SearchFunc returns candidate domains for a keyword.
type SearchFunc func(ctx context.Context, keyword string) ([]string, error)

// ResolveFunc resolves one domain into a record attributed to keyword.
type ResolveFunc func(ctx context.Context, domain, keyword string) task.Record

// Tracker receives incremental progress. The registry implements it bound
// to one task; updates must become visible to status readers immediately.
type Tracker interface {
	Keyword(done, total int, current string)
	Discovered(n int)
	Processed()
	Matched(rec task.Record)
}

// Config tunes a Pipeline.
type Config struct {
	// MaxPerKeyword caps how many candidates per keyword proceed to age
	// resolution when the criteria don't set their own cap. Default: 5.
	MaxPerKeyword int `yaml:"max_per_keyword"`
	// MaxResolvers bounds concurrent resolutions within one task. The
	// global gate still bounds actual outbound calls across tasks.
	// Default: 4.
	MaxResolvers int `yaml:"max_resolvers"`
	// Now supplies the evaluation instant for age filtering. Default:
	// time.Now. Injected so age math is deterministic under test.
	Now func() time.Time `yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxPerKeyword <= 0 {
		c.MaxPerKeyword = 5
	}
	if c.MaxResolvers <= 0 {
		c.MaxResolvers = 4
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Pipeline is stateless; one instance serves every task.
type Pipeline struct {
	search  SearchFunc
	resolve ResolveFunc
	config  Config
	logger  *slog.Logger
}

// New creates a Pipeline.
func New(search SearchFunc, resolve ResolveFunc, cfg Config, logger *slog.Logger) *Pipeline {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{search: search, resolve: resolve, config: cfg, logger: logger}
}

// Run drives one task to completion. It returns nil when all keywords
// were attempted, ctx.Err() on cancellation, and any other error only for
// faults that should mark the task failed.
//
// Keywords are processed in order; a domain surfaced by two keywords is
// resolved once, attributed to the keyword that found it first. Matched
// records arrive at the tracker in completion order, since resolutions
// within a keyword run concurrently.
func (p *Pipeline) Run(ctx context.Context, crit task.Criteria, tr Tracker) error {
	now := p.config.Now()
	total := len(crit.Keywords)
	perKeyword := crit.MaxPerKeyword
	if perKeyword <= 0 {
		perKeyword = p.config.MaxPerKeyword
	}

	seen := make(map[string]struct{})
	var mu sync.Mutex // guards matched against concurrent resolvers
	matched := 0

	for i, kw := range crit.Keywords {
		if err := ctx.Err(); err != nil {
			return err
		}
		tr.Keyword(i, total, kw)

		candidates, err := p.search(ctx, kw)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Absorbed: a broken search response means zero candidates
			// for this keyword, not a dead task.
			p.logger.Warn("keyword search failed", "keyword", kw, "error", err)
			continue
		}

		mu.Lock()
		full := crit.Limit > 0 && matched >= crit.Limit
		mu.Unlock()
		if full {
			// The keyword was still attempted; its candidates just have
			// no room left in the result set.
			continue
		}

		fresh := make([]string, 0, len(candidates))
		for _, d := range candidates {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			fresh = append(fresh, d)
			if len(fresh) == perKeyword {
				break
			}
		}
		tr.Discovered(len(fresh))

		g := new(errgroup.Group)
		g.SetLimit(p.config.MaxResolvers)
		for _, domain := range fresh {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				// The call itself is not aborted on cancellation; its
				// result is discarded below instead.
				rec := p.resolve(context.WithoutCancel(ctx), domain, kw)
				if err := ctx.Err(); err != nil {
					return err
				}
				tr.Processed()
				if !crit.Matches(rec, now) {
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				if crit.Limit > 0 && matched >= crit.Limit {
					return nil
				}
				matched++
				tr.Matched(rec)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	tr.Keyword(total, total, "")
	return ctx.Err()
}
