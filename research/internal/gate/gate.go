// Package gate bounds concurrent outbound provider calls for the whole
// process. One Gate is shared by reference across every pipeline run, so
// the in-flight ceiling holds across tasks, not per task.
package gate

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config tunes the gate.
type Config struct {
	// MaxInFlight is the ceiling on simultaneous outbound calls. Default: 2.
	MaxInFlight int `yaml:"max_in_flight"`
	// MinInterval spaces out call starts with a token bucket. 0 disables
	// pacing; queueing on the semaphore is then the only throttle.
	MinInterval time.Duration `yaml:"min_interval"`
}

func (c *Config) defaults() {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 2
	}
}

// Gate is the global limiter. Callers Acquire before an outbound call and
// Release when it returns.
type Gate struct {
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	inFlight atomic.Int64
}

// New creates a Gate.
func New(cfg Config) *Gate {
	cfg.defaults()
	g := &Gate{sem: semaphore.NewWeighted(int64(cfg.MaxInFlight))}
	if cfg.MinInterval > 0 {
		g.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return g
}

// Acquire blocks until a slot frees (and, when pacing is on, until the
// limiter allows another start). Returns ctx.Err() if ctx ends first.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sem.Release(1)
			return err
		}
	}
	g.inFlight.Add(1)
	return nil
}

// Release frees the slot taken by Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Penalize consumes one future pacing token, pushing the next call start
// out by a refill period. Called after a provider signals throttling.
// No-op without pacing.
func (g *Gate) Penalize() {
	if g.limiter != nil {
		g.limiter.Reserve()
	}
}

// InFlight returns the number of calls currently holding a slot.
func (g *Gate) InFlight() int64 {
	return g.inFlight.Load()
}
