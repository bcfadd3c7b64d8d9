// Package registry is the process-wide store of research task state.
//
// It owns every task.State: pipelines mutate their own task only through
// the tracker the registry hands them, callers only see snapshots, and a
// periodic sweep evicts terminal tasks past the retention window. Nothing
// here survives a process restart; task state is ephemeral on purpose.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"domainscout/idgen"
	"domainscout/research/internal/metrics"
	"domainscout/research/internal/task"
)

// ErrNotFound is returned for unknown or already evicted task IDs.
var ErrNotFound = errors.New("registry: task not found")

// Config tunes the eviction sweep.
type Config struct {
	// SweepInterval is how often the background sweep runs. Default: 5m.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// Retention is how long terminal tasks stay queryable. Default: 1h.
	Retention time.Duration `yaml:"retention"`
}

func (c *Config) defaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
}

type entry struct {
	state  task.State
	cancel context.CancelFunc
}

// Registry maps task IDs to their state. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tasks   map[string]*entry
	config  Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	newID   idgen.Generator
	now     func() time.Time
}

// Option customizes a Registry.
type Option func(*Registry)

// WithIDGenerator overrides the task ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(r *Registry) { r.newID = gen }
}

// WithClock overrides the registry clock, for deterministic sweep tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry. m may be nil.
func New(cfg Config, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Registry {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tasks:   make(map[string]*entry),
		config:  cfg,
		metrics: m,
		logger:  logger,
		newID:   idgen.Default,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a queued task and returns its fresh ID. cancel is the
// task run's cancel function, invoked by Cancel.
func (r *Registry) Create(crit task.Criteria, cancel context.CancelFunc) string {
	id := r.newID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = &entry{
		state: task.State{
			ID:        id,
			Criteria:  crit,
			Status:    task.StatusQueued,
			Progress:  task.Progress{KeywordsTotal: len(crit.Keywords)},
			CreatedAt: r.now(),
		},
		cancel: cancel,
	}
	if r.metrics != nil {
		r.metrics.TasksSubmitted.Inc()
	}
	return id
}

// SetRunning moves a queued task to running. No-op for unknown or
// already terminal tasks.
func (r *Registry) SetRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok || e.state.Status != task.StatusQueued {
		return
	}
	e.state.Status = task.StatusRunning
	if r.metrics != nil {
		r.metrics.TasksRunning.Inc()
	}
}

// Finish moves a task to a terminal status and stamps its completion
// time. errMsg is recorded only for failed tasks. Later calls against an
// already terminal task are ignored, so a cancel racing a natural
// completion keeps whichever verdict landed first.
func (r *Registry) Finish(id string, status task.Status, errMsg string) {
	if !status.Terminal() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[id]
	if !ok || e.state.Status.Terminal() {
		return
	}
	wasRunning := e.state.Status == task.StatusRunning
	e.state.Status = status
	e.state.CompletedAt = r.now()
	if status == task.StatusFailed {
		e.state.Err = errMsg
	}
	if r.metrics != nil {
		if wasRunning {
			r.metrics.TasksRunning.Dec()
		}
		r.metrics.TasksFinished.WithLabelValues(string(status)).Inc()
	}
	r.logger.Info("task finished", "task_id", id, "status", status,
		"matched", e.state.Progress.Matched, "processed", e.state.Progress.Processed)
}

// Cancel signals the task's run to stop. Best-effort: a no-op on terminal
// tasks, ErrNotFound for unknown IDs. The status flips to cancelled when
// the run observes the signal, not here.
func (r *Registry) Cancel(id string) error {
	// Status and cancel func are read under the lock; Finish writes the
	// status under the write lock concurrently.
	r.mu.RLock()
	e, ok := r.tasks[id]
	var terminal bool
	var cancel context.CancelFunc
	if ok {
		terminal = e.state.Status.Terminal()
		cancel = e.cancel
	}
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if terminal {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// Snapshot returns a deep copy of the task's state.
func (r *Registry) Snapshot(id string) (task.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tasks[id]
	if !ok {
		return task.State{}, ErrNotFound
	}
	return e.state.Clone(), nil
}

// Counts returns the number of non-terminal and total tasks.
func (r *Registry) Counts() (active, total int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.tasks {
		if !e.state.Status.Terminal() {
			active++
		}
	}
	return active, len(r.tasks)
}

// Sweep evicts every terminal task whose completion is strictly older
// than maxAge relative to now, and returns how many were removed. Queued
// and running tasks are never evicted.
func (r *Registry) Sweep(now time.Time, maxAge time.Duration) int {
	cutoff := now.Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.tasks {
		if !e.state.Status.Terminal() {
			continue
		}
		if !e.state.CompletedAt.Before(cutoff) {
			continue
		}
		delete(r.tasks, id)
		removed++
	}
	if removed > 0 {
		if r.metrics != nil {
			r.metrics.TasksEvicted.Add(float64(removed))
		}
		r.logger.Debug("sweep evicted tasks", "removed", removed, "remaining", len(r.tasks))
	}
	return removed
}

// Run sweeps on a fixed interval until ctx ends.
func (r *Registry) Run(ctx context.Context) {
	r.logger.Info("registry sweep started",
		"interval", r.config.SweepInterval, "retention", r.config.Retention)
	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("registry sweep stopped")
			return
		case <-ticker.C:
			r.Sweep(r.now(), r.config.Retention)
		}
	}
}
