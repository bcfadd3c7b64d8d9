// Package research orchestrates asynchronous domain research: keyword
// searches fanned out against a search provider, per-domain WHOIS age
// resolution bounded by a process-wide concurrency gate, and an in-memory
// task registry with progress tracking, cancellation, and eviction.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"domainscout/idgen"
	"domainscout/research/internal/export"
	"domainscout/research/internal/fetcher"
	"domainscout/research/internal/gate"
	"domainscout/research/internal/metrics"
	"domainscout/research/internal/pipeline"
	"domainscout/research/internal/registry"
	"domainscout/research/internal/serp"
	"domainscout/research/internal/task"
	"domainscout/research/internal/whois"
)

// Service is the research orchestrator. One instance per process; all
// tasks share its gate and its registry.
type Service struct {
	registry *registry.Registry
	pipeline *pipeline.Pipeline
	config   *Config
	logger   *slog.Logger
	now      func() time.Time

	ctx context.Context // run context, set by Start
}

// ServiceOption customizes Service construction.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	registerer prometheus.Registerer
	search     pipeline.SearchFunc
	resolve    pipeline.ResolveFunc
	newID      idgen.Generator
	now        func() time.Time
}

// WithRegisterer sets the prometheus registerer. Defaults to an isolated
// registry; main passes prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) ServiceOption {
	return func(o *serviceOptions) { o.registerer = reg }
}

// WithSearcher replaces the search provider adapter, for tests.
func WithSearcher(fn pipeline.SearchFunc) ServiceOption {
	return func(o *serviceOptions) { o.search = fn }
}

// WithResolver replaces the WHOIS resolver, for tests.
func WithResolver(fn pipeline.ResolveFunc) ServiceOption {
	return func(o *serviceOptions) { o.resolve = fn }
}

// WithIDGenerator overrides the task ID generator.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(o *serviceOptions) { o.newID = gen }
}

// WithClock fixes the evaluation clock, for deterministic age math.
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) { o.now = now }
}

// New creates the Service. A nil cfg gets full defaults.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}

	m := metrics.New(o.registerer)
	g := gate.New(cfg.Gate)
	client := fetcher.New(g, cfg.Fetch, m, logger)

	search := o.search
	if search == nil {
		search = serp.New(client, cfg.Search, logger).Search
	}
	resolve := o.resolve
	if resolve == nil {
		resolve = whois.New(client, cfg.Whois, logger).Resolve
	}

	pipeCfg := cfg.Pipeline
	pipeCfg.Now = o.now

	regOpts := []registry.Option{registry.WithClock(o.now)}
	if o.newID != nil {
		regOpts = append(regOpts, registry.WithIDGenerator(o.newID))
	}

	return &Service{
		registry: registry.New(cfg.Registry, m, logger, regOpts...),
		pipeline: pipeline.New(search, resolve, pipeCfg, logger),
		config:   cfg,
		logger:   logger,
		now:      o.now,
	}
}

// Start launches background maintenance and anchors every task run to
// ctx: when ctx ends, running tasks wind down as cancelled and the
// eviction sweep stops.
func (s *Service) Start(ctx context.Context) {
	s.ctx = ctx
	go s.registry.Run(ctx)
}

func (s *Service) runContext() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// Submit validates criteria, registers a queued task, and starts its run
// asynchronously. Returns the fresh task ID immediately.
func (s *Service) Submit(crit Criteria) (string, error) {
	if err := crit.Validate(); err != nil {
		return "", err
	}
	// Owned copy: later caller mutations must not reach the running task.
	crit.Keywords = append([]string(nil), crit.Keywords...)

	runCtx, cancel := context.WithCancel(s.runContext())
	id := s.registry.Create(crit, cancel)
	s.logger.Info("task submitted", "task_id", id, "keywords", len(crit.Keywords))

	go s.run(runCtx, id, crit)
	return id, nil
}

// run drives one task to a terminal state. Whatever happens inside the
// pipeline, the task ends terminal and the process survives.
func (s *Service) run(ctx context.Context, id string, crit Criteria) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("pipeline panic", "task_id", id, "panic", p)
			s.registry.Finish(id, task.StatusFailed, fmt.Sprintf("internal fault: %v", p))
		}
	}()

	s.registry.SetRunning(id)
	err := s.pipeline.Run(ctx, crit, s.registry.Tracker(id))
	switch {
	case err == nil:
		s.registry.Finish(id, task.StatusCompleted, "")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.registry.Finish(id, task.StatusCancelled, "")
	default:
		s.registry.Finish(id, task.StatusFailed, err.Error())
	}
}

// Status returns a read-only snapshot of the task.
func (s *Service) Status(id string) (State, error) {
	return s.registry.Snapshot(id)
}

// Results returns the matched records of a completed task, rendered with
// ages evaluated at call time.
func (s *Service) Results(id string) ([]RecordView, error) {
	st, err := s.completed(id)
	if err != nil {
		return nil, err
	}
	return Render(st.Records, s.now()), nil
}

// Cancel signals the task's run to stop. Best-effort; no-op when the task
// is already terminal.
func (s *Service) Cancel(id string) error {
	return s.registry.Cancel(id)
}

// Filter re-filters a completed task's records without re-running the
// research.
func (s *Service) Filter(id string, opts FilterOptions) ([]RecordView, error) {
	st, err := s.completed(id)
	if err != nil {
		return nil, err
	}
	return Render(task.Filter(st.Records, opts, s.now()), s.now()), nil
}

// Export serializes a completed task's records. format is "csv" (default)
// or "xlsx". A non-nil opts exports the filtered view instead of the raw
// result set. The returned content type and filename suit a download
// response.
func (s *Service) Export(id, format string, opts *FilterOptions) (data []byte, contentType, filename string, err error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, "", "", err
	}
	st, err := s.completed(id)
	if err != nil {
		return nil, "", "", err
	}
	records := st.Records
	if opts != nil {
		records = task.Filter(records, *opts, s.now())
	}
	data, err = export.Bytes(records, f, s.now())
	if err != nil {
		return nil, "", "", err
	}
	filename = fmt.Sprintf("domain_research_%s.%s", id, f.Extension())
	return data, f.ContentType(), filename, nil
}

// Counts returns the number of active and total tasks, for health checks.
func (s *Service) Counts() (active, total int) {
	return s.registry.Counts()
}

func (s *Service) completed(id string) (State, error) {
	st, err := s.registry.Snapshot(id)
	if err != nil {
		return State{}, err
	}
	if st.Status != task.StatusCompleted {
		return State{}, fmt.Errorf("%w: task is %s", ErrNotReady, st.Status)
	}
	return st, nil
}
