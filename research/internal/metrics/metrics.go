// Package metrics exposes prometheus instrumentation for the research
// service: task lifecycle counters and outbound provider call gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksFinished  *prometheus.CounterVec
	TasksRunning   prometheus.Gauge
	TasksEvicted   prometheus.Counter

	ProviderCalls    *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	CallsInFlight    prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in main; tests use an isolated registry. A nil reg gets a private one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		TasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "domainscout_tasks_submitted_total",
			Help: "Total number of research tasks submitted",
		}),
		TasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainscout_tasks_finished_total",
			Help: "Total number of research tasks reaching a terminal state",
		}, []string{"status"}),
		TasksRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "domainscout_tasks_running",
			Help: "Number of research tasks currently running",
		}),
		TasksEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "domainscout_tasks_evicted_total",
			Help: "Total number of terminal tasks removed by the eviction sweep",
		}),
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainscout_provider_calls_total",
			Help: "Total outbound provider calls, by provider",
		}, []string{"provider"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainscout_provider_failures_total",
			Help: "Total failed provider calls after retries, by provider and verdict",
		}, []string{"provider", "verdict"}),
		CallsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "domainscout_provider_calls_in_flight",
			Help: "Outbound provider calls currently in flight across all tasks",
		}),
	}
}
