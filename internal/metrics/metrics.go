package metrics

import (
	"net/http"
	"time"

	"bsm/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results.
const (
	CycleOK              = "ok"
	CycleFeedUnavailable = "feed_unavailable"
	CycleStoreFailed     = "store_unavailable"
	CyclePanicked        = "panic"
	CycleCanceled        = "canceled"
)

// Metrics owns service registry and collectors.
// Params: none.
// Returns: collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal          *prometheus.CounterVec
	CycleDuration        prometheus.Histogram
	FeedServers          prometheus.Gauge
	Rules                prometheus.Gauge
	TransitionEntries    prometheus.Gauge
	NotificationsTotal   *prometheus.CounterVec
	UnresolvableSkips    prometheus.Counter
	RulePanicsTotal      prometheus.Counter
	CommandsTotal        *prometheus.CounterVec
	LastSuccessfulCycleS prometheus.Gauge
}

// New creates metrics on a fresh registry with Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsm_cycles_total",
				Help: "Total number of poll cycles by result",
			},
			[]string{"result"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bsm_cycle_duration_seconds",
				Help:    "Duration of one poll-evaluate-notify cycle",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		FeedServers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bsm_feed_servers",
				Help: "Servers returned by the last successful feed fetch",
			},
		),
		Rules: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bsm_rules",
				Help: "Alert rules read in the last cycle",
			},
		),
		TransitionEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bsm_transition_entries",
				Help: "Tracked rule/match transition entries",
			},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsm_notifications_total",
				Help: "Threshold notifications by kind and delivery result",
			},
			[]string{"kind", "result"}, // result: delivered, failed
		),
		UnresolvableSkips: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bsm_channel_unresolvable_skips_total",
				Help: "Rules skipped for a cycle because their channel could not be resolved",
			},
		),
		RulePanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bsm_rule_panics_total",
				Help: "Rule evaluations aborted by a recovered panic",
			},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsm_commands_total",
				Help: "Handled slash commands by subcommand and result",
			},
			[]string{"command", "result"},
		),
		LastSuccessfulCycleS: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bsm_last_successful_cycle_timestamp_seconds",
				Help: "Unix time of the last cycle that completed evaluation",
			},
		),
	}
}

// Registry exposes underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCycle records cycle outcome.
// Params: result label, cycle duration, and completion time.
// Returns: none.
func (m *Metrics) ObserveCycle(result string, took time.Duration, at time.Time) {
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(took.Seconds())
	if result == CycleOK {
		m.LastSuccessfulCycleS.Set(float64(at.Unix()))
	}
}

// ObserveNotification counts one delivered or failed event.
func (m *Metrics) ObserveNotification(kind domain.EventKind, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	m.NotificationsTotal.WithLabelValues(string(kind), result).Inc()
}

// ObserveCommand counts one handled command.
func (m *Metrics) ObserveCommand(command, result string) {
	m.CommandsTotal.WithLabelValues(command, result).Inc()
}
