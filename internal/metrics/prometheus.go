package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Command surface metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	CommandErrors   *prometheus.CounterVec

	// Control plane metrics
	ShardMovesTotal    *prometheus.CounterVec
	UpgradeStepsTotal  prometheus.Counter
	DispatchResults    *prometheus.HistogramVec
	ActivePrimaryNodes prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlplane_commands_total",
				Help: "Total number of admin commands processed",
			},
			[]string{"command", "code"},
		),

		CommandDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "controlplane_command_duration_seconds",
				Help:    "Duration of admin command processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		CommandErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlplane_command_errors_total",
				Help: "Total number of admin command errors",
			},
			[]string{"command", "code"},
		),

		ShardMovesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "controlplane_shard_moves_total",
				Help: "Total number of shard placement moves requested",
			},
			[]string{"mode"},
		),

		UpgradeStepsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "controlplane_upgrade_steps_total",
				Help: "Total number of upgrade migration steps applied",
			},
		),

		DispatchResults: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "controlplane_dispatch_results",
				Help:    "Number of per-node results returned by dispatched commands",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"handler"},
		),

		ActivePrimaryNodes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "controlplane_active_primary_nodes",
				Help: "Number of active primary nodes in the cluster",
			},
		),
	}
}

// RecordCommand records an admin command's outcome
func (m *Metrics) RecordCommand(command, code string, duration float64) {
	m.CommandsTotal.WithLabelValues(command, code).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(duration)
	if code != "ok" {
		m.CommandErrors.WithLabelValues(command, code).Inc()
	}
}

// RecordShardMove records a shard placement move
func (m *Metrics) RecordShardMove(mode string) {
	m.ShardMovesTotal.WithLabelValues(mode).Inc()
}

// RecordUpgradeStep records one applied migration step
func (m *Metrics) RecordUpgradeStep() {
	m.UpgradeStepsTotal.Inc()
}

// RecordDispatch records the fan-out size of one dispatched command
func (m *Metrics) RecordDispatch(handler string, results int) {
	m.DispatchResults.WithLabelValues(handler).Observe(float64(results))
}

// UpdateActivePrimaryNodes updates the active primary node count
func (m *Metrics) UpdateActivePrimaryNodes(count int) {
	m.ActivePrimaryNodes.Set(float64(count))
}
