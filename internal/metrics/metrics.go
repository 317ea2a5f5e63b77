// Package metrics exposes navigator activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/navigator"
)

// Metrics tracks command outcomes, stack depth and options traffic.
type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	DroppedCommands *prometheus.CounterVec
	StaleResults    *prometheus.CounterVec
	Drained         prometheus.Counter
	DrainBatches    prometheus.Counter
	StackDepth      prometheus.Gauge
	OptionsUpdates  *prometheus.CounterVec
}

var _ dispatch.Observer = (*Metrics)(nil)

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routesync_commands_total",
			Help: "Dispatcher commands by op and outcome",
		}, []string{"op", "outcome"}),
		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routesync_command_duration_seconds",
			Help:    "Time from command start to settlement",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"op"}),
		DroppedCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routesync_commands_dropped_total",
			Help: "Commands rejected because the dispatcher was busy or its queue full",
		}, []string{"op", "reason"}),
		StaleResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routesync_stale_results_total",
			Help: "Peer results discarded because their command had already given up",
		}, []string{"op"}),
		Drained: f.NewCounter(prometheus.CounterOpts{
			Name: "routesync_removals_drained_total",
			Help: "Records removed by batched drains",
		}),
		DrainBatches: f.NewCounter(prometheus.CounterOpts{
			Name: "routesync_removal_batches_total",
			Help: "Removal batches applied",
		}),
		StackDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "routesync_stack_depth",
			Help: "Records currently in the route stack",
		}),
		OptionsUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "routesync_options_updates_total",
			Help: "Route option updates, sent to the peer or skipped as unchanged",
		}, []string{"result"}),
	}
}

// Finished records one settled command.
func (m *Metrics) Finished(r dispatch.Result) {
	m.Commands.WithLabelValues(string(r.Op), outcome(r)).Inc()
	m.CommandDuration.WithLabelValues(string(r.Op)).Observe(r.Duration.Seconds())
}

func (m *Metrics) Dropped(op dispatch.Op, reason string) {
	m.DroppedCommands.WithLabelValues(string(op), reason).Inc()
}

func (m *Metrics) Stale(op dispatch.Op, _ uint64) {
	m.StaleResults.WithLabelValues(string(op)).Inc()
}

// Hooks returns navigator hooks feeding the gauges and counters.
func (m *Metrics) Hooks() navigator.Hooks {
	return navigator.Hooks{
		StackDepth: func(depth int) { m.StackDepth.Set(float64(depth)) },
		Drained: func(_, removed int) {
			m.DrainBatches.Inc()
			m.Drained.Add(float64(removed))
		},
		OptionsUpdate: func(sent bool) {
			if sent {
				m.OptionsUpdates.WithLabelValues("sent").Inc()
			} else {
				m.OptionsUpdates.WithLabelValues("skipped").Inc()
			}
		},
	}
}

func outcome(r dispatch.Result) string {
	if r.Err == nil {
		return "ok"
	}
	return r.Code.String()
}
