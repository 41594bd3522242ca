// Package prometheus implements component metrics interfaces on top of the
// registry in pkg/metrics.
package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/esembed/pkg/metrics"
	"github.com/marmos91/esembed/pkg/orchestrator"
)

// orchestratorMetrics is the Prometheus implementation of orchestrator.Metrics.
type orchestratorMetrics struct {
	phaseDuration  *prometheus.HistogramVec
	phases         *prometheus.CounterVec
	restarts       prometheus.Counter
	pluginInstalls *prometheus.CounterVec
	extractedBytes *prometheus.CounterVec
	state          *prometheus.GaugeVec

	mu      sync.Mutex
	current string
}

// NewOrchestratorMetrics creates orchestrator metrics on the global registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewOrchestratorMetrics() orchestrator.Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	return NewOrchestratorMetricsWith(reg)
}

// NewOrchestratorMetricsWith registers orchestrator metrics on reg.
func NewOrchestratorMetricsWith(reg prometheus.Registerer) orchestrator.Metrics {
	f := promauto.With(reg)
	return &orchestratorMetrics{
		phaseDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of orchestrator startup phases",
				Buckets: []float64{
					0.01, // config writes
					0.1,
					0.5,
					1,
					5, // typical extraction
					10,
					30, // readiness on a cold JVM
					60,
					120, // plugin downloads
				},
			},
			[]string{"phase"},
		),
		phases: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "phases_total",
				Help:      "Completed orchestrator phases by phase and status",
			},
			[]string{"phase", "status"},
		),
		restarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Name:      "server_restarts_total",
			Help:      "Server process restarts",
		}),
		pluginInstalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "plugin_installs_total",
				Help:      "Plugin installations by status",
			},
			[]string{"status"},
		),
		extractedBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "extracted_bytes_total",
				Help:      "Bytes written while extracting bundles",
			},
			[]string{"bundle"},
		),
		state: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "state",
				Help:      "1 for the current orchestrator state, 0 otherwise",
			},
			[]string{"state"},
		),
	}
}

func (m *orchestratorMetrics) SetState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		m.state.WithLabelValues(m.current).Set(0)
	}
	m.state.WithLabelValues(state).Set(1)
	m.current = state
}

func (m *orchestratorMetrics) ObservePhase(phase string, d time.Duration, err error) {
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	m.phases.WithLabelValues(phase, status(err == nil)).Inc()
}

func (m *orchestratorMetrics) RecordRestart() {
	m.restarts.Inc()
}

func (m *orchestratorMetrics) RecordPluginInstall(ok bool) {
	m.pluginInstalls.WithLabelValues(status(ok)).Inc()
}

func (m *orchestratorMetrics) AddExtractedBytes(bundle string, n int64) {
	if n > 0 {
		m.extractedBytes.WithLabelValues(bundle).Add(float64(n))
	}
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
