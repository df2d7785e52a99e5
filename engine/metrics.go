package engine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fizil"
)

// Metrics exposes the run's live counters on a Prometheus-compatible
// /metrics endpoint, an optional observability surface layered on top
// of the core's StatusEvent stream, the core itself has no dependency
// on whether metrics are being served.
type Metrics struct {
	registry  *prometheus.Registry
	executed  prometheus.Counter
	crashed   prometheus.Counter
	newPaths  prometheus.Counter
	findings  prometheus.Counter
	server    *http.Server
}

// NewMetrics builds a fresh metrics registry and the counters it
// serves.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		executed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fizil_tests_executed_total",
			Help: "Total number of test cases executed.",
		}),
		crashed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fizil_crashes_total",
			Help: "Total number of executions classified as a crash.",
		}),
		newPaths: factory.NewCounter(prometheus.CounterOpts{
			Name: "fizil_new_paths_total",
			Help: "Total number of newly observed coverage paths.",
		}),
		findings: factory.NewCounter(prometheus.CounterOpts{
			Name: "fizil_findings_saved_total",
			Help: "Total number of findings persisted to disk.",
		}),
	}
}

// Observe updates the counters from one completed result.
func (m *Metrics) Observe(r fizil.Result) {
	m.executed.Inc()
	if r.TestResult.Crashed {
		m.crashed.Inc()
	}
	if r.NewPathFound {
		m.newPaths.Inc()
	}
}

// ObserveFinding records that a result was persisted as a finding.
func (m *Metrics) ObserveFinding() {
	m.findings.Inc()
}

// Serve starts the /metrics HTTP endpoint on addr in the background. It
// returns immediately; call Close to shut the server down.
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: addr, Handler: mux}
	go m.server.ListenAndServe()
}

// Close shuts the metrics HTTP server down, if one was started.
func (m *Metrics) Close() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}
