package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	RunsStarted        *prometheus.CounterVec
	RunsFinished       *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	RunsActive         prometheus.Gauge
	LogLinesStreamed   *prometheus.CounterVec
	FinalizationFaults prometheus.Counter
	UsersCreated       prometheus.Counter
	UsersDeleted       prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics with the default registry
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates the metrics against reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datamod_runs_started_total",
			Help: "Total number of data modification runs started",
		}, []string{"modification", "mode"}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datamod_runs_finished_total",
			Help: "Total number of data modification runs finished, by outcome",
		}, []string{"modification", "mode", "outcome"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datamod_run_duration_seconds",
			Help:    "Wall time of data modification runs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"modification", "mode"}),
		RunsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "datamod_runs_active",
			Help: "Number of data modification runs currently in progress",
		}),
		LogLinesStreamed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datamod_log_lines_streamed_total",
			Help: "Total number of log lines delivered to run streams",
		}, []string{"level"}),
		FinalizationFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "datamod_finalization_faults_total",
			Help: "Total number of commit or rollback failures",
		}),
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "datamod_users_created_total",
			Help: "Total number of users inserted by commit-mode modification runs",
		}),
		UsersDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "datamod_users_deleted_total",
			Help: "Total number of users deleted by commit-mode modification runs",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datamod_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveRunStarted counts a started run and marks it active
func (m *Metrics) ObserveRunStarted(modification, mode string) {
	m.RunsStarted.WithLabelValues(modification, mode).Inc()
	m.RunsActive.Inc()
}

// ObserveRunFinished records the outcome and duration of a run
func (m *Metrics) ObserveRunFinished(modification, mode, outcome string, started time.Time) {
	m.RunsActive.Dec()
	m.RunsFinished.WithLabelValues(modification, mode, outcome).Inc()
	m.RunDuration.WithLabelValues(modification, mode).Observe(time.Since(started).Seconds())
}

// IncrementLogLines counts one streamed log line at level
func (m *Metrics) IncrementLogLines(level string) {
	m.LogLinesStreamed.WithLabelValues(level).Inc()
}

// IncrementFinalizationFaults increments the finalization fault counter by 1
func (m *Metrics) IncrementFinalizationFaults() {
	m.FinalizationFaults.Inc()
}

// AddUsersCreated increments the users created counter by n
func (m *Metrics) AddUsersCreated(n int) {
	m.UsersCreated.Add(float64(n))
}

// AddUsersDeleted increments the users deleted counter by n
func (m *Metrics) AddUsersDeleted(n int) {
	m.UsersDeleted.Add(float64(n))
}

// ObserveRequest records the latency of one HTTP request
func (m *Metrics) ObserveRequest(method, route string, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
