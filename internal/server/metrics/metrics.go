// Package metrics exposes scheduler, lock and login counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	lockWait      prometheus.Histogram
	lockConflicts prometheus.Counter

	passes       *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	empireErrors prometheus.Counter
	turnsGranted prometheus.Counter
	turnsDropped prometheus.Counter
	transitions  *prometheus.CounterVec

	logins *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "promisance_lock_wait_seconds",
			Help:    "Time spent acquiring entity locks.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		lockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promisance_lock_conflicts_total",
			Help: "Lock acquisitions that gave up.",
		}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promisance_scheduler_passes_total",
			Help: "Scheduler passes by cycle and result.",
		}, []string{"cycle", "result"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promisance_scheduler_pass_seconds",
			Help:    "Scheduler pass latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"cycle"}),
		empireErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promisance_scheduler_empire_failures_total",
			Help: "Empires skipped by a pass because of an error.",
		}),
		turnsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promisance_turns_granted_total",
			Help: "Turns added to empires.",
		}),
		turnsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promisance_turns_discarded_total",
			Help: "Turns lost to full storage.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promisance_lifecycle_transitions_total",
			Help: "Applied lifecycle transitions by target state.",
		}, []string{"to"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promisance_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.lockWait, m.lockConflicts, m.passes, m.passDuration,
		m.empireErrors, m.turnsGranted, m.turnsDropped, m.transitions, m.logins)
	return m
}

func (m *Metrics) LockAcquired(wait time.Duration) { m.lockWait.Observe(wait.Seconds()) }
func (m *Metrics) LockConflict()                   { m.lockConflicts.Inc() }

// PassFinished records one scheduler pass. result is "ok", "partial",
// "skipped" or "error".
func (m *Metrics) PassFinished(cycle, result string, took time.Duration) {
	m.passes.WithLabelValues(cycle, result).Inc()
	m.passDuration.WithLabelValues(cycle).Observe(took.Seconds())
}

func (m *Metrics) EmpireFailed() { m.empireErrors.Inc() }

func (m *Metrics) TurnsAccrued(granted, discarded int) {
	m.turnsGranted.Add(float64(granted))
	m.turnsDropped.Add(float64(discarded))
}

func (m *Metrics) Transition(to string) { m.transitions.WithLabelValues(to).Inc() }

func (m *Metrics) Login(result string) { m.logins.WithLabelValues(result).Inc() }

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
