package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskMetrics tracks task lifecycle activity as Prometheus collectors.
type TaskMetrics struct {
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	updates      *prometheus.CounterVec
	activeRuns   prometheus.Gauge
	runDuration  *prometheus.HistogramVec
	subscribers  prometheus.Gauge
}

// NewTaskMetrics registers the task collectors with reg, or the default
// registerer when reg is nil. Collectors already registered are reused.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &TaskMetrics{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "a2a",
			Subsystem: "tasks",
			Name:      "runs_started_total",
			Help:      "Handler runs started, new tasks and continuations.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a2a",
			Subsystem: "tasks",
			Name:      "runs_finished_total",
			Help:      "Handler runs finalized, by terminal or paused state.",
		}, []string{"state"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a2a",
			Subsystem: "tasks",
			Name:      "updates_total",
			Help:      "Updates applied to tasks, by kind.",
		}, []string{"kind"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "a2a",
			Subsystem: "tasks",
			Name:      "active_runs",
			Help:      "Handler runs currently in flight.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "a2a",
			Subsystem: "tasks",
			Name:      "run_duration_seconds",
			Help:      "Time from run start to finalization.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "a2a",
			Subsystem: "tasks",
			Name:      "stream_subscribers",
			Help:      "Open event stream connections.",
		}),
	}

	m.runsStarted = register(reg, m.runsStarted)
	m.runsFinished = register(reg, m.runsFinished)
	m.updates = register(reg, m.updates)
	m.activeRuns = register(reg, m.activeRuns)
	m.runDuration = register(reg, m.runDuration)
	m.subscribers = register(reg, m.subscribers)

	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T) T {
	if err := reg.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}

		panic(err)
	}

	return collector
}

// RunStarted records a handler run entering flight.
func (m *TaskMetrics) RunStarted() {
	if m == nil {
		return
	}

	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RunFinished records a run reaching state after duration.
func (m *TaskMetrics) RunFinished(state string, duration time.Duration) {
	if m == nil {
		return
	}

	m.activeRuns.Dec()
	m.runsFinished.WithLabelValues(state).Inc()
	m.runDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// RecordUpdate counts one applied update of the given kind.
func (m *TaskMetrics) RecordUpdate(kind string) {
	if m == nil {
		return
	}

	m.updates.WithLabelValues(kind).Inc()
}

// StreamOpened and StreamClosed track live event stream connections.
func (m *TaskMetrics) StreamOpened() {
	if m == nil {
		return
	}

	m.subscribers.Inc()
}

func (m *TaskMetrics) StreamClosed() {
	if m == nil {
		return
	}

	m.subscribers.Dec()
}
