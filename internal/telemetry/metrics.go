package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus-метрики выполнения задач.
//
// Экспортируются через promhttp на /metrics (см. cmd/conveyor-worker).
type Metrics struct {
	taskDuration  *prometheus.HistogramVec
	taskOutcomes  *prometheus.CounterVec
	tasksInFlight prometheus.Gauge
}

// NewMetrics регистрирует метрики задач.
// reg == nil означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conveyor_task_duration_seconds",
			Help:    "Task execution time from start to outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task_name", "outcome"}),
		taskOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conveyor_task_outcomes_total",
			Help: "Task outcomes by kind.",
		}, []string{"task_name", "outcome"}),
		tasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "conveyor_tasks_in_flight",
			Help: "Tasks currently executing.",
		}),
	}
}

// StartTask начинает отсчёт времени задачи и увеличивает in-flight.
// Безопасен на nil-приёмнике: метрики можно не подключать.
func (m *Metrics) StartTask(taskName string) *TaskTimer {
	if m == nil {
		return nil
	}
	m.tasksInFlight.Inc()
	return &TaskTimer{m: m, taskName: taskName, started: time.Now()}
}

// TaskTimer — тайминг одной попытки выполнения задачи.
// Закрывается ровно один раз с меткой исхода.
type TaskTimer struct {
	m        *Metrics
	taskName string
	started  time.Time
	stopped  bool
}

// Stop фиксирует исход и длительность. Повторные вызовы игнорируются.
func (t *TaskTimer) Stop(outcome string) {
	if t == nil || t.stopped {
		return
	}
	t.stopped = true

	t.m.tasksInFlight.Dec()
	t.m.taskDuration.WithLabelValues(t.taskName, outcome).Observe(time.Since(t.started).Seconds())
	t.m.taskOutcomes.WithLabelValues(t.taskName, outcome).Inc()
}
