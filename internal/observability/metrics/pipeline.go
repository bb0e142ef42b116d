package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

// PipelineMetrics records worker message handling and regeneration pipeline events.
// It satisfies ports.PipelineObserver and resilience.Observer.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	messageTotal        *prometheus.CounterVec
	messageDuration     *prometheus.HistogramVec
	messageInFlight     prometheus.Gauge
	chunkOutcomes       *prometheus.CounterVec
	regenerationTotal   *prometheus.CounterVec
	regenerationSeconds *prometheus.HistogramVec
	regenerationActive  prometheus.Gauge
	coalescedTotal      *prometheus.CounterVec
	repairStages        *prometheus.CounterVec
	retries             *prometheus.CounterVec
	breakerTransitions  *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	messageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "messages_total",
			Help:      "Total consumed queue messages by subject and status.",
		},
		[]string{"service", "subject", "status"},
	)
	messageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "message_duration_seconds",
			Help:      "Queue message handling duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "subject"},
	)
	messageInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "messages_in_flight",
			Help:        "Number of queue messages being handled.",
			ConstLabels: constLabels,
		},
	)
	chunkOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Processed chunks by final state.",
		},
		[]string{"service", "state"},
	)
	regenerationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "runs_total",
			Help:      "Regeneration runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	regenerationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "duration_seconds",
			Help:      "Regeneration run duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120, 300},
		},
		[]string{"service", "outcome"},
	)
	regenerationActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "regeneration",
			Name:        "in_flight",
			Help:        "Number of regeneration runs in progress.",
			ConstLabels: constLabels,
		},
	)
	coalescedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "coalesced_total",
			Help:      "Triggers folded into an already queued follow-up run.",
		},
		[]string{"service"},
	)
	repairStages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "repair_stage_total",
			Help:      "Output repair attempts that produced the document, by stage.",
		},
		[]string{"service", "stage"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Retried upstream calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker transitions by operation and target state.",
		},
		[]string{"service", "operation", "state"},
	)

	registry.MustRegister(
		messageTotal,
		messageDuration,
		messageInFlight,
		chunkOutcomes,
		regenerationTotal,
		regenerationSeconds,
		regenerationActive,
		coalescedTotal,
		repairStages,
		retries,
		breakerTransitions,
	)

	return &PipelineMetrics{
		registry:            registry,
		service:             service,
		messageTotal:        messageTotal,
		messageDuration:     messageDuration,
		messageInFlight:     messageInFlight,
		chunkOutcomes:       chunkOutcomes,
		regenerationTotal:   regenerationTotal,
		regenerationSeconds: regenerationSeconds,
		regenerationActive:  regenerationActive,
		coalescedTotal:      coalescedTotal,
		repairStages:        repairStages,
		retries:             retries,
		breakerTransitions:  breakerTransitions,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartMessage() {
	m.messageInFlight.Inc()
}

func (m *PipelineMetrics) FinishMessage(subject string, duration time.Duration, err error) {
	m.messageInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.messageTotal.WithLabelValues(m.service, subject, status).Inc()
	m.messageDuration.WithLabelValues(m.service, subject).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RegenerationStarted() {
	m.regenerationActive.Inc()
}

func (m *PipelineMetrics) RegenerationFinished(outcome string, duration time.Duration) {
	m.regenerationActive.Dec()
	if outcome == "" {
		outcome = "unknown"
	}
	m.regenerationTotal.WithLabelValues(m.service, outcome).Inc()
	m.regenerationSeconds.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RegenerationCoalesced() {
	m.coalescedTotal.WithLabelValues(m.service).Inc()
}

func (m *PipelineMetrics) RepairStage(stage string) {
	m.repairStages.WithLabelValues(m.service, stage).Inc()
}

func (m *PipelineMetrics) ChunkOutcome(state domain.ChunkState) {
	m.chunkOutcomes.WithLabelValues(m.service, string(state)).Inc()
}

func (m *PipelineMetrics) RetryAttempted(operation string) {
	m.retries.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) BreakerStateChanged(operation, state string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, state).Inc()
}
