package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StudioMetrics holds the Prometheus instrumentation of the service.
type StudioMetrics struct {
	webhookEvents    *prometheus.CounterVec
	webhookDuration  *prometheus.HistogramVec
	generations      *prometheus.CounterVec
	creditsDebited   *prometheus.CounterVec
	debitFailures    *prometheus.CounterVec
	pollAttempts     *prometheus.HistogramVec
	jobsProcessed    *prometheus.CounterVec
	adminAdjustments prometheus.Counter
}

var (
	instance *StudioMetrics
	once     sync.Once
)

// Get returns the process-wide metrics, registering them on first use.
func Get() *StudioMetrics {
	once.Do(func() {
		instance = newStudioMetrics()
		instance.register(prometheus.DefaultRegisterer)
	})
	return instance
}

func newStudioMetrics() *StudioMetrics {
	return &StudioMetrics{
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "creatorstudio",
				Subsystem: "billing",
				Name:      "webhook_events_total",
				Help:      "Billing webhook deliveries by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		webhookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "creatorstudio",
				Subsystem: "billing",
				Name:      "webhook_duration_seconds",
				Help:      "Time spent handling a billing webhook",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "creatorstudio",
				Subsystem: "generation",
				Name:      "requests_total",
				Help:      "Generation requests by action and result",
			},
			[]string{"action", "result"},
		),
		creditsDebited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "creatorstudio",
				Subsystem: "credits",
				Name:      "debited_total",
				Help:      "Credits debited by action",
			},
			[]string{"action"},
		),
		debitFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "creatorstudio",
				Subsystem: "credits",
				Name:      "debit_after_success_failures_total",
				Help:      "Generations that succeeded but could not be charged",
			},
			[]string{"action"},
		),
		pollAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "creatorstudio",
				Subsystem: "generation",
				Name:      "poll_attempts",
				Help:      "Status polls needed before a provider job finished",
				Buckets:   []float64{1, 2, 5, 10, 20, 40, 60, 90},
			},
			[]string{"provider"},
		),
		jobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "creatorstudio",
				Subsystem: "jobs",
				Name:      "processed_total",
				Help:      "Background jobs by type and final status",
			},
			[]string{"type", "status"},
		),
		adminAdjustments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "creatorstudio",
				Subsystem: "credits",
				Name:      "admin_adjustments_total",
				Help:      "Manual credit adjustments made by admins",
			},
		),
	}
}

func (m *StudioMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.webhookEvents,
		m.webhookDuration,
		m.generations,
		m.creditsDebited,
		m.debitFailures,
		m.pollAttempts,
		m.jobsProcessed,
		m.adminAdjustments,
	)
}

// RecordWebhook counts one webhook delivery and observes its duration.
func (m *StudioMetrics) RecordWebhook(eventType, outcome string, took time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
	m.webhookDuration.WithLabelValues(eventType).Observe(took.Seconds())
}

// RecordGeneration counts a generation request by result.
func (m *StudioMetrics) RecordGeneration(action, result string) {
	m.generations.WithLabelValues(action, result).Inc()
}

// AddCreditsDebited adds a successful debit.
func (m *StudioMetrics) AddCreditsDebited(action string, amount int) {
	m.creditsDebited.WithLabelValues(action).Add(float64(amount))
}

// RecordDebitAfterSuccessFailure counts an unbilled successful generation.
func (m *StudioMetrics) RecordDebitAfterSuccessFailure(action string) {
	m.debitFailures.WithLabelValues(action).Inc()
}

// ObservePollAttempts records how many polls a provider job took.
func (m *StudioMetrics) ObservePollAttempts(provider string, attempts int) {
	m.pollAttempts.WithLabelValues(provider).Observe(float64(attempts))
}

// RecordJob counts a finished background job.
func (m *StudioMetrics) RecordJob(jobType, status string) {
	m.jobsProcessed.WithLabelValues(jobType, status).Inc()
}

// RecordAdminAdjustment counts a manual credit adjustment.
func (m *StudioMetrics) RecordAdminAdjustment() {
	m.adminAdjustments.Inc()
}
