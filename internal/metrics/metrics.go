package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry метрики сервиса. Методы безопасны для nil-получателя.
type Registry struct {
	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Бизнес-метрики
	BookingsTotal          *prometheus.CounterVec
	SlotGenerationDuration prometheus.Histogram
	RuleConflictsTotal     prometheus.Counter
	NotificationsTotal     *prometheus.CounterVec
	RuleCacheTotal         *prometheus.CounterVec
	ActiveSessions         prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewRegistry регистрирует метрики в переданном реестре.
// Отдельный реестр на каждый вызов позволяет создавать Registry в тестах без паники на повторной регистрации.
func NewRegistry(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creator_pipeline_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "creator_pipeline_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "creator_pipeline_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		BookingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creator_pipeline_bookings_total",
				Help: "Booking attempts by outcome",
			},
			[]string{"outcome"},
		),
		SlotGenerationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "creator_pipeline_slot_generation_duration_seconds",
				Help:    "Time spent generating a manager schedule for one date",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		RuleConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "creator_pipeline_rule_conflicts_total",
				Help: "Overlapping availability rule pairs found during slot generation",
			},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creator_pipeline_notifications_total",
				Help: "Notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		),
		RuleCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "creator_pipeline_rule_cache_total",
				Help: "Availability rule cache lookups by result",
			},
			[]string{"result"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "creator_pipeline_active_sessions",
				Help: "Users with a live activity session",
			},
		),
		gatherer: reg,
	}
}

// Gatherer реестр для хендлера /metrics
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

func (r *Registry) ObserveBooking(outcome string) {
	if r == nil {
		return
	}
	r.BookingsTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveSlotGeneration(d time.Duration, conflicts int) {
	if r == nil {
		return
	}
	r.SlotGenerationDuration.Observe(d.Seconds())
	if conflicts > 0 {
		r.RuleConflictsTotal.Add(float64(conflicts))
	}
}

func (r *Registry) ObserveNotification(channel string, err error) {
	if r == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	r.NotificationsTotal.WithLabelValues(channel, result).Inc()
}

func (r *Registry) ObserveRuleCache(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.RuleCacheTotal.WithLabelValues(result).Inc()
}

func (r *Registry) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.ActiveSessions.Set(float64(n))
}
