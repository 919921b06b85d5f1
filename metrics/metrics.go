// Package metrics registers the Prometheus instruments shared across
// services. A singleton guards registration so tests that construct services
// repeatedly do not panic on duplicate collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type appMetrics struct {
	providerFetches      *prometheus.CounterVec
	pollRuns             *prometheus.CounterVec
	pollDuration         prometheus.Histogram
	coordinateOutcomes   *prometheus.CounterVec
	notificationsSent    *prometheus.CounterVec
	notificationsSkipped *prometheus.CounterVec
	deliveryFailures     prometheus.Counter
}

// Singleton pattern for metrics (avoid double registration in tests).
var (
	metricsInstance *appMetrics
	metricsOnce     sync.Once
	defaultRegistry = prometheus.DefaultRegisterer
)

func get() *appMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &appMetrics{
			providerFetches: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "weather_provider_fetches_total",
				Help: "Weather provider fetch attempts by provider and outcome",
			}, []string{"provider", "outcome"}),
			pollRuns: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "poll_runs_total",
				Help: "Completed poll cycles by outcome",
			}, []string{"outcome"}),
			pollDuration: promauto.With(defaultRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "poll_run_duration_seconds",
				Help:    "Wall-clock duration of a full poll cycle",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			}),
			coordinateOutcomes: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "poll_coordinate_outcomes_total",
				Help: "Per-coordinate poll outcomes by status",
			}, []string{"status"}),
			notificationsSent: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Push notifications sent by kind",
			}, []string{"kind"}),
			notificationsSkipped: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "notifications_skipped_total",
				Help: "Push notifications suppressed by reason",
			}, []string{"reason"}),
			deliveryFailures: promauto.With(defaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "notification_delivery_failures_total",
				Help: "Push deliveries rejected by the push gateway",
			}),
		}
	})
	return metricsInstance
}

// ResetForTesting swaps in a fresh registry so a test binary can re-register.
func ResetForTesting() {
	defaultRegistry = prometheus.NewRegistry()
	metricsInstance = nil
	metricsOnce = sync.Once{}
}

func ProviderFetches() *prometheus.CounterVec      { return get().providerFetches }
func PollRuns() *prometheus.CounterVec             { return get().pollRuns }
func PollDuration() prometheus.Histogram           { return get().pollDuration }
func CoordinateOutcomes() *prometheus.CounterVec   { return get().coordinateOutcomes }
func NotificationsSent() *prometheus.CounterVec    { return get().notificationsSent }
func NotificationsSkipped() *prometheus.CounterVec { return get().notificationsSkipped }
func DeliveryFailures() prometheus.Counter         { return get().deliveryFailures }
