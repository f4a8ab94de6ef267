package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_sync_runs_total",
			Help: "Completed calendar sync runs per outcome",
		},
		[]string{"outcome"},
	)

	ConflictsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_conflicts_upserted_total",
			Help: "Calendar conflicts created or refreshed, by kind",
		},
		[]string{"kind"},
	)

	UnresolvedConflicts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calendar_conflicts_unresolved",
			Help: "Unresolved calendar conflicts at last metrics read",
		},
	)

	SyncQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "calendar_sync_queue_depth",
			Help: "Pending calendar sync tasks at last metrics read",
		},
	)

	PaymentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Inbound payment webhook events per outcome",
		},
		[]string{"outcome"},
	)

	SlotConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slot_reservation_conflicts_total",
			Help: "Reservation attempts that lost the race for a slot",
		},
	)

	WaitlistPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_promotions_total",
			Help: "Waitlist entries promoted to notified",
		},
	)
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency for every route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		RequestCounter.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		RequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
