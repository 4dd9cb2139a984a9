// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks HTTP requests served by the engine.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// StockLevel tracks the available quantity per inventory pool.
	StockLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_available_quantity",
			Help: "Available quantity per listing or urgent sale pool",
		},
		[]string{"pool"},
	)

	// ReservationsTotal tracks reservation outcomes.
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_total",
			Help: "Total number of reservation transitions by outcome",
		},
		[]string{"outcome"},
	)

	// ReceiptVerificationsTotal tracks receipt verification decisions.
	ReceiptVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_verifications_total",
			Help: "Total number of receipt verifications by decision",
		},
		[]string{"decision"},
	)

	// UrgentPurchasesTotal tracks urgent sale purchase outcomes.
	UrgentPurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urgent_purchases_total",
			Help: "Total number of urgent sale purchase attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Middleware records request count and duration for every route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// Label by the route pattern, not the raw path: UUID-bearing
		// paths would mint an unbounded label set.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
