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
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_api_build_info",
			Help: "Build information of the dashboard API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_api_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	WarehouseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_api_warehouse_query_duration_seconds",
			Help:    "Duration of warehouse queries",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"engine"},
	)

	WarehouseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_api_warehouse_queries_total",
			Help: "Total number of warehouse queries by outcome",
		},
		[]string{"engine", "status"}, // "success", "error"
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_api_request_errors_total",
			Help: "Failed dashboard requests by endpoint and error kind",
		},
		[]string{"endpoint", "kind"},
	)

	WarehouseClientInits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_api_warehouse_client_inits_total",
			Help: "Warehouse client creation attempts by outcome",
		},
		[]string{"engine", "status"},
	)
)

// RecordWarehouseQuery records the duration and outcome of one query.
func RecordWarehouseQuery(engine string, duration time.Duration, err error) {
	WarehouseQueryDuration.WithLabelValues(engine).Observe(duration.Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	WarehouseQueriesTotal.WithLabelValues(engine, status).Inc()
}

// RecordClientInit records a warehouse client creation attempt.
func RecordClientInit(engine string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WarehouseClientInits.WithLabelValues(engine, status).Inc()
}

// RecordRequestError counts a failed dashboard request.
func RecordRequestError(endpoint, kind string) {
	RequestErrorsTotal.WithLabelValues(endpoint, kind).Inc()
}

// Middleware records request counts and latency labelled by chi route pattern,
// so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
