package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Selections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_selections_total",
			Help: "NextPromotion calls by outcome",
		}, []string{"outcome"}, // "selected" | "none"
	)
	CounterResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_counter_resets_total",
			Help: "Display counter resets by horizon",
		}, []string{"horizon"}, // "balancing" | "cumulative"
	)
	PersistErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_counter_persist_errors_total",
			Help: "Durable counter store write failures",
		}, []string{"store"},
	)
	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_config_fetch_errors_total",
			Help: "Configuration fetch failures by kind",
		}, []string{"kind"},
	)
	CatalogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "promotion_catalog_size",
		Help: "Promotions in the active catalog",
	})

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "promotion_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "promotion_http_in_flight",
		Help: "In-flight HTTP requests",
	})
)

func init() {
	prometheus.MustRegister(Selections, CounterResets, PersistErrors, FetchErrors, CatalogSize)
	prometheus.MustRegister(RequestsTotal, Latency, InFlight)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
