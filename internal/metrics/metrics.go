package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000}

var (
	ResolveRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sk_resolve_requests_total",
		Help: "Total resolve calls by mode (full/scoped)",
	}, []string{"mode"})
	ResolveMissTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sk_resolve_miss_total",
		Help: "Total NotFound results by dataset kind",
	}, []string{"kind"})
	ValidateRejectTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sk_validate_reject_total",
		Help: "Total coordinates rejected by the plausibility bounds",
	})
	BatchRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sk_batch_rows_total",
		Help: "Total batch rows by outcome (ok/out_of_range/no_match)",
	}, []string{"outcome"})
	BatchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sk_batch_duration_ms",
		Help:    "Batch pipeline duration in milliseconds",
		Buckets: []float64{10, 100, 1000, 10000, 60000, 600000},
	})
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sk_geocode_requests_total",
		Help: "Total Nominatim requests by operation (reverse/search)",
	}, []string{"op"})
	GeocodeFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sk_geocode_fail_total",
		Help: "Total Nominatim failures by operation",
	}, []string{"op"})
	GeocodeDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sk_geocode_duration_ms",
		Help:    "Nominatim call duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"op"})
	GeocodeCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sk_geocode_cache_hits_total",
		Help: "Reverse geocode cache hits by tier (lru/redis)",
	}, []string{"tier"})
	GeocodeCacheEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sk_geocode_cache_evictions_total",
		Help: "Process-local reverse geocode cache evictions by reason (expired/capacity)",
	}, []string{"reason"})
	DatasetFeatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sk_dataset_features",
		Help: "Loaded feature count per boundary dataset",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(ResolveRequestsTotal)
	prometheus.MustRegister(ResolveMissTotal)
	prometheus.MustRegister(ValidateRejectTotal)
	prometheus.MustRegister(BatchRowsTotal)
	prometheus.MustRegister(BatchDurationMs)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeFailTotal)
	prometheus.MustRegister(GeocodeDurationMs)
	prometheus.MustRegister(GeocodeCacheHitsTotal)
	prometheus.MustRegister(GeocodeCacheEvictionsTotal)
	prometheus.MustRegister(DatasetFeatures)
}

// 文档注释：返回 Prometheus 指标监听器，在主入口挂载到 {API_BASE}/metrics
func Handler() http.Handler { return promhttp.Handler() }
