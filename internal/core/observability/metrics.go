// Package observability holds the process-wide Prometheus collectors. They
// are registered on the default registry at start-up and can be mirrored
// onto a private registry with Init.
package observability

import (
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultProfile = "car"

var profileLabel atomic.Value

func init() {
	profileLabel.Store(defaultProfile)
	prometheus.MustRegister(collectors()...)
	prometheus.MustRegister(buildInfo)
}

// SetProfile sets the routing profile label attached to request metrics.
func SetProfile(p string) {
	if p == "" {
		p = defaultProfile
	}
	profileLabel.Store(p)
}

func getProfile() string {
	if v := profileLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return defaultProfile
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status", "profile"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status", "profile"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"service", "profile"},
	)

	oracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_calls_total",
			Help: "Travel-time oracle calls made while assembling matrices.",
		},
		[]string{"result"},
	)

	oracleCallDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_call_duration_seconds",
			Help:    "Duration of a single travel-time oracle call.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	matrixAssembliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matrix_assemblies_total",
			Help: "Travel-time matrices assembled, by mode (single, batched).",
		},
		[]string{"mode"},
	)

	degenerateLevelsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contour_degenerate_levels_total",
			Help: "Contour levels dropped because no usable polygon was traced.",
		},
	)

	isochroneDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isochrone_duration_seconds",
			Help:    "Time to build an accessibility surface.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"outcome"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by outcome.",
		},
		[]string{"outcome", "profile"},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Errors seen by the invalidation consumer, by kind.",
		},
		[]string{"kind"},
	)

	profileReloadedAt = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "profile_reloaded_at_seconds",
			Help: "Unix time of the last dataset reload applied per profile.",
		},
		[]string{"profile"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

// app_build_info is left out: the metrics provider exposes a richer one.
func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		oracleCallsTotal,
		oracleCallDurationSeconds,
		matrixAssembliesTotal,
		degenerateLevelsTotal,
		isochroneDurationSeconds,
		cacheOpTotal,
		redisOperationDurationSeconds,
		cacheResults,
		kafkaConsumerErrors,
		profileReloadedAt,
	}
}

// Init mirrors the collectors onto reg. It is a no-op when disabled and
// tolerates a registry that already holds them.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	p := getProfile()
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st, p).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st, p).Observe(durationSeconds)
}

func ObserveUpstreamLatency(service string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(service, getProfile()).Observe(durationSeconds)
}

func ObserveOracleCall(err error, durationSeconds float64) {
	oracleCallsTotal.WithLabelValues(result(err)).Inc()
	oracleCallDurationSeconds.Observe(durationSeconds)
}

func IncMatrixAssembly(mode string) {
	matrixAssembliesTotal.WithLabelValues(mode).Inc()
}

func IncDegenerateContour() {
	degenerateLevelsTotal.Inc()
}

func ObserveIsochrone(outcome string, durationSeconds float64) {
	isochroneDurationSeconds.WithLabelValues(outcome).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpTotal.WithLabelValues(op, result(err)).Inc()
	redisOperationDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func AddCacheHits(n int) {
	if n > 0 {
		cacheResults.WithLabelValues("hit", getProfile()).Add(float64(n))
	}
}

func AddCacheMisses(n int) {
	if n > 0 {
		cacheResults.WithLabelValues("miss", getProfile()).Add(float64(n))
	}
}

func IncKafkaConsumerError(kind string) {
	kafkaConsumerErrors.WithLabelValues(kind).Inc()
}

func SetProfileReloadedAt(profile string, at time.Time) {
	profileReloadedAt.WithLabelValues(profile).Set(float64(at.Unix()))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
