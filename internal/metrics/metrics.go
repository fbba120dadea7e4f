package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zonedensity"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Density run metrics
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "density",
		Name:      "runs_total",
		Help:      "Density runs by final status",
	}, []string{"status"})

	RecordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "density",
		Name:      "records_processed_total",
		Help:      "Raw records read by density runs",
	})

	MalformedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "density",
		Name:      "malformed_records_total",
		Help:      "Raw records excluded before deduplication",
	}, []string{"reason"})

	MatchPairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "density",
		Name:      "match_pairs_total",
		Help:      "Zone/entity pairs produced by the spatial join",
	})

	JoinDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "density",
		Name:      "join_duration_seconds",
		Help:      "Spatial join wall time per run",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	DBOpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "open_connections",
		Help:      "Open connections in the database pool",
	})
)

// ObserveRun records the outcome of one density run
func ObserveRun(status string, records int, malformed map[string]int, pairs int, join time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RecordsProcessed.Add(float64(records))
	for reason, n := range malformed {
		if n > 0 {
			MalformedRecords.WithLabelValues(reason).Add(float64(n))
		}
	}
	MatchPairs.Add(float64(pairs))
	if join > 0 {
		JoinDuration.Observe(join.Seconds())
	}
}

// UpdateDBStats copies pool stats into the db gauges
func UpdateDBStats(db *sql.DB) {
	if db == nil {
		return
	}
	DBOpenConnections.Set(float64(db.Stats().OpenConnections))
}

// Middleware records request metrics against the matched route pattern
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus /metrics endpoint
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
