package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	replications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prodsync",
			Name:      "replications_total",
			Help:      "Product replication attempts by target tenant and result.",
		},
		[]string{"tenant", "result"},
	)

	chunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prodsync",
			Name:      "chunks_total",
			Help:      "Chunk invocations by resulting job status.",
		},
		[]string{"status"},
	)

	chunkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prodsync",
			Name:      "chunk_duration_seconds",
			Help:      "Wall time of one chunk invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	assetsCopied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prodsync",
			Name:      "assets_copied_total",
			Help:      "Binary assets duplicated into target tenants.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prodsync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(replications, chunks, chunkDuration, assetsCopied, httpRequests)
	})
}

// IncReplication records one replication attempt for a target tenant.
func IncReplication(tenant string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	replications.WithLabelValues(tenant, result).Inc()
}

// ObserveChunk records one chunk invocation and its duration.
func ObserveChunk(status string, dur time.Duration) {
	chunks.WithLabelValues(status).Inc()
	chunkDuration.Observe(dur.Seconds())
}

// IncAssetCopied increments the duplicated-asset counter.
func IncAssetCopied() {
	assetsCopied.Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
