// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DaemonRequests    *prometheus.CounterVec
	DaemonDuration    *prometheus.HistogramVec
	DaemonCacheHits   prometheus.Counter
	DaemonCacheMisses prometheus.Counter

	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	MempoolTransactions    prometheus.Gauge
	MempoolRefreshDuration prometheus.Histogram
	MempoolRefreshErrors   prometheus.Counter

	HTTPRequests *prometheus.CounterVec

	initOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(initMetrics)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func initMetrics() {
	DaemonRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "addrindex",
			Name:      "daemon_requests_total",
			Help:      "Number of JSON-RPC calls sent to the coin daemon",
		},
		[]string{
			"method", // daemon RPC method
			"status", // ok or error
		},
	)
	DaemonDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "addrindex",
			Name:      "daemon_request_seconds",
			Help:      "Round-trip time of daemon HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	DaemonCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "addrindex",
			Name:      "daemon_rawtx_cache_hits_total",
			Help:      "Raw transactions served from the local cache",
		},
	)
	DaemonCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "addrindex",
			Name:      "daemon_rawtx_cache_misses_total",
			Help:      "Raw transactions fetched from the daemon",
		},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "addrindex",
			Name:      "query_seconds",
			Help:      "Duration of address queries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "addrindex",
			Name:      "query_errors_total",
			Help:      "Failed address queries",
		},
		[]string{
			"operation",
			"class", // client, upstream or internal
		},
	)

	MempoolTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "addrindex",
			Name:      "mempool_transactions",
			Help:      "Transactions in the mirrored mempool",
		},
	)
	MempoolRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "addrindex",
			Name:      "mempool_refresh_seconds",
			Help:      "Duration of a mempool refresh",
			Buckets:   prometheus.DefBuckets,
		},
	)
	MempoolRefreshErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "addrindex",
			Name:      "mempool_refresh_errors_total",
			Help:      "Failed mempool refreshes",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "addrindex",
			Name:      "http_requests_total",
			Help:      "Requests served by the RPC and REST listeners",
		},
		[]string{"server", "route", "code"},
	)
}
