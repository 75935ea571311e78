// Package metrics holds the Prometheus collectors of the ingestion pipeline
// and the HTTP resources.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "censo"

	MetricIngestRows      = "ingest_rows_total"
	MetricIngestJobs      = "ingest_jobs_total"
	MetricHTTPRequests    = "http_requests_total"
	MetricHTTPRequestTime = "http_request_duration_seconds"
)

var CounterIngestRows = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricIngestRows,
		Help:      "Rows committed by ingestion jobs.",
	},
	[]string{
		"job",
	},
)

var CounterIngestJobs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricIngestJobs,
		Help:      "Finished ingestion jobs by outcome.",
	},
	[]string{
		"job",
		"status",
	},
)

var CounterHTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricHTTPRequests,
		Help:      "HTTP requests served.",
	},
	[]string{
		"route",
		"method",
		"code",
	},
)

var HistogramHTTPRequestTime = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricHTTPRequestTime,
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{
		"route",
	},
)

func init() {
	prometheus.MustRegister(CounterIngestRows)
	prometheus.MustRegister(CounterIngestJobs)
	prometheus.MustRegister(CounterHTTPRequests)
	prometheus.MustRegister(HistogramHTTPRequestTime)
}
