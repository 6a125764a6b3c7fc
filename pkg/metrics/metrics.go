// Package metrics documents the Prometheus metrics exported by this module.
// Metrics are declared via promauto in the packages that own them; embedding
// services scrape them through the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer used by all packages in this module.
var Registry = prometheus.DefaultRegisterer

// Request metrics (pkg/client):
//   - kaspa_api_requests_total{endpoint, status} (Counter)
//   - kaspa_api_request_duration_seconds{endpoint} (Histogram)
//   - kaspa_api_errors_total{class} (Counter): client, server, network, malformed
//
// Retrieval metrics (pkg/pagination):
//   - kaspa_pages_fetched_total (Counter)
//   - kaspa_page_failures_total (Counter)
//   - kaspa_retrieval_rounds (Histogram)
//   - kaspa_retrieval_duration_seconds (Histogram)
//
// Cache metrics (pkg/cache):
//   - kaspa_cache_hits_total (Counter)
//   - kaspa_cache_misses_total (Counter)
//   - kaspa_cache_errors_total{operation} (Counter)
//
// Example queries:
//
//	# Page failure rate
//	rate(kaspa_page_failures_total[5m]) /
//	(rate(kaspa_pages_fetched_total[5m]) + rate(kaspa_page_failures_total[5m]))
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(kaspa_api_request_duration_seconds_bucket[5m]))
