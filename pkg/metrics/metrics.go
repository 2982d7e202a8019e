// Package metrics documents the Prometheus metrics exported by the client.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by all packages.
// Metrics register themselves via promauto at package init.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ts_requests_total{endpoint, status} (Counter): Requests by endpoint and outcome
//   - ts_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ts_errors_total (Counter): Transient errors (non-JSON body or connection failure)
//
// Retry Metrics (pkg/client):
//   - ts_retries_total (Counter): Retry attempts
//   - ts_retry_exhausted_total (Counter): Requests that exhausted their attempt budget
//
// Pagination Metrics (pkg/pagination):
//   - ts_pages_fetched_total (Counter): Pages fetched across runs
//   - ts_records_fetched_total (Counter): Records fetched across runs
//
// Cache Metrics (pkg/cache):
//   - ts_cache_hits_total (Counter): Response cache hits
//   - ts_cache_misses_total (Counter): Response cache misses
//   - ts_cache_size_bytes (Gauge): Bytes written to the cache
//   - ts_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ts_rate_limit_hits_total (Counter): 429 responses observed
//   - ts_rate_limit_blocks_total (Counter): Requests blocked by the shared window
//   - ts_rate_limit_blocked_seconds (Gauge): Seconds left in the current block window
//
// Example Prometheus Queries:
//
//   # Transient error rate
//   rate(ts_errors_total[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(ts_request_duration_seconds_bucket[5m]))
//
//   # Pages per pull
//   increase(ts_pages_fetched_total[1h])
