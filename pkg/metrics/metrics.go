// Package metrics exposes the Prometheus registry used by the listing client.
// Metrics are defined in their respective packages (client, pagination,
// ratelimit) and registered via promauto; this package serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the listing client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back everything registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - dc_requests_total{status} (Counter): Listing requests by HTTP status
//   - dc_request_duration_seconds (Histogram): Listing request duration
//   - dc_errors_total{class} (Counter): Fetch errors by class (client, server, network, decode)
//
// Search Metrics (pkg/pagination):
//   - dc_pages_fetched_total (Counter): Non-empty pages merged
//   - dc_items_merged_total (Counter): Proposals merged into results
//   - dc_searches_total{outcome} (Counter): Searches by outcome (complete, error, invalid, cancelled, page_limit)
//
// Pacing Metrics (pkg/ratelimit):
//   - dc_pacer_wait_seconds{backend} (Histogram): Time spent between requests (local, redis)
//
// Example Prometheus Queries:
//
//   # Failed searches
//   rate(dc_searches_total{outcome="error"}[5m])
//
//   # Average proposals per page
//   rate(dc_items_merged_total[1h]) / rate(dc_pages_fetched_total[1h])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(dc_request_duration_seconds_bucket[5m]))
