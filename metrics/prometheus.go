// Package metrics collects gateway metrics. Every observation updates both
// the Prometheus collectors served on the metrics endpoint and an
// in-memory snapshot returned by the getMetrics operation.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// See the metrics initialization below for details.
const (
	gatewayProcess = "cosmos_gateway"

	requestsTotal              = "provider_requests_total"
	responsesTotal             = "provider_responses_total"
	inconsistentResponsesTotal = "inconsistent_responses_total"
	cyclesChargedTotal         = "cycles_charged_total"
	cyclesRefundedTotal        = "cycles_refunded_total"
	errHTTPOutcallTotal        = "err_http_outcall_total"
	errHostNotAllowedTotal     = "err_host_not_allowed_total"
	errNoPermissionTotal       = "err_no_permission_total"
	outcomesTotal              = "call_outcomes_total"
	responseSizeBytes          = "provider_response_size_bytes"
)

func init() {
	prometheus.MustRegister(providerRequestsTotal)
	prometheus.MustRegister(providerResponsesTotal)
	prometheus.MustRegister(inconsistentResponses)
	prometheus.MustRegister(cyclesCharged)
	prometheus.MustRegister(cyclesRefunded)
	prometheus.MustRegister(errHTTPOutcall)
	prometheus.MustRegister(errHostNotAllowed)
	prometheus.MustRegister(errNoPermission)
	prometheus.MustRegister(callOutcomes)
	prometheus.MustRegister(providerResponseSizeBytes)
}

var (
	// providerRequestsTotal counts outbound calls per JSON-RPC method and provider host.
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      requestsTotal,
			Help:      "Total number of outbound provider calls, labeled by method and host.",
		},
		[]string{"method", "host"},
	)

	// providerResponsesTotal counts provider responses by HTTP status.
	providerResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      responsesTotal,
			Help:      "Total number of provider responses, labeled by method, host and HTTP status.",
		},
		[]string{"method", "host", "status"},
	)

	// inconsistentResponses counts, per provider, the calls that ended in a disagreement.
	//
	// Usage:
	// - Spot providers that drift from the rest of a cluster.
	inconsistentResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      inconsistentResponsesTotal,
			Help:      "Total number of provider responses involved in a disagreement.",
		},
		[]string{"method", "host"},
	)

	cyclesCharged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      cyclesChargedTotal,
			Help:      "Total cycles charged to callers, labeled by method and host.",
		},
		[]string{"method", "host"},
	)

	cyclesRefunded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      cyclesRefundedTotal,
			Help:      "Total cycles refunded for providers that were not consulted.",
		},
		[]string{"method"},
	)

	errHTTPOutcall = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      errHTTPOutcallTotal,
			Help:      "Total number of outbound calls that failed before a response was received.",
		},
		[]string{"method", "host", "class"},
	)

	errHostNotAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      errHostNotAllowedTotal,
			Help:      "Total number of outbound calls rejected by the host allow-list.",
		},
		[]string{"host"},
	)

	errNoPermission = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      errNoPermissionTotal,
			Help:      "Total number of operations rejected for lack of a capability.",
		},
	)

	// callOutcomes counts caller-facing results: agreed, disagreement, rejected, etc.
	callOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: gatewayProcess,
			Name:      outcomesTotal,
			Help:      "Total number of gateway calls, labeled by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	// providerResponseSizeBytes tracks provider response sizes.
	// Buckets span a minimal status reply up to a full block.
	providerResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: gatewayProcess,
			Name:      responseSizeBytes,
			Help:      "Histogram of provider response sizes in bytes.",
			Buckets:   []float64{128, 1024, 8 * 1024, 64 * 1024, 512 * 1024, 2 * 1024 * 1024},
		},
		[]string{"method"},
	)
)

func statusLabel(status int) string {
	return strconv.Itoa(status)
}
