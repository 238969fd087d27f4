package metrics

import (
	"cmp"
	"encoding/json"
	"maps"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	nethttp "github.com/poroburu/ic-cosmos/network/http"
)

// Outcome is the caller-facing result of a gateway call.
type Outcome string

const (
	OutcomeAgreed              Outcome = "agreed"
	OutcomeDisagreement        Outcome = "disagreement"
	OutcomeConsistentError     Outcome = "consistent_error"
	OutcomeInvalid             Outcome = "invalid"
	OutcomeInsufficientBalance Outcome = "insufficient_balance"
)

type MethodHost struct {
	Method string
	Host   string
}

type MethodHostStatus struct {
	Method string
	Host   string
	Status int
}

type MethodOutcome struct {
	Method  string
	Outcome Outcome
}

// Metrics is a point-in-time copy of the collected counters.
type Metrics struct {
	Requests              map[MethodHost]uint64
	Responses             map[MethodHostStatus]uint64
	InconsistentResponses map[MethodHost]uint64
	CyclesCharged         map[MethodHost]uint64
	CyclesRefunded        map[string]uint64
	ErrHTTPOutcall        map[MethodHost]uint64
	ErrHostNotAllowed     map[string]uint64
	ErrNoPermission       uint64
	Outcomes              map[MethodOutcome]uint64
}

func newMetrics() Metrics {
	return Metrics{
		Requests:              make(map[MethodHost]uint64),
		Responses:             make(map[MethodHostStatus]uint64),
		InconsistentResponses: make(map[MethodHost]uint64),
		CyclesCharged:         make(map[MethodHost]uint64),
		CyclesRefunded:        make(map[string]uint64),
		ErrHTTPOutcall:        make(map[MethodHost]uint64),
		ErrHostNotAllowed:     make(map[string]uint64),
		Outcomes:              make(map[MethodOutcome]uint64),
	}
}

func (m Metrics) clone() Metrics {
	return Metrics{
		Requests:              maps.Clone(m.Requests),
		Responses:             maps.Clone(m.Responses),
		InconsistentResponses: maps.Clone(m.InconsistentResponses),
		CyclesCharged:         maps.Clone(m.CyclesCharged),
		CyclesRefunded:        maps.Clone(m.CyclesRefunded),
		ErrHTTPOutcall:        maps.Clone(m.ErrHTTPOutcall),
		ErrHostNotAllowed:     maps.Clone(m.ErrHostNotAllowed),
		ErrNoPermission:       m.ErrNoPermission,
		Outcomes:              maps.Clone(m.Outcomes),
	}
}

// Collector records gateway observations. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex
	m  Metrics
}

func NewCollector() *Collector {
	return &Collector{m: newMetrics()}
}

// Snapshot returns a copy of the collected counters.
func (c *Collector) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.clone()
}

func (c *Collector) ObserveRequest(method, host string) {
	c.mu.Lock()
	c.m.Requests[MethodHost{method, host}]++
	c.mu.Unlock()

	providerRequestsTotal.With(prometheus.Labels{"method": method, "host": host}).Inc()
}

func (c *Collector) ObserveResponse(method, host string, status int) {
	c.mu.Lock()
	c.m.Responses[MethodHostStatus{method, host, status}]++
	c.mu.Unlock()

	providerResponsesTotal.With(prometheus.Labels{
		"method": method,
		"host":   host,
		"status": statusLabel(status),
	}).Inc()
}

// ObserveOutcallError records a call that produced no response. Calls
// rejected by the host allow-list are counted separately.
func (c *Collector) ObserveOutcallError(method, host string, class nethttp.RejectionClass) {
	if class == nethttp.RejectionHostNotAllowed {
		c.mu.Lock()
		c.m.ErrHostNotAllowed[host]++
		c.mu.Unlock()

		errHostNotAllowed.With(prometheus.Labels{"host": host}).Inc()
		return
	}

	c.mu.Lock()
	c.m.ErrHTTPOutcall[MethodHost{method, host}]++
	c.mu.Unlock()

	errHTTPOutcall.With(prometheus.Labels{"method": method, "host": host, "class": string(class)}).Inc()
}

func (c *Collector) ObserveResponseSize(method string, size int) {
	providerResponseSizeBytes.With(prometheus.Labels{"method": method}).Observe(float64(size))
}

func (c *Collector) ObserveInconsistent(method, host string) {
	c.mu.Lock()
	c.m.InconsistentResponses[MethodHost{method, host}]++
	c.mu.Unlock()

	inconsistentResponses.With(prometheus.Labels{"method": method, "host": host}).Inc()
}

func (c *Collector) ObserveCharged(method, host string, cycles uint64) {
	if cycles == 0 {
		return
	}

	c.mu.Lock()
	c.m.CyclesCharged[MethodHost{method, host}] += cycles
	c.mu.Unlock()

	cyclesCharged.With(prometheus.Labels{"method": method, "host": host}).Add(float64(cycles))
}

func (c *Collector) ObserveRefund(method string, cycles uint64) {
	if cycles == 0 {
		return
	}

	c.mu.Lock()
	c.m.CyclesRefunded[method] += cycles
	c.mu.Unlock()

	cyclesRefunded.With(prometheus.Labels{"method": method}).Add(float64(cycles))
}

func (c *Collector) ObserveNoPermission() {
	c.mu.Lock()
	c.m.ErrNoPermission++
	c.mu.Unlock()

	errNoPermission.Inc()
}

func (c *Collector) ObserveOutcome(method string, outcome Outcome) {
	c.mu.Lock()
	c.m.Outcomes[MethodOutcome{method, outcome}]++
	c.mu.Unlock()

	callOutcomes.With(prometheus.Labels{"method": method, "outcome": string(outcome)}).Inc()
}

// Counter is one labeled counter value in the JSON form of Metrics.
type Counter struct {
	Method  string  `json:"method,omitempty"`
	Host    string  `json:"host,omitempty"`
	Status  int     `json:"status,omitempty"`
	Outcome Outcome `json:"outcome,omitempty"`
	Value   uint64  `json:"value"`
}

// MarshalJSON renders every labeled counter as a sorted list.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Requests              []Counter `json:"requests"`
		Responses             []Counter `json:"responses"`
		InconsistentResponses []Counter `json:"inconsistent_responses"`
		CyclesCharged         []Counter `json:"cycles_charged"`
		CyclesRefunded        []Counter `json:"cycles_refunded"`
		ErrHTTPOutcall        []Counter `json:"err_http_outcall"`
		ErrHostNotAllowed     []Counter `json:"err_host_not_allowed"`
		ErrNoPermission       uint64    `json:"err_no_permission"`
		Outcomes              []Counter `json:"outcomes"`
	}{
		Requests:              methodHostCounters(m.Requests),
		Responses:             counters(m.Responses, func(k MethodHostStatus) Counter { return Counter{Method: k.Method, Host: k.Host, Status: k.Status} }),
		InconsistentResponses: methodHostCounters(m.InconsistentResponses),
		CyclesCharged:         methodHostCounters(m.CyclesCharged),
		CyclesRefunded:        counters(m.CyclesRefunded, func(k string) Counter { return Counter{Method: k} }),
		ErrHTTPOutcall:        methodHostCounters(m.ErrHTTPOutcall),
		ErrHostNotAllowed:     counters(m.ErrHostNotAllowed, func(k string) Counter { return Counter{Host: k} }),
		ErrNoPermission:       m.ErrNoPermission,
		Outcomes:              counters(m.Outcomes, func(k MethodOutcome) Counter { return Counter{Method: k.Method, Outcome: k.Outcome} }),
	})
}

func methodHostCounters(m map[MethodHost]uint64) []Counter {
	return counters(m, func(k MethodHost) Counter { return Counter{Method: k.Method, Host: k.Host} })
}

func counters[K comparable](m map[K]uint64, label func(K) Counter) []Counter {
	out := make([]Counter, 0, len(m))
	for k, v := range m {
		counter := label(k)
		counter.Value = v
		out = append(out, counter)
	}
	slices.SortFunc(out, func(a, b Counter) int {
		return cmp.Or(
			cmp.Compare(a.Method, b.Method),
			cmp.Compare(a.Host, b.Host),
			cmp.Compare(a.Status, b.Status),
			cmp.Compare(a.Outcome, b.Outcome),
		)
	})
	return out
}
