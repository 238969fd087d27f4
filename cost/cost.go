// Package cost prices outbound JSON-RPC calls before they are dispatched.
//
// A single call to one provider costs
//
//	(baseFee + perNodeFee·n)·n + requestByteFee·n·requestBytes + responseByteFee·n·responseBytes
//
// where n is the number of replicas executing the call. A fan-out to k
// providers costs k times as much. The response size is fixed up front from
// the caller estimate, or MaxResponseBytes without one, so the charge is
// known before any provider is contacted.
package cost

const (
	// DefaultNodesInSubnet is the replica count used when none is configured.
	DefaultNodesInSubnet = 34

	// HeaderSizeLimit is the allowance added to every response size estimate
	// to cover HTTP response headers.
	HeaderSizeLimit = 2 * 1024

	// MaxResponseBytes is the largest response a provider call may return.
	MaxResponseBytes = 2 * 1024 * 1024

	baseFee         = 3_000_000
	perNodeFee      = 60_000
	requestByteFee  = 400
	responseByteFee = 800
)

// Model is a pure pricing function over request shape and provider count.
type Model struct {
	NodesInSubnet uint64
	// Demo prices every call at zero.
	Demo bool
}

// Record is the price of a call, fixed before dispatch.
type Record struct {
	EstimatedCycles uint64      `json:"estimated_cycles"`
	PerCallCycles   uint64      `json:"per_call_cycles"`
	ProviderCount   int         `json:"provider_count"`
	MethodClass     MethodClass `json:"method_class"`
	// MaxResponseBytes is the response cap applied to every provider call.
	MaxResponseBytes uint64 `json:"max_response_bytes"`
}

// NewModel returns a model with nodesInSubnet replicas, defaulting to
// DefaultNodesInSubnet when zero.
func NewModel(nodesInSubnet uint64, demo bool) Model {
	if nodesInSubnet == 0 {
		nodesInSubnet = DefaultNodesInSubnet
	}
	return Model{NodesInSubnet: nodesInSubnet, Demo: demo}
}

// Price returns the cost of sending a request of requestBytes to
// providerCount providers. A nil estimate is priced at MaxResponseBytes.
// providerCount below one is priced as one.
func (m Model) Price(method string, providerCount int, requestBytes int, estimate *uint64) Record {
	if providerCount < 1 {
		providerCount = 1
	}

	responseBytes := ResponseBytes(estimate)
	perCall := m.Cycles(uint64(requestBytes), responseBytes)

	return Record{
		EstimatedCycles:  perCall * uint64(providerCount),
		PerCallCycles:    perCall,
		ProviderCount:    providerCount,
		MethodClass:      Classify(method),
		MaxResponseBytes: responseBytes,
	}
}

// RequestCost previews the price of a single provider call.
func (m Model) RequestCost(method string, requestBytes int, estimate *uint64) uint64 {
	return m.Price(method, 1, requestBytes, estimate).EstimatedCycles
}

// Refund returns the cycles owed back for providers that were priced but
// never consulted.
func (r Record) Refund(notConsulted int) uint64 {
	if notConsulted <= 0 {
		return 0
	}
	if notConsulted > r.ProviderCount {
		notConsulted = r.ProviderCount
	}
	return r.PerCallCycles * uint64(notConsulted)
}

// Cycles returns the price of a single provider call with the given
// request size and response cap.
func (m Model) Cycles(requestBytes, responseBytes uint64) uint64 {
	if m.Demo {
		return 0
	}
	n := m.NodesInSubnet
	if n == 0 {
		n = DefaultNodesInSubnet
	}
	return (baseFee+perNodeFee*n)*n +
		requestByteFee*n*requestBytes +
		responseByteFee*n*responseBytes
}

// ResponseBytes returns the per-call response cap: the caller estimate plus
// HeaderSizeLimit, capped at MaxResponseBytes. Without an estimate the cap
// is MaxResponseBytes, so no reply is cut short by a guess.
func ResponseBytes(estimate *uint64) uint64 {
	if estimate == nil || *estimate >= MaxResponseBytes {
		return MaxResponseBytes
	}
	return min(*estimate+HeaderSizeLimit, MaxResponseBytes)
}
