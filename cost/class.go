package cost

// MethodClass buckets methods by their expected response size. It labels
// prices and metrics.
type MethodClass string

const (
	ClassMinimal MethodClass = "minimal"
	ClassSmall   MethodClass = "small"
	ClassMedium  MethodClass = "medium"
	ClassLarge   MethodClass = "large"
	ClassBlock   MethodClass = "block"
	ClassUnknown MethodClass = "unknown"
)

var methodClasses = map[string]MethodClass{
	"health":               ClassMinimal,
	"abci_info":            ClassMinimal,
	"num_unconfirmed_txs":  ClassMinimal,
	"broadcast_tx_async":   ClassMinimal,
	"broadcast_tx_sync":    ClassMinimal,
	"status":               ClassSmall,
	"consensus_params":     ClassSmall,
	"header":               ClassSmall,
	"header_by_hash":       ClassSmall,
	"check_tx":             ClassSmall,
	"abci_query":           ClassMedium,
	"commit":               ClassMedium,
	"consensus_state":      ClassMedium,
	"tx":                   ClassMedium,
	"validators":           ClassMedium,
	"net_info":             ClassLarge,
	"dump_consensus_state": ClassLarge,
	"block_results":        ClassLarge,
	"blockchain":           ClassLarge,
	"unconfirmed_txs":      ClassLarge,
	"block":                ClassBlock,
	"block_by_hash":        ClassBlock,
}

// Classify returns the size class of a method, or ClassUnknown.
func Classify(method string) MethodClass {
	if c, ok := methodClasses[method]; ok {
		return c
	}
	return ClassUnknown
}
