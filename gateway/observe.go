package gateway

import (
	"time"

	"github.com/poroburu/ic-cosmos/consensus"
	"github.com/poroburu/ic-cosmos/provider"
)

// Disagreement describes a call whose providers did not satisfy the
// consensus strategy.
type Disagreement struct {
	Method    string              `json:"method"`
	Target    string              `json:"target"`
	Strategy  consensus.Strategy  `json:"strategy"`
	Caller    provider.Principal  `json:"caller"`
	Outcomes  []consensus.Outcome `json:"outcomes"`
	Timestamp time.Time           `json:"timestamp"`
}

// DisagreementReporter exports disagreements to any interested entity,
// e.g. a messaging system feeding provider diagnostics.
type DisagreementReporter interface {
	Publish(Disagreement)
}

type noopReporter struct{}

func (noopReporter) Publish(Disagreement) {}
