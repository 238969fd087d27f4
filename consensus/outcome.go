package consensus

import (
	"encoding/json"
	"fmt"

	"github.com/poroburu/ic-cosmos/provider"
)

// OutcomeKind classifies the result of a single provider call.
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeJSONRPCFault OutcomeKind = "jsonrpc_fault"
	OutcomeHTTPFault    OutcomeKind = "http_fault"
	OutcomeParseFault   OutcomeKind = "parse_fault"
	// OutcomeNotConsulted marks a provider whose call was abandoned once
	// the result was already decided.
	OutcomeNotConsulted OutcomeKind = "not_consulted"
)

// Outcome is the result of one provider call. Payload holds the canonical
// result of a success. Code and Message describe faults.
type Outcome struct {
	Provider provider.ID     `json:"provider"`
	Host     string          `json:"host"`
	Kind     OutcomeKind     `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	// Size is the raw response size in bytes.
	Size int `json:"size,omitempty"`
	// Code is the JSON-RPC error code of a JSON-RPC fault or the HTTP status
	// of an HTTP fault, when one was received.
	Code int `json:"code,omitempty"`
	// Class is the rejection class of an HTTP fault.
	Class   string `json:"class,omitempty"`
	Message string `json:"message,omitempty"`
}

func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

func (o Outcome) IsFault() bool {
	return o.Kind != OutcomeSuccess && o.Kind != OutcomeNotConsulted
}

// String summarizes the outcome for diagnostics.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return string(o.Payload)
	case OutcomeJSONRPCFault:
		return fmt.Sprintf("JSON-RPC error %d: %s", o.Code, o.Message)
	case OutcomeHTTPFault:
		if o.Code != 0 {
			return fmt.Sprintf("HTTP %s (%d): %s", o.Class, o.Code, o.Message)
		}
		return fmt.Sprintf("HTTP %s: %s", o.Class, o.Message)
	case OutcomeParseFault:
		return "parse error: " + o.Message
	default:
		return string(o.Kind)
	}
}

// sameFault reports whether two faults carry the same error.
func sameFault(a, b Outcome) bool {
	return a.Kind == b.Kind && a.Code == b.Code && a.Class == b.Class && a.Message == b.Message
}
