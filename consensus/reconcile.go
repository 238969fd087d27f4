package consensus

import (
	"bytes"
	"encoding/json"
)

// Result is the reconciled outcome of a fan-out. When Agreed is false the
// call ended in a disagreement and Outcomes carries every provider outcome
// for diagnostics.
type Result struct {
	Agreed   bool            `json:"agreed"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Outcomes []Outcome       `json:"outcomes"`
}

// ConsistentFault returns the shared fault when a disagreement was caused
// by every targeted provider failing with the same error.
func (r Result) ConsistentFault() (Outcome, bool) {
	if r.Agreed {
		return Outcome{}, false
	}

	var (
		first Outcome
		found bool
	)
	for _, o := range r.Outcomes {
		switch {
		case !o.IsFault():
			return Outcome{}, false
		case !found:
			first, found = o, true
		case !sameFault(first, o):
			return Outcome{}, false
		}
	}
	return first, found
}

// Counts returns the number of consulted and not consulted providers.
func (r Result) Counts() (consulted, notConsulted int) {
	for _, o := range r.Outcomes {
		if o.Kind == OutcomeNotConsulted {
			notConsulted++
			continue
		}
		consulted++
	}
	return consulted, notConsulted
}

// group is a set of identical successful payloads.
type group struct {
	payload []byte
	count   int
}

// groupSuccesses buckets successful payloads by canonical bytes, in order
// of first appearance.
func groupSuccesses(outcomes []Outcome) []group {
	var groups []group
	for _, o := range outcomes {
		if !o.IsSuccess() {
			continue
		}
		matched := false
		for i := range groups {
			if bytes.Equal(groups[i].payload, o.Payload) {
				groups[i].count++
				matched = true
				break
			}
		}
		if !matched {
			groups = append(groups, group{payload: o.Payload, count: 1})
		}
	}
	return groups
}

// Reconcile applies the strategy to the outcomes of a fan-out.
//
// Under equality every successful payload must be identical. Faulted
// providers are ignored as long as one provider succeeded. Under threshold(k) the largest group of identical payloads must
// hold at least k members and must not be tied with another group.
// Outcomes made only of faults always disagree.
func Reconcile(outcomes []Outcome, s Strategy) Result {
	result := Result{Outcomes: outcomes}
	groups := groupSuccesses(outcomes)
	if len(groups) == 0 {
		return result
	}

	switch s.Kind {
	case KindThreshold:
		best, tied := 0, false
		for i := 1; i < len(groups); i++ {
			switch {
			case groups[i].count > groups[best].count:
				best, tied = i, false
			case groups[i].count == groups[best].count:
				tied = true
			}
		}
		if tied || groups[best].count < s.Min {
			return result
		}
		result.Agreed = true
		result.Payload = groups[best].payload

	default:
		if len(groups) != 1 {
			return result
		}
		result.Agreed = true
		result.Payload = groups[0].payload
	}

	return result
}

// Decided reports whether the outcomes received so far already settle the
// result, so that outstanding calls can be abandoned. pending is the number
// of calls still in flight.
//
// Under threshold(k) the result is settled once a group reaches k members
// or once no group can reach k anymore. Under equality it is settled as soon
// as two successful payloads differ.
func Decided(received []Outcome, pending int, s Strategy) bool {
	if pending == 0 {
		return true
	}

	switch s.Kind {
	case KindThreshold:
		largest := 0
		for _, g := range groupSuccesses(received) {
			largest = max(largest, g.count)
		}
		return largest >= s.Min || largest+pending < s.Min

	default:
		return len(groupSuccesses(received)) > 1
	}
}
