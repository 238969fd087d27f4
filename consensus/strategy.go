// Package consensus reconciles the outcomes of a fan-out into a single
// agreed result or a disagreement.
package consensus

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidStrategy  = errors.New("invalid consensus strategy")
	ErrStrategyRequired = errors.New("a consensus strategy is required when targeting more than one provider")
)

// Kind selects how outcomes are reconciled.
type Kind string

const (
	// KindEquality requires every provider to return the same successful payload.
	KindEquality Kind = "equality"
	// KindThreshold requires at least Min providers to return the same payload.
	KindThreshold Kind = "threshold"
)

// Strategy is a consensus rule.
type Strategy struct {
	Kind Kind `json:"kind"`
	Min  int  `json:"min,omitempty"`
}

func Equality() Strategy {
	return Strategy{Kind: KindEquality}
}

func Threshold(k int) Strategy {
	return Strategy{Kind: KindThreshold, Min: k}
}

// Validate checks the strategy against the number of targeted providers.
func (s Strategy) Validate(targets int) error {
	switch s.Kind {
	case KindEquality:
		return nil
	case KindThreshold:
		if s.Min < 1 || s.Min > targets {
			return fmt.Errorf("%w: threshold %d must be between 1 and %d providers", ErrInvalidStrategy, s.Min, targets)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidStrategy, s.Kind)
	}
}

func (s Strategy) String() string {
	if s.Kind == KindThreshold {
		return fmt.Sprintf("threshold(%d)", s.Min)
	}
	return string(s.Kind)
}

// UnmarshalJSON accepts {"kind":"threshold","min":2} as well as the short
// forms "equality" and {"threshold":2}.
func (s *Strategy) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = Strategy{Kind: Kind(name)}
		return nil
	}

	var long struct {
		Kind      Kind `json:"kind"`
		Min       int  `json:"min"`
		Threshold *int `json:"threshold"`
	}
	if err := json.Unmarshal(data, &long); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	if long.Threshold != nil {
		*s = Threshold(*long.Threshold)
		return nil
	}
	*s = Strategy{Kind: long.Kind, Min: long.Min}
	return nil
}

// Resolve picks the strategy for a read call. An explicit strategy is
// validated. Without one, a single target defaults to equality and
// multiple targets are an error.
func Resolve(explicit *Strategy, targets int) (Strategy, error) {
	if explicit == nil {
		if targets == 1 {
			return Equality(), nil
		}
		return Strategy{}, ErrStrategyRequired
	}
	if err := explicit.Validate(targets); err != nil {
		return Strategy{}, err
	}
	return *explicit, nil
}

// ResolveSubmit picks the strategy for a state-changing call. Equality is
// the default regardless of the number of targets.
func ResolveSubmit(explicit *Strategy, targets int) (Strategy, error) {
	if explicit == nil {
		return Equality(), nil
	}
	return Resolve(explicit, targets)
}
