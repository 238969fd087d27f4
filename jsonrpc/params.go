package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Params is the 'params' field of a JSON-RPC request.
//
// Only structured values are accepted: an array or an object. The raw value
// is kept private so every instance passes through validation.
//
// Reference: https://www.jsonrpc.org/specification#parameter_structures
type Params struct {
	rawMessage json.RawMessage
}

// NewParams validates raw and wraps it as Params. An empty or null raw
// value yields empty Params.
func NewParams(raw json.RawMessage) (Params, error) {
	var p Params
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := p.UnmarshalJSON(raw); err != nil {
		return Params{}, err
	}
	return p, nil
}

// ParamsFromObject marshals v, which must encode as an object or array.
func ParamsFromObject(v any) (Params, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Params{}, fmt.Errorf("failed to marshal params: %w", err)
	}
	return NewParams(raw)
}

func (p Params) MarshalJSON() ([]byte, error) {
	if p.IsEmpty() {
		return []byte("null"), nil
	}
	return p.rawMessage, nil
}

func (p *Params) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		p.rawMessage = nil
		return nil
	}

	var checkType any
	if err := json.Unmarshal(data, &checkType); err != nil {
		return fmt.Errorf("failed to unmarshal params field: %w", err)
	}

	switch checkType.(type) {
	case []any, map[string]any:
		p.rawMessage = append(json.RawMessage(nil), data...)
		return nil
	default:
		return fmt.Errorf("params must be either array or object, got %T", checkType)
	}
}

func (p Params) IsEmpty() bool {
	return len(p.rawMessage) == 0
}

// Raw returns the validated params value.
func (p Params) Raw() json.RawMessage {
	return p.rawMessage
}
