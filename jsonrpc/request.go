// Package jsonrpc holds the JSON-RPC 2.0 wire types exchanged with providers
// and the canonical form used to compare their responses.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidRequest = errors.New("invalid JSON-RPC request")

type Version string

const Version2 = Version("2.0")

// Request is a JSON-RPC 2.0 request.
//
// Reference: https://www.jsonrpc.org/specification#request_object
type Request struct {
	ID      ID      `json:"id"`
	JSONRPC Version `json:"jsonrpc"`
	Method  string  `json:"method"`
	Params  Params  `json:"params,omitempty"`
}

// NewRequest builds a request for method with the given params.
func NewRequest(id ID, method string, params Params) Request {
	return Request{
		ID:      id,
		JSONRPC: Version2,
		Method:  method,
		Params:  params,
	}
}

// MarshalJSON always emits the id field and omits empty params.
func (r Request) MarshalJSON() ([]byte, error) {
	type requestAlias struct {
		JSONRPC Version `json:"jsonrpc"`
		Method  string  `json:"method"`
		Params  *Params `json:"params,omitempty"`
		ID      ID      `json:"id"`
	}

	out := requestAlias{
		JSONRPC: r.JSONRPC,
		Method:  r.Method,
		ID:      r.ID,
	}
	if !r.Params.IsEmpty() {
		out.Params = &r.Params
	}
	return json.Marshal(out)
}

// ParseRequest decodes and validates a caller supplied request.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.JSONRPC != Version2 {
		return Request{}, fmt.Errorf("%w: jsonrpc field is %q, expected %q", ErrInvalidRequest, req.JSONRPC, Version2)
	}
	if req.Method == "" {
		return Request{}, fmt.Errorf("%w: method is empty", ErrInvalidRequest)
	}
	return req, nil
}
