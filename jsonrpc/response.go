package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidResponse = errors.New("invalid JSON-RPC response")

// Response captures all the fields of a JSON-RPC response.
//
// Reference: https://www.jsonrpc.org/specification#response_object
type Response struct {
	ID      ID              `json:"id"`
	Version Version         `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError captures a JSON-RPC error object.
//
// Reference: https://www.jsonrpc.org/specification#error_object
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e ResponseError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// ParseResponse decodes a provider response body. Exactly one of result and
// error must be present.
func ParseResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if resp.Version != Version2 {
		return Response{}, fmt.Errorf("%w: jsonrpc field is %q, expected %q", ErrInvalidResponse, resp.Version, Version2)
	}

	hasResult := len(resp.Result) > 0
	switch {
	case resp.Error != nil && hasResult && string(resp.Result) != "null":
		return Response{}, fmt.Errorf("%w: both result and error are set", ErrInvalidResponse)
	case resp.Error == nil && !hasResult:
		return Response{}, fmt.Errorf("%w: neither result nor error is set", ErrInvalidResponse)
	}
	return resp, nil
}

// NewResultResponse builds a successful response.
func NewResultResponse(id ID, result json.RawMessage) Response {
	return Response{ID: id, Version: Version2, Result: result}
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id ID, code int, message string, data any) Response {
	return Response{
		ID:      id,
		Version: Version2,
		Error: &ResponseError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
