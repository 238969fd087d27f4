package jsonrpc

import "fmt"

const (
	// Non-reserved codes mark errors raised by the gateway itself, as opposed
	// to errors relayed from a provider (-32000 and friends).
	ResponseCodeDefaultInternalErr = -31001
	ResponseCodeBackendServerErr   = -31002
	ResponseCodeInconsistent       = -31003

	ResponseCodeDefaultBadRequest = -32600
)

// NewErrResponseInternalErr reports a failure inside the gateway.
func NewErrResponseInternalErr(id ID, err error) Response {
	return NewErrorResponse(
		id,
		ResponseCodeDefaultInternalErr,
		fmt.Sprintf("internal error: %s", err.Error()),
		map[string]string{"error": err.Error()},
	)
}

// NewErrResponseInvalidRequest reports a request that cannot be processed as sent.
func NewErrResponseInvalidRequest(id ID, err error) Response {
	return NewErrorResponse(
		id,
		ResponseCodeDefaultBadRequest,
		fmt.Sprintf("invalid request: %s", err.Error()),
		map[string]string{"error": err.Error()},
	)
}

// NewErrResponseInconsistent reports providers that failed to agree.
func NewErrResponseInconsistent(id ID, data any) Response {
	return NewErrorResponse(
		id,
		ResponseCodeInconsistent,
		"providers returned inconsistent responses",
		data,
	)
}
