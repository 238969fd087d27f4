package gateway

import (
	"fmt"
	"strings"

	"github.com/poroburu/ic-cosmos/consensus"
	nethttp "github.com/poroburu/ic-cosmos/network/http"
)

// ErrorKind tags the caller-facing error variants.
type ErrorKind string

const (
	KindJSONRPC      ErrorKind = "json_rpc"
	KindHTTPOutcall  ErrorKind = "http_outcall"
	KindInconsistent ErrorKind = "inconsistent_response"
	KindValidation   ErrorKind = "validation"
	KindParse        ErrorKind = "parse"
	KindText         ErrorKind = "text"
)

// RPCError is an error returned by a chain query.
//
// Authorization and accounting failures are not RPCErrors: they are
// returned as wrapped provider.ErrUnauthorized and
// accounting.ErrInsufficientBalance.
type RPCError interface {
	error
	Kind() ErrorKind
}

var (
	_ RPCError = (*JSONRPCError)(nil)
	_ RPCError = (*HTTPOutcallError)(nil)
	_ RPCError = (*InconsistentResponseError)(nil)
	_ RPCError = (*ValidationError)(nil)
	_ RPCError = (*ParseError)(nil)
	_ RPCError = (*TextError)(nil)
)

// JSONRPCError is a method-level error returned by every consulted provider.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *JSONRPCError) Kind() ErrorKind { return KindJSONRPC }

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// HTTPOutcallError is a transport failure shared by every consulted provider.
type HTTPOutcallError struct {
	Class nethttp.RejectionClass `json:"class"`
	// Status is the HTTP status code, when a response was received.
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

func (e *HTTPOutcallError) Kind() ErrorKind { return KindHTTPOutcall }

func (e *HTTPOutcallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP outcall failed (%s, status %d): %s", e.Class, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP outcall failed (%s): %s", e.Class, e.Message)
}

// InconsistentResponseError reports that providers did not satisfy the
// consensus strategy. Outcomes holds the outcome of every targeted
// provider, in resolution order.
type InconsistentResponseError struct {
	Method   string              `json:"method"`
	Strategy consensus.Strategy  `json:"strategy"`
	Outcomes []consensus.Outcome `json:"outcomes"`
}

func (e *InconsistentResponseError) Kind() ErrorKind { return KindInconsistent }

func (e *InconsistentResponseError) Error() string {
	parts := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		parts = append(parts, fmt.Sprintf("%s: %s", o.Provider, o.String()))
	}
	return fmt.Sprintf("inconsistent responses for %s under %s: [%s]", e.Method, e.Strategy, strings.Join(parts, "; "))
}

// ValidationError is a caller mistake detected before dispatch: a bad
// target, strategy or parameter.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Kind() ErrorKind { return KindValidation }
func (e *ValidationError) Error() string   { return e.Err.Error() }
func (e *ValidationError) Unwrap() error   { return e.Err }

// ParseError is a payload that could not be decoded.
type ParseError struct {
	Message string `json:"message"`
}

func (e *ParseError) Kind() ErrorKind { return KindParse }
func (e *ParseError) Error() string   { return "parse error: " + e.Message }

type TextError struct {
	Message string `json:"message"`
}

func (e *TextError) Kind() ErrorKind { return KindText }
func (e *TextError) Error() string   { return e.Message }

func validationErr(format string, args ...any) *ValidationError {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// faultError maps a fault shared by every provider onto its RPCError.
func faultError(o consensus.Outcome) RPCError {
	switch o.Kind {
	case consensus.OutcomeJSONRPCFault:
		return &JSONRPCError{Code: o.Code, Message: o.Message}
	case consensus.OutcomeHTTPFault:
		return &HTTPOutcallError{Class: nethttp.RejectionClass(o.Class), Status: o.Code, Message: o.Message}
	case consensus.OutcomeParseFault:
		return &ParseError{Message: o.Message}
	default:
		return &TextError{Message: o.String()}
	}
}
