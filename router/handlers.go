package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/poroburu/ic-cosmos/cometbft"
	"github.com/poroburu/ic-cosmos/gateway"
	"github.com/poroburu/ic-cosmos/provider"
)

/* --------------------------------- Chain Queries -------------------------------- */

type (
	// typedCallRequest is the body of POST /v1/cometbft/{method}.
	typedCallRequest struct {
		Target provider.Target   `json:"target"`
		Config gateway.RpcConfig `json:"config"`
		Args   json.RawMessage   `json:"args,omitempty"`
	}

	// rawRequest is the body of POST /v1/request.
	rawRequest struct {
		Target provider.Target   `json:"target"`
		Config gateway.RpcConfig `json:"config"`
		Method string            `json:"method"`
		Params json.RawMessage   `json:"params,omitempty"`
	}

	rawResponse struct {
		Result json.RawMessage `json:"result"`
	}

	requestCostResponse struct {
		Method string `json:"method"`
		Cycles uint64 `json:"cycles"`
	}
)

// POST /v1/cometbft/{method} - runs a typed CometBFT query.
func (r *router) handleTypedCall(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	method := req.PathValue(pathParamMethod)

	var body typedCallRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}

	scope := cometbft.Scope{Caller: caller, Target: body.Target, Config: body.Config}
	result, err := r.chain.Call(req.Context(), scope, method, body.Args)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeChainJSON(w, result)
}

// POST /v1/request - forwards a method without a typed wrapper.
func (r *router) handleRequest(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	var body rawRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}

	result, err := r.gateway.Request(req.Context(), caller, body.Target, body.Config, body.Method, string(body.Params))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, rawResponse{Result: json.RawMessage(result)})
}

// GET /v1/request_cost?method=block&response_size_estimate=2000
func (r *router) handleRequestCost(w http.ResponseWriter, req *http.Request) {
	method := req.URL.Query().Get("method")

	var estimate *uint64
	if raw := req.URL.Query().Get("response_size_estimate"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			r.writeError(w, &gateway.ValidationError{Err: fmt.Errorf("invalid response_size_estimate %q", raw)})
			return
		}
		estimate = &n
	}

	cycles, err := r.gateway.RequestCost(method, estimate)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, requestCostResponse{Method: method, Cycles: cycles})
}

// GET /v1/metrics - returns the collected counters.
func (r *router) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	r.writeJSON(w, http.StatusOK, r.gateway.GetMetrics())
}
