package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	cmtjson "github.com/cometbft/cometbft/libs/json"

	"github.com/poroburu/ic-cosmos/accounting"
	"github.com/poroburu/ic-cosmos/gateway"
	"github.com/poroburu/ic-cosmos/provider"
	"github.com/poroburu/ic-cosmos/wallet"
)

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Details carries the structured error, e.g. the per-provider outcomes
	// of an inconsistent response.
	Details any `json:"details,omitempty"`
}

// errorStatus maps an error onto its HTTP status and kind.
func errorStatus(err error) (int, string) {
	var rpcErr gateway.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Kind() {
		case gateway.KindValidation:
			if errors.Is(err, provider.ErrNotFound) {
				return http.StatusNotFound, "not_found"
			}
			return http.StatusBadRequest, string(rpcErr.Kind())
		case gateway.KindInconsistent:
			return http.StatusBadGateway, string(rpcErr.Kind())
		default:
			return http.StatusInternalServerError, string(rpcErr.Kind())
		}
	}

	var rejected *wallet.TxRejectedError
	switch {
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, "tx_rejected"
	case errors.Is(err, provider.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, wallet.ErrAnonymousCaller):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, accounting.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, provider.ErrAlreadyExists),
		errors.Is(err, provider.ErrImmutable),
		errors.Is(err, provider.ErrLastManager):
		return http.StatusConflict, "conflict"
	case errors.Is(err, provider.ErrInvalidProvider),
		errors.Is(err, provider.ErrUnknownCapability),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, wallet.ErrKeyUnavailable):
		return http.StatusServiceUnavailable, "key_unavailable"
	default:
		return http.StatusInternalServerError, "text"
	}
}

// errorDetails returns the structured part of err worth sending back.
func errorDetails(err error) any {
	var (
		inconsistent *gateway.InconsistentResponseError
		jsonRPC      *gateway.JSONRPCError
		outcall      *gateway.HTTPOutcallError
		rejected     *wallet.TxRejectedError
	)
	switch {
	case errors.As(err, &inconsistent):
		return inconsistent
	case errors.As(err, &jsonRPC):
		return jsonRPC
	case errors.As(err, &outcall):
		return outcall
	case errors.As(err, &rejected):
		return rejected
	default:
		return nil
	}
}

func (r *router) writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	if status >= http.StatusInternalServerError {
		r.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	}
	r.writeJSON(w, status, errorBody{Error: errorDetail{
		Kind:    kind,
		Message: err.Error(),
		Details: errorDetails(err),
	}})
}

func (r *router) writeErrorStatus(w http.ResponseWriter, status int, kind string, err error) {
	r.writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: err.Error()}})
}

func (r *router) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		r.logger.Error().Err(err).Msg("error marshalling response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	r.write(w, status, body)
}

// writeChainJSON encodes CometBFT result types, whose int64 and byte
// fields follow the CometBFT RPC wire format.
func (r *router) writeChainJSON(w http.ResponseWriter, v any) {
	body, err := cmtjson.Marshal(v)
	if err != nil {
		r.writeError(w, &gateway.ParseError{Message: err.Error()})
		return
	}
	r.write(w, http.StatusOK, body)
}

func (r *router) write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		r.logger.Error().Err(err).Msg("error writing response")
	}
}

var errBadRequest = errors.New("bad request")

// decodeBody reads a JSON body bounded by the configured request size.
func (r *router) decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	if r.config.MaxRequestBodyBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.config.MaxRequestBodyBytes)
	}
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}
