package router

import (
	"net/http"

	"github.com/poroburu/ic-cosmos/gateway"
	"github.com/poroburu/ic-cosmos/provider"
)

type (
	addressResponse struct {
		Address string `json:"address"`
	}

	// signMessageRequest carries the message base64 encoded.
	signMessageRequest struct {
		Message []byte `json:"message"`
	}

	signMessageResponse struct {
		Signature []byte `json:"signature"`
	}

	sendTransactionRequest struct {
		Target provider.Target   `json:"target"`
		Config gateway.RpcConfig `json:"config"`
		// Tx is the signed transaction, base64 encoded.
		Tx string `json:"tx"`
	}

	sendTransactionResponse struct {
		Hash string `json:"hash"`
	}
)

// GET /v1/wallet/address - the caller's compressed public key, hex encoded.
func (r *router) handleAddress(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	address, err := r.wallet.Address(req.Context(), caller)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, addressResponse{Address: address})
}

// GET /v1/wallet/cosmos_address - the caller's bech32 account address.
func (r *router) handleCosmosAddress(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	address, err := r.wallet.CosmosAddress(req.Context(), caller)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, addressResponse{Address: address})
}

// POST /v1/wallet/sign_message
func (r *router) handleSignMessage(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	var body signMessageRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}

	sig, err := r.wallet.SignMessage(req.Context(), caller, body.Message)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, signMessageResponse{Signature: sig})
}

// POST /v1/wallet/send_transaction
func (r *router) handleSendTransaction(w http.ResponseWriter, req *http.Request, caller provider.Principal) {
	var body sendTransactionRequest
	if err := r.decodeBody(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}

	hash, err := r.wallet.SendTransaction(req.Context(), caller, body.Target, body.Config, body.Tx)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, sendTransactionResponse{Hash: hash})
}
