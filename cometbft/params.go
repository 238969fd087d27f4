package cometbft

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtjson "github.com/cometbft/cometbft/libs/json"

	"github.com/poroburu/ic-cosmos/gateway"
	"github.com/poroburu/ic-cosmos/jsonrpc"
)

// Named parameters of the CometBFT RPC methods. They are encoded with the
// CometBFT JSON codec, so int64 values travel as strings and byte slices
// as base64.

type heightParams struct {
	Height *int64 `json:"height,omitempty"`
}

type hashParams struct {
	Hash []byte `json:"hash"`
}

type hexHashParams struct {
	Hash cmtbytes.HexBytes `json:"hash"`
}

type blockchainParams struct {
	MinHeight *int64 `json:"minHeight,omitempty"`
	MaxHeight *int64 `json:"maxHeight,omitempty"`
}

type txParams struct {
	Hash  []byte `json:"hash"`
	Prove bool   `json:"prove"`
}

type abciQueryParams struct {
	Path   string            `json:"path"`
	Data   cmtbytes.HexBytes `json:"data"`
	Height *int64            `json:"height,omitempty"`
	Prove  bool              `json:"prove"`
}

type rawTxParams struct {
	Tx []byte `json:"tx"`
}

type validatorsParams struct {
	Height  *int64 `json:"height,omitempty"`
	Page    *int   `json:"page,omitempty"`
	PerPage *int   `json:"per_page,omitempty"`
}

func encodeParams(v any) (jsonrpc.Params, error) {
	raw, err := cmtjson.Marshal(v)
	if err != nil {
		return jsonrpc.Params{}, &gateway.ValidationError{Err: fmt.Errorf("failed to encode params: %w", err)}
	}
	params, err := jsonrpc.NewParams(raw)
	if err != nil {
		return jsonrpc.Params{}, &gateway.ValidationError{Err: err}
	}
	return params, nil
}

// parseHeight parses a decimal height. An empty string selects the latest
// height.
func parseHeight(name, s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	h, err := strconv.ParseInt(s, 10, 64)
	if err != nil || h < 0 {
		return nil, &gateway.ValidationError{Err: fmt.Errorf("invalid %s %q", name, s)}
	}
	return &h, nil
}

// parseCount parses an optional positive page number or size.
func parseCount(name, s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return nil, &gateway.ValidationError{Err: fmt.Errorf("invalid %s %q", name, s)}
	}
	return &n, nil
}

// decodeHash accepts a hex hash with or without a 0x prefix.
func decodeHash(s string) ([]byte, error) {
	b, err := hex.DecodeString(strip0x(s))
	if err != nil {
		return nil, &gateway.ParseError{Message: fmt.Sprintf("invalid hex hash: %v", err)}
	}
	return b, nil
}

func strip0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
