// Package cometbft exposes one typed operation per CometBFT RPC method.
// Every operation runs through the gateway, so it is priced, fanned out to
// the target providers and reconciled before its result is decoded.
package cometbft

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	cmtjson "github.com/cometbft/cometbft/libs/json"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"

	"github.com/poroburu/ic-cosmos/gateway"
	"github.com/poroburu/ic-cosmos/jsonrpc"
	"github.com/poroburu/ic-cosmos/provider"
)

// Gateway runs priced and reconciled calls.
type Gateway interface {
	Query(ctx context.Context, caller provider.Principal, call gateway.Call) (json.RawMessage, error)
	Submit(ctx context.Context, caller provider.Principal, call gateway.Call) (json.RawMessage, error)
}

// Scope is who calls and which providers answer.
type Scope struct {
	Caller provider.Principal
	Target provider.Target
	Config gateway.RpcConfig
}

type Client struct {
	gateway Gateway
}

func NewClient(gw Gateway) *Client {
	return &Client{gateway: gw}
}

// query runs a read call and decodes the agreed result.
func query[T any](ctx context.Context, c *Client, s Scope, method string, params any) (*T, error) {
	p, err := paramsOf(params)
	if err != nil {
		return nil, err
	}
	payload, err := c.gateway.Query(ctx, s.Caller, gateway.Call{Target: s.Target, Config: s.Config, Method: method, Params: p})
	if err != nil {
		return nil, err
	}
	return decode[T](method, payload)
}

// submit runs a state-changing call and decodes the agreed result.
func submit[T any](ctx context.Context, c *Client, s Scope, method string, params any) (*T, error) {
	p, err := paramsOf(params)
	if err != nil {
		return nil, err
	}
	payload, err := c.gateway.Submit(ctx, s.Caller, gateway.Call{Target: s.Target, Config: s.Config, Method: method, Params: p})
	if err != nil {
		return nil, err
	}
	return decode[T](method, payload)
}

func paramsOf(params any) (jsonrpc.Params, error) {
	if params == nil {
		return jsonrpc.Params{}, nil
	}
	return encodeParams(params)
}

func decode[T any](method string, payload json.RawMessage) (*T, error) {
	out := new(T)
	if err := cmtjson.Unmarshal(payload, out); err != nil {
		return nil, &gateway.ParseError{Message: fmt.Sprintf("failed to decode %s result: %v", method, err)}
	}
	return out, nil
}

// Health reports whether the providers consider themselves healthy. A
// JSON-RPC error shared by every provider means unhealthy.
func (c *Client) Health(ctx context.Context, s Scope) (bool, error) {
	_, err := query[coretypes.ResultHealth](ctx, c, s, MethodHealth, nil)
	if err == nil {
		return true, nil
	}
	var rpcErr *gateway.JSONRPCError
	if errors.As(err, &rpcErr) {
		return false, nil
	}
	return false, err
}

func (c *Client) Status(ctx context.Context, s Scope) (*coretypes.ResultStatus, error) {
	return query[coretypes.ResultStatus](ctx, c, s, MethodStatus, nil)
}

func (c *Client) ABCIInfo(ctx context.Context, s Scope) (*coretypes.ResultABCIInfo, error) {
	return query[coretypes.ResultABCIInfo](ctx, c, s, MethodABCIInfo, nil)
}

func (c *Client) ConsensusState(ctx context.Context, s Scope) (*coretypes.ResultConsensusState, error) {
	return query[coretypes.ResultConsensusState](ctx, c, s, MethodConsensusState, nil)
}

func (c *Client) DumpConsensusState(ctx context.Context, s Scope) (*coretypes.ResultDumpConsensusState, error) {
	return query[coretypes.ResultDumpConsensusState](ctx, c, s, MethodDumpConsensusState, nil)
}

func (c *Client) NetInfo(ctx context.Context, s Scope) (*coretypes.ResultNetInfo, error) {
	return query[coretypes.ResultNetInfo](ctx, c, s, MethodNetInfo, nil)
}

// Block returns the block at height, or the latest block when height is empty.
func (c *Client) Block(ctx context.Context, s Scope, height string) (*coretypes.ResultBlock, error) {
	h, err := parseHeight("height", height)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultBlock](ctx, c, s, MethodBlock, heightParams{Height: h})
}

// BlockByHash looks a block up by its hex hash.
func (c *Client) BlockByHash(ctx context.Context, s Scope, hash string) (*coretypes.ResultBlock, error) {
	b, err := decodeHash(hash)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultBlock](ctx, c, s, MethodBlockByHash, hashParams{Hash: b})
}

func (c *Client) BlockResults(ctx context.Context, s Scope, height string) (*coretypes.ResultBlockResults, error) {
	h, err := parseHeight("height", height)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultBlockResults](ctx, c, s, MethodBlockResults, heightParams{Height: h})
}

// Blockchain returns the block metas between minHeight and maxHeight.
func (c *Client) Blockchain(ctx context.Context, s Scope, minHeight, maxHeight string) (*coretypes.ResultBlockchainInfo, error) {
	lo, err := parseHeight("minHeight", minHeight)
	if err != nil {
		return nil, err
	}
	hi, err := parseHeight("maxHeight", maxHeight)
	if err != nil {
		return nil, err
	}
	if lo != nil && hi != nil && *lo > *hi {
		return nil, &gateway.ValidationError{Err: fmt.Errorf("minHeight %d is above maxHeight %d", *lo, *hi)}
	}
	return query[coretypes.ResultBlockchainInfo](ctx, c, s, MethodBlockchain, blockchainParams{MinHeight: lo, MaxHeight: hi})
}

func (c *Client) Commit(ctx context.Context, s Scope, height string) (*coretypes.ResultCommit, error) {
	h, err := parseHeight("height", height)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultCommit](ctx, c, s, MethodCommit, heightParams{Height: h})
}

func (c *Client) ConsensusParams(ctx context.Context, s Scope, height string) (*coretypes.ResultConsensusParams, error) {
	h, err := parseHeight("height", height)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultConsensusParams](ctx, c, s, MethodConsensusParams, heightParams{Height: h})
}

func (c *Client) Header(ctx context.Context, s Scope, height string) (*coretypes.ResultHeader, error) {
	h, err := parseHeight("height", height)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultHeader](ctx, c, s, MethodHeader, heightParams{Height: h})
}

func (c *Client) HeaderByHash(ctx context.Context, s Scope, hash string) (*coretypes.ResultHeader, error) {
	b, err := decodeHash(hash)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultHeader](ctx, c, s, MethodHeaderByHash, hexHashParams{Hash: b})
}

func (c *Client) NumUnconfirmedTxs(ctx context.Context, s Scope) (*coretypes.ResultUnconfirmedTxs, error) {
	return query[coretypes.ResultUnconfirmedTxs](ctx, c, s, MethodNumUnconfirmedTxs, nil)
}

// Tx looks a transaction up by its hex hash.
func (c *Client) Tx(ctx context.Context, s Scope, hash string, prove bool) (*coretypes.ResultTx, error) {
	b, err := decodeHash(hash)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultTx](ctx, c, s, MethodTx, txParams{Hash: b, Prove: prove})
}

// ABCIQuery queries the application. data is hex encoded.
func (c *Client) ABCIQuery(ctx context.Context, s Scope, path, data, height string, prove bool) (*coretypes.ResultABCIQuery, error) {
	var b []byte
	if data != "" {
		var err error
		if b, err = decodeHash(data); err != nil {
			return nil, err
		}
	}
	h, err := parseHeight("height", height)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultABCIQuery](ctx, c, s, MethodABCIQuery, abciQueryParams{Path: path, Data: b, Height: h, Prove: prove})
}

// CheckTx runs a base64 encoded transaction through the mempool checks
// without broadcasting it.
func (c *Client) CheckTx(ctx context.Context, s Scope, tx string) (*coretypes.ResultCheckTx, error) {
	b, err := decodeTx(tx)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultCheckTx](ctx, c, s, MethodCheckTx, rawTxParams{Tx: b})
}

// BroadcastTxAsync submits a base64 encoded transaction without waiting
// for the mempool checks.
func (c *Client) BroadcastTxAsync(ctx context.Context, s Scope, tx string) (*coretypes.ResultBroadcastTx, error) {
	b, err := decodeTx(tx)
	if err != nil {
		return nil, err
	}
	return submit[coretypes.ResultBroadcastTx](ctx, c, s, MethodBroadcastTxAsync, rawTxParams{Tx: b})
}

// BroadcastTxSync submits a base64 encoded transaction and waits for the
// mempool checks.
func (c *Client) BroadcastTxSync(ctx context.Context, s Scope, tx string) (*coretypes.ResultBroadcastTx, error) {
	b, err := decodeTx(tx)
	if err != nil {
		return nil, err
	}
	return submit[coretypes.ResultBroadcastTx](ctx, c, s, MethodBroadcastTxSync, rawTxParams{Tx: b})
}

func (c *Client) Validators(ctx context.Context, s Scope, height, page, perPage string) (*coretypes.ResultValidators, error) {
	h, err := parseHeight("height", height)
	if err != nil {
		return nil, err
	}
	pg, err := parseCount("page", page)
	if err != nil {
		return nil, err
	}
	pp, err := parseCount("per_page", perPage)
	if err != nil {
		return nil, err
	}
	return query[coretypes.ResultValidators](ctx, c, s, MethodValidators, validatorsParams{Height: h, Page: pg, PerPage: pp})
}

func decodeTx(tx string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(tx)
	if err != nil {
		return nil, &gateway.ParseError{Message: fmt.Sprintf("invalid base64 transaction: %v", err)}
	}
	if len(b) == 0 {
		return nil, &gateway.ValidationError{Err: errors.New("transaction is empty")}
	}
	return b, nil
}
