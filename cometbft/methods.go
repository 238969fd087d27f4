package cometbft

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/poroburu/ic-cosmos/gateway"
)

const (
	MethodHealth             = "health"
	MethodStatus             = "status"
	MethodABCIInfo           = "abci_info"
	MethodConsensusState     = "consensus_state"
	MethodDumpConsensusState = "dump_consensus_state"
	MethodNetInfo            = "net_info"
	MethodBlock              = "block"
	MethodBlockByHash        = "block_by_hash"
	MethodBlockResults       = "block_results"
	MethodBlockchain         = "blockchain"
	MethodCommit             = "commit"
	MethodConsensusParams    = "consensus_params"
	MethodHeader             = "header"
	MethodHeaderByHash       = "header_by_hash"
	MethodNumUnconfirmedTxs  = "num_unconfirmed_txs"
	MethodTx                 = "tx"
	MethodABCIQuery          = "abci_query"
	MethodCheckTx            = "check_tx"
	MethodBroadcastTxAsync   = "broadcast_tx_async"
	MethodBroadcastTxSync    = "broadcast_tx_sync"
	MethodValidators         = "validators"
)

// Args holds the arguments of every typed method, as sent by callers of
// the HTTP surface. Each method reads the fields it needs.
type Args struct {
	Height    string `json:"height,omitempty"`
	Hash      string `json:"hash,omitempty"`
	MinHeight string `json:"min_height,omitempty"`
	MaxHeight string `json:"max_height,omitempty"`
	Prove     bool   `json:"prove,omitempty"`
	Path      string `json:"path,omitempty"`
	Data      string `json:"data,omitempty"`
	Tx        string `json:"tx,omitempty"`
	Page      string `json:"page,omitempty"`
	PerPage   string `json:"per_page,omitempty"`
}

type handler func(ctx context.Context, c *Client, s Scope, a Args) (any, error)

// handlers maps every typed method onto its client operation.
var handlers = map[string]handler{
	MethodHealth: func(ctx context.Context, c *Client, s Scope, _ Args) (any, error) {
		return c.Health(ctx, s)
	},
	MethodStatus: func(ctx context.Context, c *Client, s Scope, _ Args) (any, error) {
		return c.Status(ctx, s)
	},
	MethodABCIInfo: func(ctx context.Context, c *Client, s Scope, _ Args) (any, error) {
		return c.ABCIInfo(ctx, s)
	},
	MethodConsensusState: func(ctx context.Context, c *Client, s Scope, _ Args) (any, error) {
		return c.ConsensusState(ctx, s)
	},
	MethodDumpConsensusState: func(ctx context.Context, c *Client, s Scope, _ Args) (any, error) {
		return c.DumpConsensusState(ctx, s)
	},
	MethodNetInfo: func(ctx context.Context, c *Client, s Scope, _ Args) (any, error) {
		return c.NetInfo(ctx, s)
	},
	MethodBlock: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.Block(ctx, s, a.Height)
	},
	MethodBlockByHash: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.BlockByHash(ctx, s, a.Hash)
	},
	MethodBlockResults: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.BlockResults(ctx, s, a.Height)
	},
	MethodBlockchain: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.Blockchain(ctx, s, a.MinHeight, a.MaxHeight)
	},
	MethodCommit: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.Commit(ctx, s, a.Height)
	},
	MethodConsensusParams: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.ConsensusParams(ctx, s, a.Height)
	},
	MethodHeader: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.Header(ctx, s, a.Height)
	},
	MethodHeaderByHash: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.HeaderByHash(ctx, s, a.Hash)
	},
	MethodNumUnconfirmedTxs: func(ctx context.Context, c *Client, s Scope, _ Args) (any, error) {
		return c.NumUnconfirmedTxs(ctx, s)
	},
	MethodTx: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.Tx(ctx, s, a.Hash, a.Prove)
	},
	MethodABCIQuery: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.ABCIQuery(ctx, s, a.Path, a.Data, a.Height, a.Prove)
	},
	MethodCheckTx: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.CheckTx(ctx, s, a.Tx)
	},
	MethodBroadcastTxAsync: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.BroadcastTxAsync(ctx, s, a.Tx)
	},
	MethodBroadcastTxSync: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.BroadcastTxSync(ctx, s, a.Tx)
	},
	MethodValidators: func(ctx context.Context, c *Client, s Scope, a Args) (any, error) {
		return c.Validators(ctx, s, a.Height, a.Page, a.PerPage)
	},
}

// Methods lists the typed methods, sorted.
func Methods() []string {
	methods := make([]string, 0, len(handlers))
	for m := range handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// IsTyped reports whether method has a typed operation.
func IsTyped(method string) bool {
	_, ok := handlers[method]
	return ok
}

// Call runs the typed operation of method with JSON encoded args.
func (c *Client) Call(ctx context.Context, s Scope, method string, args json.RawMessage) (any, error) {
	h, ok := handlers[method]
	if !ok {
		return nil, &gateway.ValidationError{Err: fmt.Errorf("unknown method %q", method)}
	}

	var a Args
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, &gateway.ParseError{Message: fmt.Sprintf("invalid %s arguments: %v", method, err)}
		}
	}
	return h(ctx, c, s, a)
}
