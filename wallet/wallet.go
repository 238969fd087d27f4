// Package wallet orchestrates per-user Cosmos keys held by a Signer:
// address derivation, message signing and transaction submission through
// the gateway.
package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	cmtcrypto "github.com/cometbft/cometbft/crypto"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/cometbft"
	"github.com/poroburu/ic-cosmos/gateway"
	"github.com/poroburu/ic-cosmos/provider"
)

// DefaultBech32Prefix is the Cosmos Hub account prefix.
const DefaultBech32Prefix = "cosmos"

var (
	ErrAnonymousCaller = errors.New("anonymous callers have no wallet")
	ErrInvalidPubKey   = errors.New("signer returned an invalid public key")
)

// TxRejectedError is a transaction that the mempool checks refused.
type TxRejectedError struct {
	Hash      string `json:"hash"`
	Code      uint32 `json:"code"`
	Codespace string `json:"codespace,omitempty"`
	Log       string `json:"log,omitempty"`
}

func (e *TxRejectedError) Error() string {
	return fmt.Sprintf("transaction %s rejected with code %d (%s): %s", e.Hash, e.Code, e.Codespace, e.Log)
}

// Broadcaster submits signed transactions.
type Broadcaster interface {
	BroadcastTxSync(ctx context.Context, s cometbft.Scope, tx string) (*coretypes.ResultBroadcastTx, error)
}

type Wallet struct {
	logger      polylog.Logger
	signer      Signer
	broadcaster Broadcaster
	prefix      string
}

func NewWallet(logger polylog.Logger, signer Signer, broadcaster Broadcaster, bech32Prefix string) *Wallet {
	if bech32Prefix == "" {
		bech32Prefix = DefaultBech32Prefix
	}
	return &Wallet{
		logger:      logger.With("component", "wallet"),
		signer:      signer,
		broadcaster: broadcaster,
		prefix:      bech32Prefix,
	}
}

// Address returns the caller's compressed secp256k1 public key, hex encoded.
func (w *Wallet) Address(ctx context.Context, caller provider.Principal) (string, error) {
	pub, err := w.publicKey(ctx, caller)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pub.Bytes()), nil
}

// CosmosAddress returns the caller's bech32 account address.
func (w *Wallet) CosmosAddress(ctx context.Context, caller provider.Principal) (string, error) {
	pub, err := w.publicKey(ctx, caller)
	if err != nil {
		return "", err
	}
	return w.bech32Address(pub.Address())
}

func (w *Wallet) SignMessage(ctx context.Context, caller provider.Principal, message []byte) ([]byte, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	sig, err := w.signer.Sign(ctx, caller, message)
	if err != nil {
		return nil, err
	}

	w.logger.Debug().
		Str("caller", string(caller)).
		Int("message_bytes", len(message)).
		Msg("Signed message.")
	return sig, nil
}

// SendTransaction broadcasts a signed, base64 encoded transaction with
// broadcast_tx_sync and returns its hash once every provider agrees it
// passed the mempool checks.
func (w *Wallet) SendTransaction(
	ctx context.Context,
	caller provider.Principal,
	target provider.Target,
	config gateway.RpcConfig,
	signedTx string,
) (string, error) {
	if err := checkCaller(caller); err != nil {
		return "", err
	}

	res, err := w.broadcaster.BroadcastTxSync(ctx, cometbft.Scope{Caller: caller, Target: target, Config: config}, signedTx)
	if err != nil {
		return "", err
	}

	hash := strings.ToUpper(hex.EncodeToString(res.Hash))
	if res.Code != 0 {
		w.logger.Info().
			Str("caller", string(caller)).
			Str("tx_hash", hash).
			Uint64("code", uint64(res.Code)).
			Msg("Transaction rejected.")
		return "", &TxRejectedError{Hash: hash, Code: res.Code, Codespace: res.Codespace, Log: res.Log}
	}

	w.logger.Info().
		Str("caller", string(caller)).
		Str("tx_hash", hash).
		Str("target", target.String()).
		Msg("Transaction submitted.")
	return hash, nil
}

func (w *Wallet) publicKey(ctx context.Context, caller provider.Principal) (*secp256k1.PubKey, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	raw, err := w.signer.PublicKey(ctx, caller)
	if err != nil {
		return nil, err
	}
	if len(raw) != secp256k1.PubKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPubKey, secp256k1.PubKeySize, len(raw))
	}
	if raw[0] != 0x02 && raw[0] != 0x03 {
		return nil, fmt.Errorf("%w: not a compressed key", ErrInvalidPubKey)
	}
	return &secp256k1.PubKey{Key: raw}, nil
}

func (w *Wallet) bech32Address(addr cmtcrypto.Address) (string, error) {
	encoded, err := bech32.ConvertAndEncode(w.prefix, addr)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return encoded, nil
}

func checkCaller(caller provider.Principal) error {
	if caller == "" || caller == provider.Anonymous {
		return ErrAnonymousCaller
	}
	return nil
}
