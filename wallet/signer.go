package wallet

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"

	"github.com/poroburu/ic-cosmos/provider"
)

// ErrKeyUnavailable is returned when no key can be derived for a user.
var ErrKeyUnavailable = errors.New("signing key unavailable")

// Signer derives per-user secp256k1 keys and signs with them without ever
// exposing the private key. Production deployments back it with a
// threshold signing service.
type Signer interface {
	// PublicKey returns the 33-byte compressed public key of user.
	PublicKey(ctx context.Context, user provider.Principal) ([]byte, error)
	// Sign returns the 64-byte r||s signature of sha256(message).
	Sign(ctx context.Context, user provider.Principal, message []byte) ([]byte, error)
}

// LocalSigner derives user keys from a single seed held in memory.
// Development only.
type LocalSigner struct {
	seed []byte
}

var _ Signer = (*LocalSigner)(nil)

func NewLocalSigner(seed []byte) *LocalSigner {
	return &LocalSigner{seed: append([]byte(nil), seed...)}
}

func (s *LocalSigner) PublicKey(_ context.Context, user provider.Principal) ([]byte, error) {
	key, err := s.key(user)
	if err != nil {
		return nil, err
	}
	return key.PubKey().Bytes(), nil
}

func (s *LocalSigner) Sign(_ context.Context, user provider.Principal, message []byte) ([]byte, error) {
	key, err := s.key(user)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return sig, nil
}

// key derives the private key of user as HMAC-SHA256(seed, user).
func (s *LocalSigner) key(user provider.Principal) (*secp256k1.PrivKey, error) {
	if len(s.seed) == 0 {
		return nil, fmt.Errorf("%w: no signing seed configured", ErrKeyUnavailable)
	}
	mac := hmac.New(sha256.New, s.seed)
	mac.Write([]byte(user))
	return secp256k1.GenPrivKeyFromSecret(mac.Sum(nil)), nil
}
