// Package accounting tracks caller balances charged for outbound calls.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/provider"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger charges callers before dispatch and refunds unused capacity after.
// Charge must be atomic: it either debits the full amount or nothing.
type Ledger interface {
	Charge(ctx context.Context, p provider.Principal, amount uint64) error
	Refund(ctx context.Context, p provider.Principal, amount uint64)
}

// Balances is an in-memory Ledger. Principals seen for the first time are
// credited with the default balance.
type Balances struct {
	logger polylog.Logger

	mu             sync.Mutex
	balances       map[provider.Principal]uint64
	defaultBalance uint64
}

var _ Ledger = (*Balances)(nil)

func NewBalances(logger polylog.Logger, defaultBalance uint64, initial map[provider.Principal]uint64) *Balances {
	balances := make(map[provider.Principal]uint64, len(initial))
	for p, b := range initial {
		balances[p] = b
	}
	return &Balances{
		logger:         logger.With("component", "balances"),
		balances:       balances,
		defaultBalance: defaultBalance,
	}
}

func (b *Balances) Charge(_ context.Context, p provider.Principal, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	balance := b.balanceLocked(p)
	if balance < amount {
		return fmt.Errorf("%w: %s has %d cycles, call costs %d", ErrInsufficientBalance, p, balance, amount)
	}
	b.balances[p] = balance - amount

	b.logger.Debug().
		Str("principal", string(p)).
		Uint64("charged", amount).
		Uint64("balance", b.balances[p]).
		Msg("Charged caller.")
	return nil
}

func (b *Balances) Refund(_ context.Context, p provider.Principal, amount uint64) {
	if amount == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.balances[p] = b.balanceLocked(p) + amount

	b.logger.Debug().
		Str("principal", string(p)).
		Uint64("refunded", amount).
		Uint64("balance", b.balances[p]).
		Msg("Refunded caller.")
}

// Deposit credits amount to a principal.
func (b *Balances) Deposit(p provider.Principal, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[p] = b.balanceLocked(p) + amount
}

// Balance returns the current balance of a principal.
func (b *Balances) Balance(p provider.Principal) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceLocked(p)
}

func (b *Balances) balanceLocked(p provider.Principal) uint64 {
	balance, ok := b.balances[p]
	if !ok {
		return b.defaultBalance
	}
	return balance
}

// Unmetered accepts every charge. Used in demo mode.
type Unmetered struct{}

var _ Ledger = Unmetered{}

func (Unmetered) Charge(context.Context, provider.Principal, uint64) error { return nil }
func (Unmetered) Refund(context.Context, provider.Principal, uint64)       {}
