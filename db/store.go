// Package db persists the mutable part of the provider registry so that
// user-registered providers and capability grants survive restarts.
package db

import (
	"context"

	"github.com/poroburu/ic-cosmos/provider"
)

//go:generate mockgen -source=store.go -destination=mock_store.go -package=db

// Store is implemented by each database driver (e.g. postgres).
type Store interface {
	// LoadRegistryState returns the last saved state, or an empty state if
	// nothing was ever saved.
	LoadRegistryState(ctx context.Context) (provider.State, error)
	// SaveRegistryState atomically replaces the saved state.
	SaveRegistryState(ctx context.Context, state provider.State) error
}
