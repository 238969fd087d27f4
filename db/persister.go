package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/provider"
)

const (
	defaultSaveTimeout = 10 * time.Second

	componentNamePersister = "registry_persister"
)

// Persister saves registry snapshots to a Store in the background.
//
// Snapshots are coalesced: when several mutations happen while a save is in
// flight only the latest snapshot is written.
type Persister struct {
	logger      polylog.Logger
	store       Store
	saveTimeout time.Duration

	pending chan provider.State

	mu      sync.RWMutex
	lastErr error
	loaded  bool
}

func NewPersister(logger polylog.Logger, store Store) *Persister {
	return &Persister{
		logger:      logger.With("component", componentNamePersister),
		store:       store,
		saveTimeout: defaultSaveTimeout,
		pending:     make(chan provider.State, 1),
	}
}

// Attach restores the registry from the store and subscribes to its
// mutations. It must be called before the registry serves traffic.
func (p *Persister) Attach(ctx context.Context, registry *provider.Registry) error {
	state, err := p.store.LoadRegistryState(ctx)
	if err != nil {
		p.setErr(err)
		return fmt.Errorf("failed to load registry state: %w", err)
	}
	if err := registry.Restore(state); err != nil {
		p.setErr(err)
		return fmt.Errorf("failed to restore registry state: %w", err)
	}

	registry.Observe(p.Enqueue)

	p.mu.Lock()
	p.loaded = true
	p.mu.Unlock()
	return nil
}

// Enqueue schedules state to be saved, replacing any snapshot not yet written.
// It never blocks.
func (p *Persister) Enqueue(state provider.State) {
	for {
		select {
		case p.pending <- state:
			return
		default:
		}
		// Drop the stale snapshot and retry.
		select {
		case <-p.pending:
		default:
		}
	}
}

// Run writes enqueued snapshots until ctx is cancelled, then flushes the
// last pending one.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case state := <-p.pending:
			p.save(ctx, state)
		case <-ctx.Done():
			select {
			case state := <-p.pending:
				p.save(context.WithoutCancel(ctx), state)
			default:
			}
			return nil
		}
	}
}

func (p *Persister) save(ctx context.Context, state provider.State) {
	ctx, cancel := context.WithTimeout(ctx, p.saveTimeout)
	defer cancel()

	err := p.store.SaveRegistryState(ctx, state)
	p.setErr(err)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to save registry state")
		return
	}

	p.logger.Debug().
		Int("providers", len(state.Providers)).
		Int("grants", len(state.Grants)).
		Msg("Saved registry state.")
}

func (p *Persister) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

// Name and IsAlive satisfy health.Check.
func (p *Persister) Name() string {
	return componentNamePersister
}

// IsAlive reports whether state was loaded and the last save succeeded.
func (p *Persister) IsAlive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded && p.lastErr == nil
}
