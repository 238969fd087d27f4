package provider

import (
	"fmt"
	"maps"
	"slices"
)

// Grant is a single capability held by a principal.
type Grant struct {
	Principal  Principal  `json:"principal"`
	Capability Capability `json:"capability"`
}

// State is the persistent part of the registry: user-registered providers
// in registration order and the explicit capability grants.
type State struct {
	Providers []Provider `json:"providers"`
	Grants    []Grant    `json:"grants"`
}

// Snapshot returns a copy of the persistent state.
func (r *Registry) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() State {
	var s State
	for _, id := range r.order {
		p := r.providers[id]
		if p.Trust != TrustUserRegistered {
			continue
		}
		s.Providers = append(s.Providers, p.clone())
	}

	for _, p := range slices.Sorted(maps.Keys(r.grants)) {
		for _, c := range slices.Sorted(maps.Keys(r.grants[p])) {
			s.Grants = append(s.Grants, Grant{Principal: p, Capability: c})
		}
	}
	return s
}

// Restore replaces user-registered providers and grants with the given state.
// Built-in providers and controllers are kept. Observers are not notified.
func (r *Registry) Restore(s State) error {
	next := make(grants)
	for _, g := range s.Grants {
		if _, err := ParseCapability(string(g.Capability)); err != nil {
			return err
		}
		next.add(g.Principal, g.Capability)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	providers := make(map[ID]Provider, len(r.providers)+len(s.Providers))
	var order []ID
	for _, id := range r.order {
		if p := r.providers[id]; p.Trust == TrustBuiltIn {
			providers[id] = p
			order = append(order, id)
		}
	}

	for _, p := range s.Providers {
		if err := p.validate(); err != nil {
			return fmt.Errorf("restoring provider %s: %w", p.ID, err)
		}
		if _, ok := providers[p.ID]; ok {
			return fmt.Errorf("restoring provider %s: %w", p.ID, ErrAlreadyExists)
		}
		p = p.clone()
		p.Trust = TrustUserRegistered
		providers[p.ID] = p
		order = append(order, p.ID)
	}

	r.providers = providers
	r.order = order
	r.grants = next

	r.logger.Info().
		Int("providers", len(s.Providers)).
		Int("grants", len(s.Grants)).
		Msg("Restored registry state.")
	return nil
}
