package provider

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrLastManager       = errors.New("cannot remove the last holder of the manage capability")
	ErrUnknownCapability = errors.New("unknown capability")
)

// Principal identifies a caller.
type Principal string

// Anonymous is the principal of unauthenticated callers.
const Anonymous Principal = "anonymous"

// Capability is a named permission held by a principal.
type Capability string

const (
	CapabilityRegisterProvider Capability = "register_provider"
	CapabilityManage           Capability = "manage"
)

// ParseCapability maps a capability name onto a Capability.
func ParseCapability(name string) (Capability, error) {
	switch c := Capability(name); c {
	case CapabilityRegisterProvider, CapabilityManage:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, name)
	}
}

// grants is a set of capabilities per principal.
type grants map[Principal]map[Capability]struct{}

func (g grants) has(p Principal, c Capability) bool {
	_, ok := g[p][c]
	return ok
}

func (g grants) add(p Principal, c Capability) bool {
	if g.has(p, c) {
		return false
	}
	if g[p] == nil {
		g[p] = make(map[Capability]struct{})
	}
	g[p][c] = struct{}{}
	return true
}

func (g grants) remove(p Principal, c Capability) bool {
	if !g.has(p, c) {
		return false
	}
	delete(g[p], c)
	if len(g[p]) == 0 {
		delete(g, p)
	}
	return true
}

func (g grants) holders(c Capability) []Principal {
	var out []Principal
	for p, caps := range g {
		if _, ok := caps[c]; ok {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// Authorize grants capability c to principal p. The caller must hold the
// manage capability. Granting an already held capability is a no-op and
// reports false.
func (r *Registry) Authorize(caller, p Principal, c Capability) (bool, error) {
	if _, err := ParseCapability(string(c)); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(caller, CapabilityManage); err != nil {
		return false, err
	}
	if p == "" || p == Anonymous {
		return false, fmt.Errorf("%w: cannot grant capabilities to the anonymous principal", ErrUnauthorized)
	}

	changed := r.grants.add(p, c)
	if changed {
		r.logger.Info().
			Str("caller", string(caller)).
			Str("principal", string(p)).
			Str("capability", string(c)).
			Msg("Granted capability.")
		r.notifyLocked()
	}
	return changed, nil
}

// Deauthorize revokes capability c from principal p. The caller must hold
// the manage capability. Controllers keep their implicit capabilities.
// Removing the last explicit manage grant fails when no controller exists,
// since the registry would otherwise become unmanageable.
func (r *Registry) Deauthorize(caller, p Principal, c Capability) (bool, error) {
	if _, err := ParseCapability(string(c)); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(caller, CapabilityManage); err != nil {
		return false, err
	}

	if !r.grants.has(p, c) {
		return false, nil
	}
	if c == CapabilityManage && len(r.controllers) == 0 && len(r.grants.holders(CapabilityManage)) == 1 {
		return false, ErrLastManager
	}

	r.grants.remove(p, c)
	r.logger.Info().
		Str("caller", string(caller)).
		Str("principal", string(p)).
		Str("capability", string(c)).
		Msg("Revoked capability.")
	r.notifyLocked()
	return true, nil
}

// Authorized lists the principals explicitly granted capability c, sorted.
// Controllers are not listed.
func (r *Registry) Authorized(c Capability) []Principal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grants.holders(c)
}

// Check returns ErrUnauthorized unless caller holds capability c.
func (r *Registry) Check(caller Principal, c Capability) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkLocked(caller, c)
}

// checkLocked is the single capability gate of the registry.
// Controllers implicitly hold every capability.
func (r *Registry) checkLocked(caller Principal, c Capability) error {
	if caller == "" || caller == Anonymous {
		return fmt.Errorf("%w: anonymous caller lacks %s", ErrUnauthorized, c)
	}
	if _, ok := r.controllers[caller]; ok {
		return nil
	}
	if r.grants.has(caller, c) {
		return nil
	}
	return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, caller, c)
}
