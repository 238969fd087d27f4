package provider

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/pokt-network/poktroll/pkg/polylog"
)

// Registry is the authoritative store of providers and capability grants.
//
// Built-in providers are fixed at construction. User-registered providers
// are kept in registration order and replaced as whole records on update,
// so concurrent readers always observe either the old or the new record.
type Registry struct {
	logger polylog.Logger

	mu          sync.RWMutex
	builtIn     map[Cluster][]ID
	providers   map[ID]Provider
	order       []ID
	grants      grants
	controllers map[Principal]struct{}
	observers   []func(State)
}

// RegisterArgs describes a provider to add to the registry.
type RegisterArgs struct {
	ID      ID                `json:"id"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Auth    *Auth             `json:"auth,omitempty"`
}

// UpdateArgs describes a partial update of a registered provider.
// Nil fields are left unchanged.
type UpdateArgs struct {
	ID      ID                 `json:"id"`
	URL     *string            `json:"url,omitempty"`
	Headers *map[string]string `json:"headers,omitempty"`
	Auth    *Auth              `json:"auth,omitempty"`
}

// NewRegistry builds a registry seeded with the built-in providers of each
// cluster. Controllers implicitly hold every capability and cannot be
// deauthorized.
func NewRegistry(logger polylog.Logger, builtIn map[Cluster][]Provider, controllers []Principal) (*Registry, error) {
	r := &Registry{
		logger:      logger.With("component", "provider_registry"),
		builtIn:     make(map[Cluster][]ID),
		providers:   make(map[ID]Provider),
		grants:      make(grants),
		controllers: make(map[Principal]struct{}),
	}

	clusters := slices.Sorted(maps.Keys(builtIn))
	for _, c := range clusters {
		if !c.isValid() {
			return nil, fmt.Errorf("%w: unknown cluster %q", ErrInvalidTarget, c)
		}
		for _, p := range builtIn[c] {
			if err := p.validate(); err != nil {
				return nil, fmt.Errorf("built-in provider of cluster %s: %w", c, err)
			}
			if _, ok := r.providers[p.ID]; ok {
				return nil, fmt.Errorf("built-in provider %s: %w", p.ID, ErrAlreadyExists)
			}
			p = p.clone()
			p.Trust = TrustBuiltIn
			p.Owner = ""
			r.providers[p.ID] = p
			r.order = append(r.order, p.ID)
			r.builtIn[c] = append(r.builtIn[c], p.ID)
		}
	}

	for _, c := range controllers {
		if c == "" || c == Anonymous {
			continue
		}
		r.controllers[c] = struct{}{}
	}

	return r, nil
}

// Observe registers fn to be called with a snapshot of the persistent state
// after every successful mutation. fn runs while the registry lock is held
// and must not call back into the registry.
func (r *Registry) Observe(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Register adds a user provider owned by caller.
func (r *Registry) Register(caller Principal, args RegisterArgs) error {
	p := Provider{
		ID:      args.ID,
		URL:     args.URL,
		Headers: args.Headers,
		Auth:    args.Auth,
		Trust:   TrustUserRegistered,
		Owner:   caller,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(caller, CapabilityRegisterProvider); err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}
	if _, ok := r.providers[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, p.ID)
	}

	r.providers[p.ID] = p.clone()
	r.order = append(r.order, p.ID)

	r.logger.Info().
		Str("provider_id", string(p.ID)).
		Str("owner", string(caller)).
		Str("host", p.Host()).
		Msg("Registered provider.")
	r.notifyLocked()
	return nil
}

// Update replaces the fields set in args. Only the owner of the provider or
// a holder of the manage capability may update it.
func (r *Registry) Update(caller Principal, args UpdateArgs) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.mutableLocked(caller, args.ID)
	if err != nil {
		return err
	}

	next := current.clone()
	if args.URL != nil {
		next.URL = *args.URL
	}
	if args.Headers != nil {
		next.Headers = maps.Clone(*args.Headers)
	}
	if args.Auth != nil {
		auth := *args.Auth
		next.Auth = &auth
	}
	if err := next.validate(); err != nil {
		return err
	}

	r.providers[next.ID] = next

	r.logger.Info().
		Str("provider_id", string(next.ID)).
		Str("caller", string(caller)).
		Msg("Updated provider.")
	r.notifyLocked()
	return nil
}

// Unregister removes a user provider. Removing an unknown id fails with
// ErrNotFound once the caller is known to hold RegisterProvider.
func (r *Registry) Unregister(caller Principal, id ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.mutableLocked(caller, id); err != nil {
		return false, err
	}

	delete(r.providers, id)
	r.order = slices.DeleteFunc(r.order, func(o ID) bool { return o == id })

	r.logger.Info().
		Str("provider_id", string(id)).
		Str("caller", string(caller)).
		Msg("Unregistered provider.")
	r.notifyLocked()
	return true, nil
}

// mutableLocked returns the provider with the given id if caller may modify it.
func (r *Registry) mutableLocked(caller Principal, id ID) (Provider, error) {
	if err := r.checkLocked(caller, CapabilityRegisterProvider); err != nil {
		return Provider{}, err
	}

	p, ok := r.providers[id]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.Trust == TrustBuiltIn {
		return Provider{}, fmt.Errorf("%w: %s", ErrImmutable, id)
	}
	if p.Owner != caller && r.checkLocked(caller, CapabilityManage) != nil {
		return Provider{}, fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, caller, id)
	}
	return p, nil
}

// Clusters returns the clusters that have built-in providers, sorted.
func (r *Registry) Clusters() []Cluster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.builtIn))
}

// Get returns a copy of the provider with the given id.
func (r *Registry) Get(id ID) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return Provider{}, false
	}
	return p.clone(), true
}

// Providers returns copies of all providers in registration order,
// built-in providers first.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id].clone())
	}
	return out
}

// Resolve turns a target into its ordered set of providers. Named lookups
// follow registration order and cluster lookups return the built-in
// providers of the cluster. Custom endpoints keep the caller supplied order.
// Resolution never yields an empty set.
func (r *Registry) Resolve(t Target) ([]Provider, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if len(t.Custom) > 0 {
		return customProviders(t.Custom)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Provider
	switch {
	case t.Cluster != "":
		for _, id := range r.builtIn[t.Cluster] {
			out = append(out, r.providers[id].clone())
		}
	default:
		wanted := make(map[ID]struct{}, len(t.Providers))
		for _, id := range t.Providers {
			if _, ok := r.providers[id]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			wanted[id] = struct{}{}
		}
		for _, id := range r.order {
			if _, ok := wanted[id]; ok {
				out = append(out, r.providers[id].clone())
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTarget, t)
	}
	return out, nil
}

func (r *Registry) notifyLocked() {
	if len(r.observers) == 0 {
		return
	}
	state := r.snapshotLocked()
	for _, fn := range r.observers {
		fn(state)
	}
}
