package gateway

import (
	"errors"

	"github.com/poroburu/ic-cosmos/provider"
)

// The registry operations below count capability rejections in the
// err_no_permission metric and otherwise delegate to the registry.

func (g *Gateway) RegisterProvider(caller provider.Principal, args provider.RegisterArgs) error {
	return g.observePermission(g.Registry.Register(caller, args))
}

func (g *Gateway) UpdateProvider(caller provider.Principal, args provider.UpdateArgs) error {
	return g.observePermission(g.Registry.Update(caller, args))
}

// UnregisterProvider fails with provider.ErrNotFound when no provider with id
// exists.
func (g *Gateway) UnregisterProvider(caller provider.Principal, id provider.ID) (bool, error) {
	removed, err := g.Registry.Unregister(caller, id)
	return removed, g.observePermission(err)
}

// GetProviders lists every provider, built-in ones first.
func (g *Gateway) GetProviders() []provider.Provider {
	return g.Registry.Providers()
}

func (g *Gateway) Authorize(caller, principal provider.Principal, c provider.Capability) (bool, error) {
	changed, err := g.Registry.Authorize(caller, principal, c)
	return changed, g.observePermission(err)
}

func (g *Gateway) Deauthorize(caller, principal provider.Principal, c provider.Capability) (bool, error) {
	changed, err := g.Registry.Deauthorize(caller, principal, c)
	return changed, g.observePermission(err)
}

func (g *Gateway) GetAuthorized(c provider.Capability) []provider.Principal {
	return g.Registry.Authorized(c)
}

func (g *Gateway) observePermission(err error) error {
	if errors.Is(err, provider.ErrUnauthorized) {
		g.Metrics.ObserveNoPermission()
	}
	return err
}
