package provider

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTarget = errors.New("invalid target")
	ErrEmptyTarget   = errors.New("target resolved to no providers")
)

// Cluster names a network class served by the built-in providers.
type Cluster string

const (
	Mainnet  Cluster = "mainnet"
	Testnet  Cluster = "testnet"
	Devnet   Cluster = "devnet"
	Localnet Cluster = "localnet"
)

func (c Cluster) isValid() bool {
	switch c {
	case Mainnet, Testnet, Devnet, Localnet:
		return true
	default:
		return false
	}
}

// ParseCluster maps a cluster name onto a Cluster.
func ParseCluster(name string) (Cluster, error) {
	c := Cluster(name)
	if !c.isValid() {
		return "", fmt.Errorf("%w: unknown cluster %q", ErrInvalidTarget, name)
	}
	return c, nil
}

// Endpoint is an ad-hoc provider passed inline with a call.
type Endpoint struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Auth    *Auth             `json:"auth,omitempty"`
}

// Target selects the providers a call fans out to.
// Exactly one of the fields must be set.
type Target struct {
	Cluster   Cluster    `json:"cluster,omitempty"`
	Custom    []Endpoint `json:"custom,omitempty"`
	Providers []ID       `json:"providers,omitempty"`
}

// ClusterTarget is a shorthand for targeting the built-in providers of a cluster.
func ClusterTarget(c Cluster) Target {
	return Target{Cluster: c}
}

// ProvidersTarget is a shorthand for targeting registered providers by id.
func ProvidersTarget(ids ...ID) Target {
	return Target{Providers: ids}
}

// Validate checks that exactly one selector is set.
func (t Target) Validate() error {
	set := 0
	if t.Cluster != "" {
		if !t.Cluster.isValid() {
			return fmt.Errorf("%w: unknown cluster %q", ErrInvalidTarget, t.Cluster)
		}
		set++
	}
	if t.Custom != nil {
		if len(t.Custom) == 0 {
			return fmt.Errorf("%w: custom endpoint list is empty", ErrInvalidTarget)
		}
		set++
	}
	if t.Providers != nil {
		if len(t.Providers) == 0 {
			return fmt.Errorf("%w: provider id list is empty", ErrInvalidTarget)
		}
		set++
	}

	switch set {
	case 0:
		return fmt.Errorf("%w: no target selected", ErrInvalidTarget)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: cluster, custom and providers are mutually exclusive", ErrInvalidTarget)
	}
}

// String returns a short description of the target for logs and events.
func (t Target) String() string {
	switch {
	case t.Cluster != "":
		return "cluster:" + string(t.Cluster)
	case len(t.Custom) > 0:
		return fmt.Sprintf("custom:%d", len(t.Custom))
	case len(t.Providers) > 0:
		return fmt.Sprintf("providers:%v", t.Providers)
	default:
		return "none"
	}
}

func customProviders(endpoints []Endpoint) ([]Provider, error) {
	providers := make([]Provider, 0, len(endpoints))
	for i, e := range endpoints {
		p := Provider{
			ID:      ID(fmt.Sprintf("custom-%d", i)),
			URL:     e.URL,
			Headers: e.Headers,
			Auth:    e.Auth,
			Trust:   TrustCustom,
		}
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: custom endpoint %d: %v", ErrInvalidTarget, i, err)
		}
		providers = append(providers, p.clone())
	}
	return providers, nil
}
