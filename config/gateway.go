package config

import (
	"fmt"
	"time"

	"github.com/poroburu/ic-cosmos/config/utils"
	"github.com/poroburu/ic-cosmos/cost"
	"github.com/poroburu/ic-cosmos/dispatch"
	"github.com/poroburu/ic-cosmos/provider"
)

/* --------------------------------- Metrics Config -------------------------------- */

const (
	defaultPrometheusAddr = ":9090"
	defaultPprofAddr      = ":6060"
)

// MetricsConfig sets the listen addresses of the Prometheus and pprof servers.
type MetricsConfig struct {
	PrometheusAddr string `yaml:"prometheus_addr"`
	PprofAddr      string `yaml:"pprof_addr"`
}

func (c *MetricsConfig) hydrateMetricsDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = defaultPrometheusAddr
	}
	if c.PprofAddr == "" {
		c.PprofAddr = defaultPprofAddr
	}
}

func (c MetricsConfig) validate() error {
	if !utils.IsValidHostPort(c.PrometheusAddr) {
		return fmt.Errorf("invalid prometheus address %q", c.PrometheusAddr)
	}
	if !utils.IsValidHostPort(c.PprofAddr) {
		return fmt.Errorf("invalid pprof address %q", c.PprofAddr)
	}
	return nil
}

/* --------------------------------- Dispatch Config -------------------------------- */

// DispatchConfig tunes outbound provider calls.
type DispatchConfig struct {
	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// UseCompression requests gzip encoded provider responses.
	UseCompression bool `yaml:"use_compression"`
	// AllowedHosts restricts provider hostnames. Empty allows every host.
	AllowedHosts []string `yaml:"allowed_hosts"`
}

func (c *DispatchConfig) hydrateDispatchDefaults() {
	if c.CallTimeout == 0 {
		c.CallTimeout = dispatch.DefaultCallTimeout
	}
}

func (c DispatchConfig) validate() error {
	if c.CallTimeout < 0 {
		return fmt.Errorf("invalid call timeout %v", c.CallTimeout)
	}
	for _, host := range c.AllowedHosts {
		if !utils.IsValidHostname(host) {
			return fmt.Errorf("invalid allowed host %q", host)
		}
	}
	return nil
}

/* --------------------------------- Cost Config -------------------------------- */

// CostConfig parameterizes outcall pricing.
type CostConfig struct {
	NodesInSubnet uint64 `yaml:"nodes_in_subnet"`
	// Demo prices every call at zero.
	Demo bool `yaml:"demo"`
}

func (c *CostConfig) hydrateCostDefaults() {
	if c.NodesInSubnet == 0 {
		c.NodesInSubnet = cost.DefaultNodesInSubnet
	}
}

/* --------------------------------- Accounting Config -------------------------------- */

// AccountingConfig seeds the per-principal cycle balances.
type AccountingConfig struct {
	// Unmetered disables balance checks altogether.
	Unmetered bool `yaml:"unmetered"`
	// DefaultBalance credits principals seen for the first time.
	DefaultBalance uint64 `yaml:"default_balance"`
	// Balances overrides the starting balance of specific principals.
	Balances map[provider.Principal]uint64 `yaml:"balances"`
}

func (c *AccountingConfig) hydrateAccountingDefaults() {
	if c.Balances == nil {
		c.Balances = make(map[provider.Principal]uint64)
	}
}
