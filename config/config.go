package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/poroburu/ic-cosmos/provider"
)

/* ---------------------------------  Gateway Config Struct -------------------------------- */

// GatewayConfig is the top level struct that contains configuration details
// which are parsed from a YAML config file. It contains all the various
// configuration details that are needed to operate a gateway.
type GatewayConfig struct {
	Logger  LoggerConfig  `yaml:"logger_config"`
	Router  RouterConfig  `yaml:"router_config"`
	Metrics MetricsConfig `yaml:"metrics_config"`

	// Providers are the built-in providers of each cluster.
	Providers map[provider.Cluster][]provider.Provider `yaml:"providers"`
	// Controllers implicitly hold every capability of the registry.
	Controllers []provider.Principal `yaml:"controllers"`

	Dispatch   DispatchConfig   `yaml:"dispatch_config"`
	Cost       CostConfig       `yaml:"cost_config"`
	Accounting AccountingConfig `yaml:"accounting_config"`
	Auth       AuthConfig       `yaml:"auth_config"`
	Wallet     WalletConfig     `yaml:"wallet_config"`

	// Postgres is optional: when unset, registry state lives in memory only.
	Postgres *PostgresConfig `yaml:"postgres_config"`
	// NSQ is optional: when unset, disagreements are only logged.
	NSQ *NSQConfig `yaml:"nsq_config"`
}

// LoadGatewayConfigFromYAML reads a YAML configuration file from the specified path
// and unmarshals its content into a GatewayConfig instance.
func LoadGatewayConfigFromYAML(path string) (GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GatewayConfig{}, err
	}

	var config GatewayConfig
	if err = yaml.Unmarshal(data, &config); err != nil {
		return GatewayConfig{}, err
	}

	// hydrate required fields and set defaults for optional fields
	config.hydrateDefaults()

	return config, config.validate()
}

/* --------------------------------- Gateway Config Methods -------------------------------- */

func (c GatewayConfig) GetRouterConfig() RouterConfig {
	return c.Router
}

// PersistenceEnabled returns true if registry state is saved to postgres.
func (c GatewayConfig) PersistenceEnabled() bool {
	return c.Postgres != nil
}

// EventsEnabled returns true if disagreements are published to NSQ.
func (c GatewayConfig) EventsEnabled() bool {
	return c.NSQ != nil
}

/* --------------------------------- Gateway Config Hydration Helpers -------------------------------- */

func (c *GatewayConfig) hydrateDefaults() {
	c.Logger.hydrateLoggerDefaults()
	c.Router.hydrateRouterDefaults()
	c.Metrics.hydrateMetricsDefaults()
	c.Dispatch.hydrateDispatchDefaults()
	c.Cost.hydrateCostDefaults()
	c.Accounting.hydrateAccountingDefaults()
	c.Wallet.hydrateWalletDefaults()
	if c.Postgres != nil {
		c.Postgres.hydratePostgresDefaults()
	}
	if c.NSQ != nil {
		c.NSQ.hydrateNSQDefaults()
	}
}

/* --------------------------------- Gateway Config Validation Helpers -------------------------------- */

func (c GatewayConfig) validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Router.validate(); err != nil {
		return err
	}
	if err := c.Metrics.validate(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.Dispatch.validate(); err != nil {
		return err
	}
	if _, err := c.Wallet.Seed(); err != nil {
		return err
	}
	if c.Postgres != nil {
		if err := c.Postgres.validate(); err != nil {
			return err
		}
	}
	if c.NSQ != nil {
		if err := c.NSQ.validate(); err != nil {
			return err
		}
	}

	return nil
}

// validateProviders checks cluster names and controller principals. Provider
// records themselves are validated by the registry on construction.
func (c GatewayConfig) validateProviders() error {
	for cluster := range c.Providers {
		if _, err := provider.ParseCluster(string(cluster)); err != nil {
			return err
		}
	}
	for _, p := range c.Controllers {
		if p == "" || p == provider.Anonymous {
			return fmt.Errorf("invalid controller principal %q", p)
		}
	}
	return nil
}
