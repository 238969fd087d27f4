package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/poroburu/ic-cosmos/config/utils"
	"github.com/poroburu/ic-cosmos/message"
	"github.com/poroburu/ic-cosmos/wallet"
)

/* --------------------------------- Auth Config -------------------------------- */

// AuthConfig configures bearer token verification. Without a secret every
// caller is anonymous.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

/* --------------------------------- Wallet Config -------------------------------- */

// WalletConfig configures the local development signer.
type WalletConfig struct {
	Bech32Prefix string `yaml:"bech32_prefix"`
	// SigningSeed is hex encoded. Without it every wallet operation fails
	// with a key unavailable error.
	SigningSeed string `yaml:"signing_seed"`
}

func (c *WalletConfig) hydrateWalletDefaults() {
	if c.Bech32Prefix == "" {
		c.Bech32Prefix = wallet.DefaultBech32Prefix
	}
}

// Seed returns the decoded signing seed.
func (c WalletConfig) Seed() ([]byte, error) {
	seed, err := hex.DecodeString(c.SigningSeed)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet signing seed: %w", err)
	}
	return seed, nil
}

/* --------------------------------- Postgres Config -------------------------------- */

const defaultPostgresConnectTimeout = 10 * time.Second

// PostgresConfig enables registry persistence.
type PostgresConfig struct {
	DBConnectionString string        `yaml:"db_connection_string"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
}

func (c *PostgresConfig) hydratePostgresDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultPostgresConnectTimeout
	}
}

func (c PostgresConfig) validate() error {
	if !utils.IsValidDBConnectionString(c.DBConnectionString) {
		return fmt.Errorf("invalid DB connection string: %s", c.DBConnectionString)
	}
	return nil
}

/* --------------------------------- NSQ Config -------------------------------- */

// NSQConfig enables publishing disagreements to nsqd.
type NSQConfig struct {
	NSQDAddr string `yaml:"nsqd_addr"`
	Topic    string `yaml:"topic"`
}

func (c *NSQConfig) hydrateNSQDefaults() {
	if c.Topic == "" {
		c.Topic = message.DefaultTopic
	}
}

func (c NSQConfig) validate() error {
	if !utils.IsValidHostPort(c.NSQDAddr) {
		return fmt.Errorf("invalid nsqd address %q", c.NSQDAddr)
	}
	return nil
}
