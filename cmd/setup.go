package main

import (
	"context"
	"fmt"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/accounting"
	"github.com/poroburu/ic-cosmos/cometbft"
	"github.com/poroburu/ic-cosmos/config"
	"github.com/poroburu/ic-cosmos/cost"
	"github.com/poroburu/ic-cosmos/db"
	"github.com/poroburu/ic-cosmos/db/postgres"
	"github.com/poroburu/ic-cosmos/dispatch"
	"github.com/poroburu/ic-cosmos/gateway"
	"github.com/poroburu/ic-cosmos/health"
	"github.com/poroburu/ic-cosmos/message"
	"github.com/poroburu/ic-cosmos/metrics"
	nethttp "github.com/poroburu/ic-cosmos/network/http"
	"github.com/poroburu/ic-cosmos/provider"
	"github.com/poroburu/ic-cosmos/router"
	"github.com/poroburu/ic-cosmos/user"
	"github.com/poroburu/ic-cosmos/wallet"
)

type starter interface {
	Start(ctx context.Context) error
}

// components holds everything run needs to supervise.
type components struct {
	registry  *provider.Registry
	persister *db.Persister
	router    starter

	closers []func()
}

// close releases resources in reverse order of creation.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func setupComponents(ctx context.Context, logger polylog.Logger, cfg config.GatewayConfig) (*components, error) {
	c := &components{}

	registry, err := provider.NewRegistry(logger, cfg.Providers, cfg.Controllers)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider registry: %w", err)
	}
	c.registry = registry

	healthComponents := []health.Check{}
	if cfg.PersistenceEnabled() {
		persister, closeStore, err := setupPersister(ctx, logger, *cfg.Postgres, registry)
		if err != nil {
			return nil, err
		}
		c.persister = persister
		c.closers = append(c.closers, closeStore)
		healthComponents = append(healthComponents, persister)
	}

	var reporter gateway.DisagreementReporter
	if cfg.EventsEnabled() {
		nsqReporter, err := message.NewNSQReporter(logger, cfg.NSQ.NSQDAddr, cfg.NSQ.Topic)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("failed to create NSQ reporter: %w", err)
		}
		reporter = nsqReporter
		c.closers = append(c.closers, nsqReporter.Stop)
	}

	collector := metrics.NewCollector()
	client := nethttp.NewClient(nethttp.ClientOptions{
		UseCompression: cfg.Dispatch.UseCompression,
		AllowedHosts:   cfg.Dispatch.AllowedHosts,
	})

	gw := &gateway.Gateway{
		Logger:     logger,
		Registry:   registry,
		CostModel:  cost.NewModel(cfg.Cost.NodesInSubnet, cfg.Cost.Demo),
		Dispatcher: dispatch.NewDispatcher(logger, client, collector, cfg.Dispatch.CallTimeout),
		Ledger:     setupLedger(logger, cfg.Accounting),
		Metrics:    collector,
		Reporter:   reporter,
	}
	chain := cometbft.NewClient(gw)

	// An empty seed leaves the signer without keys: wallet calls then
	// fail with wallet.ErrKeyUnavailable.
	seed, err := cfg.Wallet.Seed()
	if err != nil {
		c.close()
		return nil, err
	}
	signer := wallet.NewLocalSigner(seed)

	healthChecker := &health.Checker{
		Logger:          logger,
		Components:      healthComponents,
		ClusterReporter: registry,
	}

	c.router = router.NewRouter(router.RouterParams{
		Logger:        logger,
		Config:        cfg.GetRouterConfig(),
		Gateway:       gw,
		Chain:         chain,
		Wallet:        wallet.NewWallet(logger, signer, chain, cfg.Wallet.Bech32Prefix),
		Authenticator: user.NewAuthenticator(logger, []byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer),
		Healthz:       healthChecker.HealthzHandler,
	})
	return c, nil
}

// setupPersister connects to postgres and restores the registry from the
// last saved state before any request is served.
func setupPersister(
	ctx context.Context,
	logger polylog.Logger,
	cfg config.PostgresConfig,
	registry *provider.Registry,
) (*db.Persister, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	store, closeStore, err := postgres.NewStore(connectCtx, cfg.DBConnectionString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	closer := func() {
		if err := closeStore(); err != nil {
			logger.Warn().Err(err).Msg("error closing postgres store")
		}
	}

	persister := db.NewPersister(logger, store)
	if err := persister.Attach(connectCtx, registry); err != nil {
		closer()
		return nil, nil, fmt.Errorf("failed to restore registry state: %w", err)
	}
	return persister, closer, nil
}

func setupLedger(logger polylog.Logger, cfg config.AccountingConfig) accounting.Ledger {
	if cfg.Unmetered {
		logger.Warn().Msg("Accounting is disabled: calls are not charged.")
		return accounting.Unmetered{}
	}
	return accounting.NewBalances(logger, cfg.DefaultBalance, cfg.Balances)
}
