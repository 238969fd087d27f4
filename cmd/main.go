package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pokt-network/poktroll/pkg/polylog"
	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	configpkg "github.com/poroburu/ic-cosmos/config"
	"github.com/poroburu/ic-cosmos/metrics"
)

// defaultConfigPath will be appended to the location of
// the executable to get the full path to the config file.
const defaultConfigPath = "config/.config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ic-cosmos",
		Short: "Multi-provider consensus gateway for CometBFT JSON-RPC",
		Long: `ic-cosmos forwards CometBFT JSON-RPC calls to several providers at once
and only returns a result once the providers agree on it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				var err error
				if configPath, err = executableConfigPath(defaultConfigPath); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "override the default config path")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	config, err := configpkg.LoadGatewayConfigFromYAML(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.Printf("Initializing gateway logger with level: %s", config.Logger.Level)

	loggerOpts := []polylog.LoggerOption{
		polyzero.WithLevel(polyzero.ParseLevel(config.Logger.Level)),
	}
	logger := polyzero.NewLogger(loggerOpts...)
	logger.Info().Msgf("Starting gateway using config file: %s", configPath)

	components, err := setupComponents(ctx, logger, config)
	if err != nil {
		return err
	}
	defer components.close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.ServeMetrics(ctx, logger, config.Metrics.PrometheusAddr) })
	g.Go(func() error { return metrics.ServePprof(ctx, logger, config.Metrics.PprofAddr) })
	if components.persister != nil {
		g.Go(func() error { return components.persister.Run(ctx) })
	}

	// log.Printf is used here to ensure this info is printed to the console regardless of the log level.
	log.Printf("Cosmos gateway started.\n  Port: %d\n  Clusters: %v\n  Persistence: %t\n  Events: %t",
		config.Router.Port, components.registry.Clusters(), config.PersistenceEnabled(), config.EventsEnabled())

	// The router blocks until ctx is done.
	g.Go(func() error { return components.router.Start(ctx) })

	return g.Wait()
}

// executableConfigPath returns the full path to the config file relative to the executable.
//
// Examples:
// - Executable in `/app` → config at `/app/config/.config.yaml`
// - Executable in `./bin` → config at `./bin/config/.config.yaml`
func executableConfigPath(defaultConfigPath string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %v", err)
	}
	return filepath.Join(filepath.Dir(exe), defaultConfigPath), nil
}
