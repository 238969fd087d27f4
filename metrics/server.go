package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const endpointMetrics = "/metrics"

// ServeMetrics serves the Prometheus collectors on addr until ctx is done.
func ServeMetrics(ctx context.Context, logger polylog.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(endpointMetrics, promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("endpoint_addr", addr).Msg("Serving Prometheus metrics.")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Prometheus metrics server failed.")
		return err
	}
	return nil
}
