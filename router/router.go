// Package router exposes the gateway operations over HTTP with JSON bodies.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/cometbft"
	"github.com/poroburu/ic-cosmos/config"
	"github.com/poroburu/ic-cosmos/gateway"
	"github.com/poroburu/ic-cosmos/metrics"
	"github.com/poroburu/ic-cosmos/provider"
)

const (
	pathParamMethod     = "method"
	pathParamProviderID = "id"
	pathParamCapability = "capability"
	pathParamPrincipal  = "principal"

	shutdownTimeout = 10 * time.Second
)

type (
	router struct {
		mux    *http.ServeMux
		config config.RouterConfig
		logger polylog.Logger

		gateway       gatewayAPI
		chain         chainAPI
		wallet        walletAPI
		authenticator authenticator
		healthz       http.HandlerFunc
	}

	// gatewayAPI is satisfied by *gateway.Gateway.
	gatewayAPI interface {
		Request(ctx context.Context, caller provider.Principal, target provider.Target, config gateway.RpcConfig, method, params string) (string, error)
		RequestCost(method string, estimate *uint64) (uint64, error)
		GetMetrics() metrics.Metrics

		RegisterProvider(caller provider.Principal, args provider.RegisterArgs) error
		UpdateProvider(caller provider.Principal, args provider.UpdateArgs) error
		UnregisterProvider(caller provider.Principal, id provider.ID) (bool, error)
		GetProviders() []provider.Provider
		Authorize(caller, principal provider.Principal, c provider.Capability) (bool, error)
		Deauthorize(caller, principal provider.Principal, c provider.Capability) (bool, error)
		GetAuthorized(c provider.Capability) []provider.Principal
	}

	// chainAPI is satisfied by *cometbft.Client.
	chainAPI interface {
		Call(ctx context.Context, s cometbft.Scope, method string, args json.RawMessage) (any, error)
	}

	// walletAPI is satisfied by *wallet.Wallet.
	walletAPI interface {
		Address(ctx context.Context, caller provider.Principal) (string, error)
		CosmosAddress(ctx context.Context, caller provider.Principal) (string, error)
		SignMessage(ctx context.Context, caller provider.Principal, message []byte) ([]byte, error)
		SendTransaction(ctx context.Context, caller provider.Principal, target provider.Target, config gateway.RpcConfig, signedTx string) (string, error)
	}

	// authenticator is satisfied by *user.Authenticator.
	authenticator interface {
		Authenticate(req *http.Request) (provider.Principal, error)
	}
)

type RouterParams struct {
	Logger        polylog.Logger
	Config        config.RouterConfig
	Gateway       gatewayAPI
	Chain         chainAPI
	Wallet        walletAPI
	Authenticator authenticator
	// Healthz serves GET /healthz, e.g. health.Checker.HealthzHandler.
	Healthz http.HandlerFunc
}

/* --------------------------------- Init -------------------------------- */

// NewRouter creates a new router instance
func NewRouter(params RouterParams) *router {
	r := &router{
		mux:           http.NewServeMux(),
		config:        params.Config,
		logger:        params.Logger.With("package", "router"),
		gateway:       params.Gateway,
		chain:         params.Chain,
		wallet:        params.Wallet,
		authenticator: params.Authenticator,
		healthz:       params.Healthz,
	}
	r.handleRoutes()
	return r
}

func (r *router) handleRoutes() {
	if r.healthz != nil {
		r.mux.HandleFunc("GET /healthz", r.healthz)
	}

	// Chain queries
	r.mux.HandleFunc(fmt.Sprintf("POST /v1/cometbft/{%s}", pathParamMethod), r.withCaller(r.handleTypedCall))
	r.mux.HandleFunc("POST /v1/request", r.withCaller(r.handleRequest))
	r.mux.HandleFunc("GET /v1/request_cost", r.handleRequestCost)
	r.mux.HandleFunc("GET /v1/metrics", r.handleMetrics)

	// Registry management
	r.mux.HandleFunc("GET /v1/providers", r.handleGetProviders)
	r.mux.HandleFunc("POST /v1/providers", r.withCaller(r.handleRegisterProvider))
	r.mux.HandleFunc(fmt.Sprintf("PATCH /v1/providers/{%s}", pathParamProviderID), r.withCaller(r.handleUpdateProvider))
	r.mux.HandleFunc(fmt.Sprintf("DELETE /v1/providers/{%s}", pathParamProviderID), r.withCaller(r.handleUnregisterProvider))
	r.mux.HandleFunc(fmt.Sprintf("GET /v1/authorized/{%s}", pathParamCapability), r.handleGetAuthorized)
	r.mux.HandleFunc(fmt.Sprintf("POST /v1/authorized/{%s}", pathParamCapability), r.withCaller(r.handleAuthorize))
	r.mux.HandleFunc(fmt.Sprintf("DELETE /v1/authorized/{%s}/{%s}", pathParamCapability, pathParamPrincipal), r.withCaller(r.handleDeauthorize))

	// Wallet
	if r.wallet != nil {
		r.mux.HandleFunc("GET /v1/wallet/address", r.withCaller(r.handleAddress))
		r.mux.HandleFunc("GET /v1/wallet/cosmos_address", r.withCaller(r.handleCosmosAddress))
		r.mux.HandleFunc("POST /v1/wallet/sign_message", r.withCaller(r.handleSignMessage))
		r.mux.HandleFunc("POST /v1/wallet/send_transaction", r.withCaller(r.handleSendTransaction))
	}
}

// Start serves the API until ctx is done, then shuts down gracefully.
func (r *router) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", r.config.Port),
		Handler:        r.corsMiddleware(r.deadlineMiddleware(r.mux)),
		ReadTimeout:    r.config.ReadTimeout,
		WriteTimeout:   r.config.WriteTimeout,
		IdleTimeout:    r.config.IdleTimeout,
		MaxHeaderBytes: r.config.MaxRequestHeaderBytes,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn().Err(err).Msg("router shutdown did not complete cleanly")
		}
	}()

	r.logger.Info().Msgf("Cosmos gateway running on port %d", r.config.Port)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

/* --------------------------------- Middleware -------------------------------- */

// TODO_IMPROVE: gather the CORS config from the config YAML
func (r *router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if req.Method == http.MethodOptions {
			// Handle preflight request, which is necessary for CORS to work.
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// deadlineMiddleware bounds each request context to the write timeout less
// the system overhead allowance. Outstanding provider calls are abandoned at
// that deadline and the remaining allowance is left for writing the reply.
func (r *router) deadlineMiddleware(next http.Handler) http.Handler {
	budget := r.config.WriteTimeout - r.config.SystemOverheadAllowanceDuration
	if r.config.WriteTimeout <= 0 || budget <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), budget)
		defer cancel()
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

type callerHandler func(w http.ResponseWriter, req *http.Request, caller provider.Principal)

// withCaller authenticates the request and hands the principal to next.
// Requests without credentials run as provider.Anonymous.
func (r *router) withCaller(next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		caller := provider.Anonymous
		if r.authenticator != nil {
			var err error
			caller, err = r.authenticator.Authenticate(req)
			if err != nil {
				r.writeErrorStatus(w, http.StatusUnauthorized, "unauthenticated", err)
				return
			}
		}
		next(w, req, caller)
	}
}
