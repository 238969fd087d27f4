// Package gateway is the entry point of the JSON-RPC consensus gateway.
//
// A call is processed in the following order:
//   - Resolve the target into providers using the registry
//   - Pick and validate the consensus strategy
//   - Price the call and charge the caller
//   - Fan the call out to every provider
//   - Refund the providers that were never consulted
//   - Reconcile the outcomes and record metrics
//
// Authorization, validation and accounting failures are returned before
// any provider is contacted and are never charged.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/accounting"
	"github.com/poroburu/ic-cosmos/consensus"
	"github.com/poroburu/ic-cosmos/cost"
	"github.com/poroburu/ic-cosmos/dispatch"
	"github.com/poroburu/ic-cosmos/jsonrpc"
	"github.com/poroburu/ic-cosmos/metrics"
	"github.com/poroburu/ic-cosmos/provider"
)

// customMethodLabel is the metrics label of methods without a size class.
const customMethodLabel = "custom"

// Dispatcher fans a request out to providers.
type Dispatcher interface {
	Dispatch(ctx context.Context, providers []provider.Provider, req dispatch.Request) []consensus.Outcome
}

// RpcConfig carries the per-call options of a chain query.
type RpcConfig struct {
	// Strategy is required when more than one provider is targeted by a
	// read call. State-changing calls default to equality.
	Strategy *consensus.Strategy `json:"strategy,omitempty"`
	// ResponseSizeEstimate is the expected response size in bytes. It sets
	// both the price and the response cap of every provider call. Without
	// it both use cost.MaxResponseBytes.
	ResponseSizeEstimate *uint64 `json:"response_size_estimate,omitempty"`
}

// Call is a single logical JSON-RPC call.
type Call struct {
	Target provider.Target
	Config RpcConfig
	Method string
	Params jsonrpc.Params
}

// Reply is the full result of a call.
type Reply struct {
	Result   consensus.Result   `json:"result"`
	Strategy consensus.Strategy `json:"strategy"`
	Cost     cost.Record        `json:"cost"`
	// Refunded is the cycles returned for providers that were not consulted.
	Refunded uint64 `json:"refunded"`
}

// Gateway sequences registry, pricing, dispatch and reconciliation.
type Gateway struct {
	Logger     polylog.Logger
	Registry   *provider.Registry
	CostModel  cost.Model
	Dispatcher Dispatcher
	Ledger     accounting.Ledger
	Metrics    *metrics.Collector
	// Reporter receives every disagreement. Optional.
	Reporter DisagreementReporter

	ids jsonrpc.IDGenerator
}

// Query runs a read call and returns the agreed payload.
func (g *Gateway) Query(ctx context.Context, caller provider.Principal, call Call) (json.RawMessage, error) {
	reply, err := g.Call(ctx, caller, call)
	if err != nil {
		return nil, err
	}
	return agreedPayload(call.Method, reply)
}

// Submit runs a state-changing call. Equality is used unless the caller
// opts into a threshold.
func (g *Gateway) Submit(ctx context.Context, caller provider.Principal, call Call) (json.RawMessage, error) {
	reply, err := g.call(ctx, caller, call, consensus.ResolveSubmit)
	if err != nil {
		return nil, err
	}
	return agreedPayload(call.Method, reply)
}

// Request runs a read call for a method without a typed wrapper. params is
// the JSON text of the parameters, an array or an object.
func (g *Gateway) Request(
	ctx context.Context,
	caller provider.Principal,
	target provider.Target,
	config RpcConfig,
	method string,
	params string,
) (string, error) {
	p, err := jsonrpc.NewParams(json.RawMessage(params))
	if err != nil {
		g.Metrics.ObserveOutcome(metricsMethod(method), metrics.OutcomeInvalid)
		return "", &ValidationError{Err: err}
	}

	payload, err := g.Query(ctx, caller, Call{Target: target, Config: config, Method: method, Params: p})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// RequestCost previews the price of a single provider call to method.
func (g *Gateway) RequestCost(method string, estimate *uint64) (uint64, error) {
	if method == "" {
		return 0, validationErr("method is required")
	}
	body, err := json.Marshal(jsonrpc.NewRequest(jsonrpc.IDFromInt(0), method, jsonrpc.Params{}))
	if err != nil {
		return 0, &TextError{Message: err.Error()}
	}
	return g.CostModel.RequestCost(method, len(body), estimate), nil
}

// GetMetrics returns a snapshot of the collected metrics.
func (g *Gateway) GetMetrics() metrics.Metrics {
	return g.Metrics.Snapshot()
}

// Call runs a read call and returns the reconciled result, agreed or not.
// Provider faults are part of the result. Only target, strategy and
// accounting failures are returned as errors.
func (g *Gateway) Call(ctx context.Context, caller provider.Principal, call Call) (Reply, error) {
	return g.call(ctx, caller, call, consensus.Resolve)
}

func (g *Gateway) call(
	ctx context.Context,
	caller provider.Principal,
	call Call,
	resolveStrategy func(*consensus.Strategy, int) (consensus.Strategy, error),
) (Reply, error) {
	label := metricsMethod(call.Method)
	logger := g.Logger.
		With("rpc_method", call.Method).
		With("target", call.Target.String()).
		With("caller", string(caller))

	if call.Method == "" {
		g.Metrics.ObserveOutcome(label, metrics.OutcomeInvalid)
		return Reply{}, validationErr("method is required")
	}

	providers, err := g.Registry.Resolve(call.Target)
	if err != nil {
		g.Metrics.ObserveOutcome(label, metrics.OutcomeInvalid)
		return Reply{}, &ValidationError{Err: err}
	}

	strategy, err := resolveStrategy(call.Config.Strategy, len(providers))
	if err != nil {
		g.Metrics.ObserveOutcome(label, metrics.OutcomeInvalid)
		return Reply{}, &ValidationError{Err: err}
	}

	body, err := json.Marshal(jsonrpc.NewRequest(g.ids.Next(), call.Method, call.Params))
	if err != nil {
		g.Metrics.ObserveOutcome(label, metrics.OutcomeInvalid)
		return Reply{}, &ValidationError{Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	price := g.CostModel.Price(call.Method, len(providers), len(body), call.Config.ResponseSizeEstimate)
	if err := g.Ledger.Charge(ctx, caller, price.EstimatedCycles); err != nil {
		if errors.Is(err, accounting.ErrInsufficientBalance) {
			g.Metrics.ObserveOutcome(label, metrics.OutcomeInsufficientBalance)
		}
		logger.Info().Err(err).Uint64("cycles", price.EstimatedCycles).Msg("Rejected call: charge failed.")
		return Reply{}, err
	}
	for _, p := range providers {
		g.Metrics.ObserveCharged(label, p.MetricsHost(), price.PerCallCycles)
	}

	logger.Debug().
		Int("num_providers", len(providers)).
		Str("strategy", strategy.String()).
		Uint64("cycles", price.EstimatedCycles).
		Uint64("max_response_bytes", price.MaxResponseBytes).
		Msg("Dispatching call.")

	outcomes := g.Dispatcher.Dispatch(ctx, providers, dispatch.Request{
		Method:           label,
		Body:             body,
		MaxResponseBytes: price.MaxResponseBytes,
		Strategy:         &strategy,
	})

	result := consensus.Reconcile(outcomes, strategy)

	_, notConsulted := result.Counts()
	refund := price.Refund(notConsulted)
	if refund > 0 {
		g.Ledger.Refund(ctx, caller, refund)
		g.Metrics.ObserveRefund(label, refund)
	}

	g.observeResult(logger, caller, call, label, strategy, providers, result)

	return Reply{Result: result, Strategy: strategy, Cost: price, Refunded: refund}, nil
}

func (g *Gateway) observeResult(
	logger polylog.Logger,
	caller provider.Principal,
	call Call,
	label string,
	strategy consensus.Strategy,
	providers []provider.Provider,
	result consensus.Result,
) {
	for _, o := range result.Outcomes {
		if o.IsSuccess() {
			g.Metrics.ObserveResponseSize(label, o.Size)
		}
	}

	if result.Agreed {
		g.Metrics.ObserveOutcome(label, metrics.OutcomeAgreed)
		return
	}

	if fault, ok := result.ConsistentFault(); ok {
		g.Metrics.ObserveOutcome(label, metrics.OutcomeConsistentError)
		logger.Debug().Str("fault", fault.String()).Msg("Every provider returned the same error.")
		return
	}

	g.Metrics.ObserveOutcome(label, metrics.OutcomeDisagreement)
	// Outcomes follow the order of providers.
	for i, o := range result.Outcomes {
		if o.Kind != consensus.OutcomeNotConsulted {
			g.Metrics.ObserveInconsistent(label, providers[i].MetricsHost())
		}
	}

	logger.Warn().
		Str("strategy", strategy.String()).
		Int("num_outcomes", len(result.Outcomes)).
		Msg("Providers disagreed.")

	reporter := g.Reporter
	if reporter == nil {
		reporter = noopReporter{}
	}
	reporter.Publish(Disagreement{
		Method:    call.Method,
		Target:    call.Target.String(),
		Strategy:  strategy,
		Caller:    caller,
		Outcomes:  result.Outcomes,
		Timestamp: time.Now(),
	})
}

// agreedPayload returns the agreed payload of a result, or the error
// describing why there is none.
func agreedPayload(method string, reply Reply) (json.RawMessage, error) {
	if reply.Result.Agreed {
		return reply.Result.Payload, nil
	}
	if fault, ok := reply.Result.ConsistentFault(); ok {
		return nil, faultError(fault)
	}
	return nil, &InconsistentResponseError{Method: method, Strategy: reply.Strategy, Outcomes: reply.Result.Outcomes}
}

func metricsMethod(method string) string {
	if cost.Classify(method) == cost.ClassUnknown {
		return customMethodLabel
	}
	return method
}
