// Package dispatch fans a JSON-RPC request out to a set of providers in
// parallel and collects one outcome per provider.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/consensus"
	"github.com/poroburu/ic-cosmos/jsonrpc"
	"github.com/poroburu/ic-cosmos/log"
	nethttp "github.com/poroburu/ic-cosmos/network/http"
	"github.com/poroburu/ic-cosmos/provider"
)

// DefaultCallTimeout bounds a single provider call when none is configured.
const DefaultCallTimeout = 10 * time.Second

// Outcaller sends a single outbound call.
type Outcaller interface {
	Post(ctx context.Context, logger polylog.Logger, req nethttp.Request) (nethttp.Response, error)
}

// Recorder receives per-provider call metrics.
type Recorder interface {
	ObserveRequest(method, host string)
	ObserveResponse(method, host string, status int)
	ObserveOutcallError(method, host string, class nethttp.RejectionClass)
}

// Request is a JSON-RPC call ready to be sent to every provider.
type Request struct {
	Method           string
	Body             []byte
	MaxResponseBytes uint64
	// Strategy lets the dispatcher stop waiting once the result is settled.
	// Nil waits for every provider.
	Strategy *consensus.Strategy
	// Timeout bounds each provider call. Zero uses the dispatcher default.
	Timeout time.Duration
}

// Dispatcher runs provider calls concurrently.
type Dispatcher struct {
	logger      polylog.Logger
	client      Outcaller
	recorder    Recorder
	callTimeout time.Duration
}

func NewDispatcher(logger polylog.Logger, client Outcaller, recorder Recorder, callTimeout time.Duration) *Dispatcher {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Dispatcher{
		logger:      logger.With("component", "dispatcher"),
		client:      client,
		recorder:    recorder,
		callTimeout: callTimeout,
	}
}

type indexedOutcome struct {
	index    int
	outcome  consensus.Outcome
	duration time.Duration
}

// Dispatch sends req to every provider in parallel and returns exactly one
// outcome per provider, in the order of providers.
//
// Once the outcomes received so far settle the result under req.Strategy,
// outstanding calls are cancelled and marked as not consulted. Calls that
// completed before the cancellation keep their outcome. Outcomes of
// cancelled calls that complete later are discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, providers []provider.Provider, req Request) []consensus.Outcome {
	logger := d.logger.
		With("rpc_method", req.Method).
		With("num_providers", len(providers))

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.callTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so that abandoned calls never block on send.
	results := make(chan indexedOutcome, len(providers))
	start := time.Now()

	for i, p := range providers {
		go func() {
			callStart := time.Now()
			outcome := d.call(ctx, logger, p, req, timeout)
			results <- indexedOutcome{index: i, outcome: outcome, duration: time.Since(callStart)}
		}()
	}

	outcomes := make([]consensus.Outcome, len(providers))
	received := make([]consensus.Outcome, 0, len(providers))
	done := make([]bool, len(providers))

	for pending := len(providers); pending > 0; {
		result := <-results
		pending--

		outcomes[result.index] = result.outcome
		done[result.index] = true
		received = append(received, result.outcome)

		logger.Debug().
			Str("provider_id", string(result.outcome.Provider)).
			Str("outcome", string(result.outcome.Kind)).
			Msgf("Provider %d/%d answered in %dms", result.index+1, len(providers), result.duration.Milliseconds())

		if pending > 0 && req.Strategy != nil && consensus.Decided(received, pending, *req.Strategy) {
			pending -= collectBuffered(results, outcomes, done)
			cancel()
			for i, p := range providers {
				if !done[i] {
					outcomes[i] = consensus.Outcome{
						Provider: p.ID,
						Host:     p.Host(),
						Kind:     consensus.OutcomeNotConsulted,
					}
				}
			}
			logger.Debug().Msgf("Result settled after %dms with %d calls outstanding", time.Since(start).Milliseconds(), pending)
			break
		}
	}

	return outcomes
}

// collectBuffered records the outcomes of calls that already completed but
// were not read yet, without waiting for the others. It returns how many it
// read.
func collectBuffered(results <-chan indexedOutcome, outcomes []consensus.Outcome, done []bool) int {
	n := 0
	for {
		select {
		case result := <-results:
			outcomes[result.index] = result.outcome
			done[result.index] = true
			n++
		default:
			return n
		}
	}
}

// call sends req to a single provider and classifies the outcome.
func (d *Dispatcher) call(
	ctx context.Context,
	logger polylog.Logger,
	p provider.Provider,
	req Request,
	timeout time.Duration,
) consensus.Outcome {
	host := p.Host()
	hostLabel := p.MetricsHost()
	outcome := consensus.Outcome{Provider: p.ID, Host: host}
	logger = logger.With("provider_id", string(p.ID)).With("host", host)

	url, headers, err := p.Outcall()
	if err != nil {
		outcome.Kind = consensus.OutcomeHTTPFault
		outcome.Class = string(nethttp.RejectionInvalidDestination)
		outcome.Message = err.Error()
		d.recorder.ObserveOutcallError(req.Method, hostLabel, nethttp.RejectionInvalidDestination)
		return outcome
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d.recorder.ObserveRequest(req.Method, hostLabel)
	resp, err := d.client.Post(callCtx, logger, nethttp.Request{
		URL:              url,
		Headers:          headers,
		Body:             req.Body,
		MaxResponseBytes: req.MaxResponseBytes,
	})
	if err != nil {
		// Abandoned after the result was settled.
		if errors.Is(ctx.Err(), context.Canceled) {
			outcome.Kind = consensus.OutcomeNotConsulted
			return outcome
		}

		class := nethttp.RejectionTransport
		var outcallErr *nethttp.OutcallError
		if errors.As(err, &outcallErr) {
			class = outcallErr.Class
		}
		if callCtx.Err() == context.DeadlineExceeded {
			class = nethttp.RejectionTimeout
		}

		outcome.Kind = consensus.OutcomeHTTPFault
		outcome.Class = string(class)
		outcome.Message = err.Error()
		d.recorder.ObserveOutcallError(req.Method, hostLabel, class)
		return outcome
	}

	d.recorder.ObserveResponse(req.Method, hostLabel, resp.StatusCode)
	outcome.Size = len(resp.Body)
	return classifyResponse(outcome, resp)
}

// classifyResponse turns a provider response into an outcome. A non-2xx
// response carrying a well-formed JSON-RPC error is reported as a JSON-RPC
// fault, any other non-2xx response as an HTTP fault.
func classifyResponse(outcome consensus.Outcome, resp nethttp.Response) consensus.Outcome {
	rpcResp, parseErr := jsonrpc.ParseResponse(resp.Body)

	if statusErr := nethttp.EnsureHTTPSuccess(resp.StatusCode); statusErr != nil {
		if parseErr == nil && rpcResp.Error != nil {
			return jsonRPCFault(outcome, rpcResp.Error)
		}
		outcome.Kind = consensus.OutcomeHTTPFault
		outcome.Class = string(nethttp.RejectionHTTPStatus)
		outcome.Code = resp.StatusCode
		outcome.Message = fmt.Sprintf("%v: %s", statusErr, log.PreviewBytes(resp.Body))
		return outcome
	}

	if parseErr != nil {
		outcome.Kind = consensus.OutcomeParseFault
		outcome.Message = fmt.Sprintf("%v: %s", parseErr, log.PreviewBytes(resp.Body))
		return outcome
	}

	if rpcResp.Error != nil {
		return jsonRPCFault(outcome, rpcResp.Error)
	}

	canonical, err := jsonrpc.Canonicalize(rpcResp.Result)
	if err != nil {
		outcome.Kind = consensus.OutcomeParseFault
		outcome.Message = err.Error()
		return outcome
	}

	outcome.Kind = consensus.OutcomeSuccess
	outcome.Payload = canonical
	return outcome
}

func jsonRPCFault(outcome consensus.Outcome, rpcErr *jsonrpc.ResponseError) consensus.Outcome {
	outcome.Kind = consensus.OutcomeJSONRPCFault
	outcome.Code = rpcErr.Code
	outcome.Message = rpcErr.Message
	return outcome
}
