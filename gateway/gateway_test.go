package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/stretchr/testify/require"

	"github.com/poroburu/ic-cosmos/accounting"
	"github.com/poroburu/ic-cosmos/consensus"
	"github.com/poroburu/ic-cosmos/cost"
	"github.com/poroburu/ic-cosmos/dispatch"
	"github.com/poroburu/ic-cosmos/jsonrpc"
	"github.com/poroburu/ic-cosmos/metrics"
	nethttp "github.com/poroburu/ic-cosmos/network/http"
	"github.com/poroburu/ic-cosmos/provider"
)

const (
	controller provider.Principal = "controller"
	alice      provider.Principal = "alice"

	initialBalance = uint64(1_000_000_000_000_000)

	resultX = `{"jsonrpc":"2.0","id":1,"result":{"latest_block_height":"100"}}`
	resultY = `{"jsonrpc":"2.0","id":1,"result":{"latest_block_height":"101"}}`
)

// testProvider is an RPC provider answering every call with the same body.
type testProvider struct {
	calls atomic.Int32
	srv   *httptest.Server
}

func newTestProvider(t *testing.T, status int, body string) *testProvider {
	t.Helper()
	tp := &testProvider{}
	tp.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		tp.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(tp.srv.Close)
	return tp
}

// newHangingProvider never answers until the test ends or the call is abandoned.
func newHangingProvider(t *testing.T) *testProvider {
	t.Helper()
	release := make(chan struct{})
	tp := &testProvider{}
	tp.srv = httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		tp.calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(tp.srv.Close)
	t.Cleanup(func() { close(release) })
	return tp
}

type recordingReporter struct {
	mu            sync.Mutex
	disagreements []Disagreement
}

func (r *recordingReporter) Publish(d Disagreement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disagreements = append(r.disagreements, d)
}

type testGateway struct {
	*Gateway
	balances *accounting.Balances
	reporter *recordingReporter
}

func newTestGateway(t *testing.T, providers map[provider.ID]*testProvider) testGateway {
	t.Helper()
	c := require.New(t)
	logger := polyzero.NewLogger()

	registry, err := provider.NewRegistry(logger, nil, []provider.Principal{controller})
	c.NoError(err)
	// Registration order is fixed by sorted ids to keep outcome order stable.
	for _, id := range []provider.ID{"a", "b", "c", "d"} {
		tp, ok := providers[id]
		if !ok {
			continue
		}
		c.NoError(registry.Register(controller, provider.RegisterArgs{ID: id, URL: tp.srv.URL}))
	}

	collector := metrics.NewCollector()
	balances := accounting.NewBalances(logger, initialBalance, nil)
	reporter := &recordingReporter{}

	return testGateway{
		Gateway: &Gateway{
			Logger:     logger,
			Registry:   registry,
			CostModel:  cost.NewModel(0, false),
			Dispatcher: dispatch.NewDispatcher(logger, nethttp.NewClient(nethttp.ClientOptions{}), collector, 5*time.Second),
			Ledger:     balances,
			Metrics:    collector,
			Reporter:   reporter,
		},
		balances: balances,
		reporter: reporter,
	}
}

func statusCall(strategy *consensus.Strategy, ids ...provider.ID) Call {
	return Call{
		Target: provider.ProvidersTarget(ids...),
		Config: RpcConfig{Strategy: strategy},
		Method: "status",
	}
}

func ptr[T any](v T) *T { return &v }

func Test_Query_ThresholdAndEqualityOverTheSameOutcomes(t *testing.T) {
	tests := []struct {
		name             string
		strategy         consensus.Strategy
		wantPayload      string
		wantInconsistent bool
	}{
		{
			name:        "two of three agree under threshold(2)",
			strategy:    consensus.Threshold(2),
			wantPayload: `{"latest_block_height":"100"}`,
		},
		{
			name:             "one dissenting provider fails equality",
			strategy:         consensus.Equality(),
			wantInconsistent: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)
			g := newTestGateway(t, map[provider.ID]*testProvider{
				"a": newTestProvider(t, http.StatusOK, resultX),
				"b": newTestProvider(t, http.StatusOK, resultX),
				"c": newTestProvider(t, http.StatusOK, resultY),
			})

			payload, err := g.Query(context.Background(), alice, statusCall(ptr(test.strategy), "a", "b", "c"))
			if !test.wantInconsistent {
				c.NoError(err)
				c.JSONEq(test.wantPayload, string(payload))
				return
			}

			var inconsistent *InconsistentResponseError
			c.ErrorAs(err, &inconsistent)
			c.Equal(KindInconsistent, inconsistent.Kind())
			c.Len(inconsistent.Outcomes, 3)
			for i, id := range []provider.ID{"a", "b", "c"} {
				c.Equal(id, inconsistent.Outcomes[i].Provider)
			}
			c.JSONEq(`{"latest_block_height":"101"}`, string(inconsistent.Outcomes[2].Payload))

			c.Len(g.reporter.disagreements, 1)
			c.Equal("status", g.reporter.disagreements[0].Method)
			c.Equal(alice, g.reporter.disagreements[0].Caller)

			m := g.GetMetrics()
			c.Equal(uint64(1), m.Outcomes[metrics.MethodOutcome{Method: "status", Outcome: metrics.OutcomeDisagreement}])
		})
	}
}

func Test_Query_ChargesOnceBeforeDispatch(t *testing.T) {
	c := require.New(t)
	g := newTestGateway(t, map[provider.ID]*testProvider{
		"a": newTestProvider(t, http.StatusOK, resultX),
		"b": newTestProvider(t, http.StatusOK, resultX),
	})

	estimate := uint64(2000)
	call := statusCall(ptr(consensus.Equality()), "a", "b")
	call.Method = "block"
	call.Config.ResponseSizeEstimate = &estimate

	reply, err := g.Call(context.Background(), alice, call)
	c.NoError(err)
	c.True(reply.Result.Agreed)
	c.Equal(2, reply.Cost.ProviderCount)
	c.Zero(reply.Refunded)

	single, err := g.RequestCost("block", &estimate)
	c.NoError(err)
	c.GreaterOrEqual(reply.Cost.EstimatedCycles, single)
	c.Equal(initialBalance-reply.Cost.EstimatedCycles, g.balances.Balance(alice))

	var charged uint64
	for _, v := range g.GetMetrics().CyclesCharged {
		charged += v
	}
	c.Equal(reply.Cost.EstimatedCycles, charged)
}

func Test_Query_LargeReplyWithoutEstimate(t *testing.T) {
	c := require.New(t)

	// Well above any per-method size guess for status.
	moniker := strings.Repeat("m", 64*1024)
	body := `{"jsonrpc":"2.0","id":1,"result":{"node_info":{"moniker":"` + moniker + `"}}}`
	g := newTestGateway(t, map[provider.ID]*testProvider{
		"a": newTestProvider(t, http.StatusOK, body),
	})

	reply, err := g.Call(context.Background(), alice, statusCall(nil, "a"))
	c.NoError(err)
	c.True(reply.Result.Agreed)
	c.Equal(uint64(cost.MaxResponseBytes), reply.Cost.MaxResponseBytes)

	payload, err := g.Query(context.Background(), alice, statusCall(nil, "a"))
	c.NoError(err)
	c.Contains(string(payload), moniker)
}

func Test_Call_CustomEndpointsShareOneHostLabel(t *testing.T) {
	c := require.New(t)
	g := newTestGateway(t, nil)

	x := newTestProvider(t, http.StatusOK, resultX)
	y := newTestProvider(t, http.StatusOK, resultY)
	call := Call{
		Target: provider.Target{Custom: []provider.Endpoint{{URL: x.srv.URL}, {URL: y.srv.URL}}},
		Config: RpcConfig{Strategy: ptr(consensus.Equality())},
		Method: "status",
	}

	reply, err := g.Call(context.Background(), alice, call)
	c.NoError(err)
	c.False(reply.Result.Agreed)

	m := g.GetMetrics()
	key := metrics.MethodHost{Method: "status", Host: provider.CustomHostLabel}
	c.Equal(map[metrics.MethodHost]uint64{key: 2}, m.Requests)
	c.Equal(map[metrics.MethodHost]uint64{key: 2}, m.InconsistentResponses)
	c.Equal(map[metrics.MethodHost]uint64{key: reply.Cost.EstimatedCycles}, m.CyclesCharged)
}

func Test_Call_DisagreementIsChargedOnce(t *testing.T) {
	c := require.New(t)
	g := newTestGateway(t, map[provider.ID]*testProvider{
		"a": newTestProvider(t, http.StatusOK, resultX),
		"b": newTestProvider(t, http.StatusOK, resultY),
	})

	reply, err := g.Call(context.Background(), alice, statusCall(ptr(consensus.Equality()), "a", "b"))
	c.NoError(err)
	c.False(reply.Result.Agreed)
	c.Equal(initialBalance-reply.Cost.EstimatedCycles, g.balances.Balance(alice))
}

func Test_Call_EarlyExitRefundsUnconsultedProviders(t *testing.T) {
	c := require.New(t)
	g := newTestGateway(t, map[provider.ID]*testProvider{
		"a": newTestProvider(t, http.StatusOK, resultX),
		"b": newHangingProvider(t),
	})

	reply, err := g.Call(context.Background(), alice, statusCall(ptr(consensus.Threshold(1)), "a", "b"))
	c.NoError(err)
	c.True(reply.Result.Agreed)
	c.Equal(consensus.OutcomeNotConsulted, reply.Result.Outcomes[1].Kind)
	c.Equal(reply.Cost.PerCallCycles, reply.Refunded)
	c.Equal(initialBalance-reply.Cost.EstimatedCycles+reply.Refunded, g.balances.Balance(alice))
	c.Equal(reply.Refunded, g.GetMetrics().CyclesRefunded["status"])
}

func Test_Call_RejectedBeforeDispatch(t *testing.T) {
	tests := []struct {
		name    string
		call    Call
		wantErr error
	}{
		{
			name:    "strategy required for several providers",
			call:    statusCall(nil, "a", "b"),
			wantErr: consensus.ErrStrategyRequired,
		},
		{
			name:    "threshold above the provider count",
			call:    statusCall(ptr(consensus.Threshold(3)), "a", "b"),
			wantErr: consensus.ErrInvalidStrategy,
		},
		{
			name:    "zero threshold",
			call:    statusCall(ptr(consensus.Threshold(0)), "a"),
			wantErr: consensus.ErrInvalidStrategy,
		},
		{
			name:    "unknown provider id",
			call:    statusCall(nil, "a", "missing"),
			wantErr: provider.ErrNotFound,
		},
		{
			name:    "empty target",
			call:    Call{Method: "status"},
			wantErr: provider.ErrInvalidTarget,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)
			a := newTestProvider(t, http.StatusOK, resultX)
			b := newTestProvider(t, http.StatusOK, resultX)
			g := newTestGateway(t, map[provider.ID]*testProvider{"a": a, "b": b})

			_, err := g.Call(context.Background(), alice, test.call)
			c.ErrorIs(err, test.wantErr)

			var validation *ValidationError
			c.ErrorAs(err, &validation)

			c.Equal(initialBalance, g.balances.Balance(alice))
			c.Zero(a.calls.Load())
			c.Zero(b.calls.Load())
		})
	}
}

func Test_Call_InsufficientBalance(t *testing.T) {
	c := require.New(t)
	a := newTestProvider(t, http.StatusOK, resultX)
	g := newTestGateway(t, map[provider.ID]*testProvider{"a": a})
	g.Ledger = accounting.NewBalances(polyzero.NewLogger(), 10, nil)

	_, err := g.Call(context.Background(), alice, statusCall(nil, "a"))
	c.ErrorIs(err, accounting.ErrInsufficientBalance)
	c.Zero(a.calls.Load())
	c.Equal(uint64(1), g.GetMetrics().Outcomes[metrics.MethodOutcome{Method: "status", Outcome: metrics.OutcomeInsufficientBalance}])
}

func Test_Query_ConsistentFaultsSurfaceAsTypedErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{
			name:     "same JSON-RPC error everywhere",
			status:   http.StatusOK,
			body:     `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"tx not found"}}`,
			wantKind: KindJSONRPC,
		},
		{
			name:     "same HTTP status everywhere",
			status:   http.StatusServiceUnavailable,
			body:     `unavailable`,
			wantKind: KindHTTPOutcall,
		},
		{
			name:     "same garbage everywhere",
			status:   http.StatusOK,
			body:     `not json`,
			wantKind: KindParse,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)
			g := newTestGateway(t, map[provider.ID]*testProvider{
				"a": newTestProvider(t, test.status, test.body),
				"b": newTestProvider(t, test.status, test.body),
			})

			_, err := g.Query(context.Background(), alice, statusCall(ptr(consensus.Equality()), "a", "b"))
			c.Error(err)

			var rpcErr RPCError
			c.True(errors.As(err, &rpcErr))
			c.Equal(test.wantKind, rpcErr.Kind())
			c.Empty(g.reporter.disagreements)
		})
	}
}

func Test_Submit_DefaultsToEquality(t *testing.T) {
	c := require.New(t)
	g := newTestGateway(t, map[provider.ID]*testProvider{
		"a": newTestProvider(t, http.StatusOK, resultX),
		"b": newTestProvider(t, http.StatusOK, resultY),
	})

	call := statusCall(nil, "a", "b")
	call.Method = "broadcast_tx_sync"

	_, err := g.Submit(context.Background(), alice, call)
	var inconsistent *InconsistentResponseError
	c.ErrorAs(err, &inconsistent)
	c.Equal(consensus.Equality(), inconsistent.Strategy)
}

func Test_Request_RawPassthrough(t *testing.T) {
	c := require.New(t)
	a := newTestProvider(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"z":1,"a":[true,null]}}`)
	g := newTestGateway(t, map[provider.ID]*testProvider{"a": a})

	out, err := g.Request(context.Background(), alice, provider.ProvidersTarget("a"), RpcConfig{}, "genesis_chunked", `{"chunk":"0"}`)
	c.NoError(err)
	c.Equal(`{"a":[true,null],"z":1}`, out)
	c.Equal(uint64(1), g.GetMetrics().Outcomes[metrics.MethodOutcome{Method: customMethodLabel, Outcome: metrics.OutcomeAgreed}])

	_, err = g.Request(context.Background(), alice, provider.ProvidersTarget("a"), RpcConfig{}, "genesis_chunked", `"chunk"`)
	var validation *ValidationError
	c.ErrorAs(err, &validation)
	c.Equal(int32(1), a.calls.Load())
}

func Test_RequestCost(t *testing.T) {
	c := require.New(t)
	g := newTestGateway(t, nil)

	health, err := g.RequestCost("health", nil)
	c.NoError(err)
	block, err := g.RequestCost("block", nil)
	c.NoError(err)
	c.Greater(block, health)

	_, err = g.RequestCost("", nil)
	var validation *ValidationError
	c.ErrorAs(err, &validation)

	g.CostModel = cost.NewModel(0, true)
	free, err := g.RequestCost("block", nil)
	c.NoError(err)
	c.Zero(free)
}

func Test_RegisterProvider_UnauthorizedLeavesRegistryUnchanged(t *testing.T) {
	c := require.New(t)
	g := newTestGateway(t, nil)

	err := g.RegisterProvider(alice, provider.RegisterArgs{ID: "mine", URL: "https://mine.example.com"})
	c.ErrorIs(err, provider.ErrUnauthorized)
	c.Empty(g.GetProviders())
	c.Equal(initialBalance, g.balances.Balance(alice))

	m := g.GetMetrics()
	c.Equal(uint64(1), m.ErrNoPermission)
	c.Empty(m.CyclesCharged)

	changed, err := g.Authorize(controller, alice, provider.CapabilityRegisterProvider)
	c.NoError(err)
	c.True(changed)
	c.Equal([]provider.Principal{alice}, g.GetAuthorized(provider.CapabilityRegisterProvider))

	c.NoError(g.RegisterProvider(alice, provider.RegisterArgs{ID: "mine", URL: "https://mine.example.com"}))
	c.Len(g.GetProviders(), 1)

	newURL := "https://other.example.com"
	c.NoError(g.UpdateProvider(alice, provider.UpdateArgs{ID: "mine", URL: &newURL}))

	removed, err := g.UnregisterProvider(alice, "mine")
	c.NoError(err)
	c.True(removed)

	changed, err = g.Deauthorize(alice, alice, provider.CapabilityRegisterProvider)
	c.ErrorIs(err, provider.ErrUnauthorized)
	c.False(changed)
	c.Equal(uint64(2), g.GetMetrics().ErrNoPermission)
}

func Test_Call_RequestIDsAreUnique(t *testing.T) {
	c := require.New(t)

	var (
		mu  sync.Mutex
		ids = make(map[string]struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req, err := jsonrpc.ParseRequest(body)
		if err == nil {
			mu.Lock()
			ids[req.ID.String()] = struct{}{}
			mu.Unlock()
		}
		_, _ = w.Write([]byte(resultX))
	}))
	t.Cleanup(srv.Close)

	g := newTestGateway(t, map[provider.ID]*testProvider{"a": {srv: srv}})
	for range 3 {
		_, err := g.Query(context.Background(), alice, statusCall(nil, "a"))
		c.NoError(err)
	}
	c.Len(ids, 3)
}
