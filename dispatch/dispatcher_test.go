package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"
	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/stretchr/testify/require"

	"github.com/poroburu/ic-cosmos/consensus"
	nethttp "github.com/poroburu/ic-cosmos/network/http"
	"github.com/poroburu/ic-cosmos/provider"
)

type fakeResponse struct {
	status int
	body   string
	err    error
	// block holds the call until its context is done.
	block bool
}

type fakeOutcaller struct {
	responses map[string]fakeResponse
}

func (f *fakeOutcaller) Post(ctx context.Context, _ polylog.Logger, req nethttp.Request) (nethttp.Response, error) {
	r := f.responses[req.URL]
	if r.block {
		<-ctx.Done()
		return nethttp.Response{}, &nethttp.OutcallError{Class: nethttp.RejectionTransport, Err: ctx.Err()}
	}
	if r.err != nil {
		return nethttp.Response{}, r.err
	}
	return nethttp.Response{StatusCode: r.status, Body: []byte(r.body)}, nil
}

type fakeRecorder struct {
	mu            sync.Mutex
	requests      int
	hosts         map[string]int
	responses     map[int]int
	outcallErrors map[nethttp.RejectionClass]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		hosts:         make(map[string]int),
		responses:     make(map[int]int),
		outcallErrors: make(map[nethttp.RejectionClass]int),
	}
}

func (r *fakeRecorder) ObserveRequest(_, host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
	r.hosts[host]++
}

func (r *fakeRecorder) ObserveResponse(_, _ string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[status]++
}

func (r *fakeRecorder) ObserveOutcallError(_, _ string, class nethttp.RejectionClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcallErrors[class]++
}

func providers(names ...string) []provider.Provider {
	var out []provider.Provider
	for _, n := range names {
		out = append(out, provider.Provider{ID: provider.ID(n), URL: "https://" + n + ".example.com"})
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func endpointURL(name string) string {
	return "https://" + name + ".example.com"
}

func Test_Dispatch_ClassifiesEveryProviderInOrder(t *testing.T) {
	c := require.New(t)

	client := &fakeOutcaller{responses: map[string]fakeResponse{
		endpointURL("ok"):       {status: 200, body: `{"jsonrpc":"2.0","id":1,"result":{"b":2,"a":1}}`},
		endpointURL("rpcerr"):   {status: 200, body: `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"Internal error"}}`},
		endpointURL("rpc500"):   {status: 500, body: `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"height not available"}}`},
		endpointURL("html502"):  {status: 502, body: `<html>Bad Gateway</html>`},
		endpointURL("garbage"):  {status: 200, body: `not json`},
		endpointURL("rejected"): {err: &nethttp.OutcallError{Class: nethttp.RejectionHostNotAllowed, Err: errors.New("nope")}},
	}}
	recorder := newFakeRecorder()
	d := NewDispatcher(polyzero.NewLogger(), client, recorder, time.Second)

	targets := providers("ok", "rpcerr", "rpc500", "html502", "garbage", "rejected")
	outcomes := d.Dispatch(context.Background(), targets, Request{
		Method: "status",
		Body:   []byte(`{"jsonrpc":"2.0","id":1,"method":"status"}`),
	})

	c.Len(outcomes, len(targets))
	for i, o := range outcomes {
		c.Equal(targets[i].ID, o.Provider)
	}

	c.Equal(consensus.OutcomeSuccess, outcomes[0].Kind)
	c.Equal(`{"a":1,"b":2}`, string(outcomes[0].Payload))

	c.Equal(consensus.OutcomeJSONRPCFault, outcomes[1].Kind)
	c.Equal(-32603, outcomes[1].Code)

	c.Equal(consensus.OutcomeJSONRPCFault, outcomes[2].Kind)
	c.Equal(-32000, outcomes[2].Code)

	c.Equal(consensus.OutcomeHTTPFault, outcomes[3].Kind)
	c.Equal(string(nethttp.RejectionHTTPStatus), outcomes[3].Class)
	c.Equal(502, outcomes[3].Code)

	c.Equal(consensus.OutcomeParseFault, outcomes[4].Kind)

	c.Equal(consensus.OutcomeHTTPFault, outcomes[5].Kind)
	c.Equal(string(nethttp.RejectionHostNotAllowed), outcomes[5].Class)

	c.Equal(6, recorder.requests)
	c.Equal(1, recorder.outcallErrors[nethttp.RejectionHostNotAllowed])
	c.Equal(3, recorder.responses[200])
}

func Test_Dispatch_EarlyExitMarksOutstandingCallsNotConsulted(t *testing.T) {
	c := require.New(t)

	result := `{"jsonrpc":"2.0","id":1,"result":"0xabc"}`
	client := &fakeOutcaller{responses: map[string]fakeResponse{
		endpointURL("a"):    {status: 200, body: result},
		endpointURL("slow"): {block: true},
		endpointURL("b"):    {status: 200, body: result},
	}}
	d := NewDispatcher(polyzero.NewLogger(), client, newFakeRecorder(), time.Minute)

	start := time.Now()
	outcomes := d.Dispatch(context.Background(), providers("a", "slow", "b"), Request{
		Method:   "status",
		Strategy: ptr(consensus.Threshold(2)),
	})
	c.Less(time.Since(start), 10*time.Second)

	c.Equal(consensus.OutcomeSuccess, outcomes[0].Kind)
	c.Equal(consensus.OutcomeNotConsulted, outcomes[1].Kind)
	c.Equal(consensus.OutcomeSuccess, outcomes[2].Kind)

	reconciled := consensus.Reconcile(outcomes, consensus.Threshold(2))
	c.True(reconciled.Agreed)
	consulted, notConsulted := reconciled.Counts()
	c.Equal(2, consulted)
	c.Equal(1, notConsulted)
}

func Test_Dispatch_EqualityStopsOnFirstMismatch(t *testing.T) {
	c := require.New(t)

	client := &fakeOutcaller{responses: map[string]fakeResponse{
		endpointURL("a"):    {status: 200, body: `{"jsonrpc":"2.0","id":1,"result":"0xaaa"}`},
		endpointURL("b"):    {status: 200, body: `{"jsonrpc":"2.0","id":1,"result":"0xbbb"}`},
		endpointURL("slow"): {block: true},
	}}
	d := NewDispatcher(polyzero.NewLogger(), client, newFakeRecorder(), time.Minute)

	start := time.Now()
	outcomes := d.Dispatch(context.Background(), providers("a", "b", "slow"), Request{
		Method:   "status",
		Strategy: ptr(consensus.Equality()),
	})
	c.Less(time.Since(start), 10*time.Second)

	c.Len(outcomes, 3)
	c.Equal(consensus.OutcomeSuccess, outcomes[0].Kind)
	c.Equal(`"0xaaa"`, string(outcomes[0].Payload))
	c.Equal(consensus.OutcomeSuccess, outcomes[1].Kind)
	c.Equal(`"0xbbb"`, string(outcomes[1].Payload))
	c.Equal(consensus.OutcomeNotConsulted, outcomes[2].Kind)
	c.Equal(provider.ID("slow"), outcomes[2].Provider)

	reconciled := consensus.Reconcile(outcomes, consensus.Equality())
	c.False(reconciled.Agreed)
	c.Equal(outcomes, reconciled.Outcomes)
}

func Test_collectBuffered_KeepsCompletedOutcomes(t *testing.T) {
	c := require.New(t)

	results := make(chan indexedOutcome, 3)
	results <- indexedOutcome{index: 2, outcome: consensus.Outcome{Provider: "c", Kind: consensus.OutcomeSuccess, Payload: []byte(`1`)}}

	outcomes := make([]consensus.Outcome, 3)
	done := []bool{true, false, false}

	c.Equal(1, collectBuffered(results, outcomes, done))
	c.Equal([]bool{true, false, true}, done)
	c.Equal(consensus.OutcomeSuccess, outcomes[2].Kind)
	c.Empty(outcomes[1].Kind)

	// Nothing left: returns without blocking.
	c.Zero(collectBuffered(results, outcomes, done))
}

func Test_Dispatch_HostLabels(t *testing.T) {
	tests := []struct {
		name      string
		trust     provider.TrustClass
		wantHosts map[string]int
	}{
		{
			name:      "registered providers are labeled by host",
			trust:     provider.TrustUserRegistered,
			wantHosts: map[string]int{"x1.example.com": 1, "x2.example.com": 1},
		},
		{
			name:      "custom providers share one label",
			trust:     provider.TrustCustom,
			wantHosts: map[string]int{provider.CustomHostLabel: 2},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)

			client := &fakeOutcaller{responses: map[string]fakeResponse{
				endpointURL("x1"): {status: 200, body: `{"jsonrpc":"2.0","id":1,"result":"0x1"}`},
				endpointURL("x2"): {status: 200, body: `{"jsonrpc":"2.0","id":1,"result":"0x1"}`},
			}}
			recorder := newFakeRecorder()
			d := NewDispatcher(polyzero.NewLogger(), client, recorder, time.Second)

			targets := providers("x1", "x2")
			for i := range targets {
				targets[i].Trust = test.trust
			}
			outcomes := d.Dispatch(context.Background(), targets, Request{Method: "status"})

			c.Equal(test.wantHosts, recorder.hosts)
			c.Equal("x1.example.com", outcomes[0].Host)
			c.Equal("x2.example.com", outcomes[1].Host)
		})
	}
}

func Test_Dispatch_PerCallTimeout(t *testing.T) {
	c := require.New(t)

	client := &fakeOutcaller{responses: map[string]fakeResponse{
		endpointURL("slow"): {block: true},
	}}
	recorder := newFakeRecorder()
	d := NewDispatcher(polyzero.NewLogger(), client, recorder, time.Minute)

	outcomes := d.Dispatch(context.Background(), providers("slow"), Request{
		Method:   "block",
		Strategy: ptr(consensus.Equality()),
		Timeout:  20 * time.Millisecond,
	})

	c.Len(outcomes, 1)
	c.Equal(consensus.OutcomeHTTPFault, outcomes[0].Kind)
	c.Equal(string(nethttp.RejectionTimeout), outcomes[0].Class)
	c.Equal(1, recorder.outcallErrors[nethttp.RejectionTimeout])
}

func Test_Dispatch_EqualityWaitsForEveryProvider(t *testing.T) {
	c := require.New(t)

	body := `{"jsonrpc":"2.0","id":1,"result":{"height":"7"}}`
	client := &fakeOutcaller{responses: map[string]fakeResponse{
		endpointURL("a"): {status: 200, body: body},
		endpointURL("b"): {status: 200, body: `{"result":{"height":"7"},"id":9,"jsonrpc":"2.0"}`},
		endpointURL("c"): {status: 200, body: body},
	}}
	d := NewDispatcher(polyzero.NewLogger(), client, newFakeRecorder(), time.Second)

	outcomes := d.Dispatch(context.Background(), providers("a", "b", "c"), Request{
		Method:   "status",
		Strategy: ptr(consensus.Equality()),
	})

	for _, o := range outcomes {
		c.Equal(consensus.OutcomeSuccess, o.Kind)
	}
	result := consensus.Reconcile(outcomes, consensus.Equality())
	c.True(result.Agreed)
	c.Equal(`{"height":"7"}`, string(result.Payload))
}
