package consensus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func success(id, payload string) Outcome {
	return Outcome{Provider: "p-" + id, Kind: OutcomeSuccess, Payload: []byte(payload)}
}

func rpcFault(id string, code int, msg string) Outcome {
	return Outcome{Provider: "p-" + id, Kind: OutcomeJSONRPCFault, Code: code, Message: msg}
}

func httpFault(id, class string) Outcome {
	return Outcome{Provider: "p-" + id, Kind: OutcomeHTTPFault, Class: class, Message: "boom"}
}

func notConsulted(id string) Outcome {
	return Outcome{Provider: "p-" + id, Kind: OutcomeNotConsulted}
}

func Test_Reconcile(t *testing.T) {
	tests := []struct {
		name        string
		strategy    Strategy
		outcomes    []Outcome
		wantAgreed  bool
		wantPayload string
	}{
		{
			name:        "equality with a single provider",
			strategy:    Equality(),
			outcomes:    []Outcome{success("a", `{"x":1}`)},
			wantAgreed:  true,
			wantPayload: `{"x":1}`,
		},
		{
			name:        "equality with identical payloads",
			strategy:    Equality(),
			outcomes:    []Outcome{success("a", `1`), success("b", `1`), success("c", `1`)},
			wantAgreed:  true,
			wantPayload: `1`,
		},
		{
			name:     "equality with different payloads",
			strategy: Equality(),
			outcomes: []Outcome{success("a", `1`), success("b", `2`)},
		},
		{
			name:        "equality ignores faulted providers",
			strategy:    Equality(),
			outcomes:    []Outcome{success("a", `1`), httpFault("b", "timeout"), success("c", `1`)},
			wantAgreed:  true,
			wantPayload: `1`,
		},
		{
			name:     "equality with faults only",
			strategy: Equality(),
			outcomes: []Outcome{httpFault("a", "timeout"), httpFault("b", "timeout")},
		},
		{
			name:     "faults only",
			strategy: Threshold(1),
			outcomes: []Outcome{httpFault("a", "timeout"), rpcFault("b", -32603, "internal")},
		},
		{
			name:        "threshold reached with a minority fault",
			strategy:    Threshold(2),
			outcomes:    []Outcome{success("a", `"h"`), httpFault("b", "timeout"), success("c", `"h"`)},
			wantAgreed:  true,
			wantPayload: `"h"`,
		},
		{
			name:     "threshold not reached",
			strategy: Threshold(3),
			outcomes: []Outcome{success("a", `"h"`), success("b", `"h"`), success("c", `"g"`)},
		},
		{
			name:     "tie at the top is a disagreement",
			strategy: Threshold(1),
			outcomes: []Outcome{success("a", `1`), success("b", `2`)},
		},
		{
			name:        "largest group wins over smaller ones",
			strategy:    Threshold(2),
			outcomes:    []Outcome{success("a", `1`), success("b", `2`), success("c", `2`), success("d", `3`)},
			wantAgreed:  true,
			wantPayload: `2`,
		},
		{
			name:        "not consulted providers do not block threshold agreement",
			strategy:    Threshold(2),
			outcomes:    []Outcome{success("a", `1`), success("b", `1`), notConsulted("c")},
			wantAgreed:  true,
			wantPayload: `1`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)

			result := Reconcile(test.outcomes, test.strategy)
			c.Equal(test.wantAgreed, result.Agreed)
			c.Equal(test.outcomes, result.Outcomes)
			if test.wantAgreed {
				c.Equal(test.wantPayload, string(result.Payload))
			} else {
				c.Nil(result.Payload)
			}
		})
	}
}

func Test_Result_ConsistentFault(t *testing.T) {
	c := require.New(t)

	same := Reconcile([]Outcome{rpcFault("a", -32603, "tx not found"), rpcFault("b", -32603, "tx not found")}, Equality())
	fault, ok := same.ConsistentFault()
	c.True(ok)
	c.Equal(-32603, fault.Code)

	mixed := Reconcile([]Outcome{rpcFault("a", -32603, "tx not found"), httpFault("b", "timeout")}, Equality())
	_, ok = mixed.ConsistentFault()
	c.False(ok)

	partial := Reconcile([]Outcome{rpcFault("a", -32603, "x"), notConsulted("b")}, Threshold(2))
	_, ok = partial.ConsistentFault()
	c.False(ok)

	agreed := Reconcile([]Outcome{success("a", `1`)}, Equality())
	_, ok = agreed.ConsistentFault()
	c.False(ok)
}

func Test_Decided(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		received []Outcome
		pending  int
		want     bool
	}{
		{
			name:     "nothing pending",
			strategy: Equality(),
			received: []Outcome{success("a", `1`)},
			pending:  0,
			want:     true,
		},
		{
			name:     "equality keeps waiting while outcomes match",
			strategy: Equality(),
			received: []Outcome{success("a", `1`), success("b", `1`)},
			pending:  1,
		},
		{
			name:     "equality settles on the first mismatch",
			strategy: Equality(),
			received: []Outcome{success("a", `1`), success("b", `2`)},
			pending:  2,
			want:     true,
		},
		{
			name:     "equality keeps waiting after a fault",
			strategy: Equality(),
			received: []Outcome{success("a", `1`), httpFault("b", "timeout")},
			pending:  1,
		},
		{
			name:     "equality keeps waiting on identical faults",
			strategy: Equality(),
			received: []Outcome{rpcFault("a", 1, "x"), rpcFault("b", 1, "x")},
			pending:  1,
		},
		{
			name:     "threshold settles once reached",
			strategy: Threshold(2),
			received: []Outcome{success("a", `1`), success("b", `1`)},
			pending:  3,
			want:     true,
		},
		{
			name:     "threshold settles once unreachable",
			strategy: Threshold(3),
			received: []Outcome{success("a", `1`), httpFault("b", "timeout"), success("c", `2`)},
			pending:  1,
			want:     true,
		},
		{
			name:     "threshold keeps waiting while reachable",
			strategy: Threshold(3),
			received: []Outcome{success("a", `1`), httpFault("b", "timeout")},
			pending:  2,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, Decided(test.received, test.pending, test.strategy))
		})
	}
}

func Test_Strategy(t *testing.T) {
	c := require.New(t)

	c.NoError(Threshold(2).Validate(3))
	c.ErrorIs(Threshold(0).Validate(3), ErrInvalidStrategy)
	c.ErrorIs(Threshold(4).Validate(3), ErrInvalidStrategy)
	c.ErrorIs(Strategy{Kind: "majority"}.Validate(3), ErrInvalidStrategy)

	s, err := Resolve(nil, 1)
	c.NoError(err)
	c.Equal(Equality(), s)

	_, err = Resolve(nil, 2)
	c.ErrorIs(err, ErrStrategyRequired)

	s, err = ResolveSubmit(nil, 3)
	c.NoError(err)
	c.Equal(Equality(), s)

	explicit := Threshold(2)
	s, err = ResolveSubmit(&explicit, 3)
	c.NoError(err)
	c.Equal(explicit, s)

	for raw, want := range map[string]Strategy{
		`"equality"`:                   Equality(),
		`{"kind":"threshold","min":2}`: Threshold(2),
		`{"threshold":3}`:              Threshold(3),
	} {
		var got Strategy
		c.NoError(json.Unmarshal([]byte(raw), &got))
		c.Equal(want, got)
	}
}
