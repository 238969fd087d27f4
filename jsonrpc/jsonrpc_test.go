package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequest_MarshalJSON(t *testing.T) {
	testCases := []struct {
		name       string
		rawPayload string
	}{
		{
			name:       "missing params are omitted",
			rawPayload: `{"jsonrpc":"2.0","method":"health","id":0}`,
		},
		{
			name:       "object params are preserved",
			rawPayload: `{"jsonrpc":"2.0","method":"block","params":{"height":"5"},"id":7}`,
		},
		{
			name:       "array params are preserved",
			rawPayload: `{"jsonrpc":"2.0","method":"blockchain","params":["1","10"],"id":"abc"}`,
		},
		{
			name:       "null id is preserved",
			rawPayload: `{"jsonrpc":"2.0","method":"status","id":null}`,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			c := require.New(t)

			req, err := ParseRequest([]byte(testCase.rawPayload))
			c.NoError(err)

			out, err := json.Marshal(req)
			c.NoError(err)
			c.Equal(testCase.rawPayload, string(out))
		})
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	testCases := []struct {
		name       string
		rawPayload string
	}{
		{name: "not json", rawPayload: `{`},
		{name: "wrong version", rawPayload: `{"jsonrpc":"1.0","method":"status","id":1}`},
		{name: "missing method", rawPayload: `{"jsonrpc":"2.0","id":1}`},
		{name: "scalar params", rawPayload: `{"jsonrpc":"2.0","method":"status","params":5,"id":1}`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(testCase.rawPayload))
			require.Error(t, err)
		})
	}
}

func TestParseResponse(t *testing.T) {
	testCases := []struct {
		name       string
		rawPayload string
		wantResult string
		wantError  *ResponseError
		wantErr    bool
	}{
		{
			name:       "result response",
			rawPayload: `{"jsonrpc":"2.0","id":1,"result":{"height":"10"}}`,
			wantResult: `{"height":"10"}`,
		},
		{
			name:       "error response",
			rawPayload: `{"jsonrpc":"2.0","id":1,"error":{"code":-32603,"message":"Internal error"}}`,
			wantError:  &ResponseError{Code: -32603, Message: "Internal error"},
		},
		{
			name:       "neither result nor error",
			rawPayload: `{"jsonrpc":"2.0","id":1}`,
			wantErr:    true,
		},
		{
			name:       "html error page",
			rawPayload: `<html>502 Bad Gateway</html>`,
			wantErr:    true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			c := require.New(t)

			resp, err := ParseResponse([]byte(testCase.rawPayload))
			if testCase.wantErr {
				c.ErrorIs(err, ErrInvalidResponse)
				return
			}
			c.NoError(err)
			c.Equal(testCase.wantError, resp.Error)
			if testCase.wantResult != "" {
				c.JSONEq(testCase.wantResult, string(resp.Result))
			}
		})
	}
}

func TestCanonicalize(t *testing.T) {
	testCases := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{
			name:  "key order does not matter",
			a:     `{"b":1,"a":{"y":true,"x":null}}`,
			b:     `{ "a" : {"x":null,"y":true}, "b" : 1 }`,
			equal: true,
		},
		{
			name:  "array order matters",
			a:     `[1,2]`,
			b:     `[2,1]`,
			equal: false,
		},
		{
			name:  "number literals are kept",
			a:     `{"n":1.0}`,
			b:     `{"n":1}`,
			equal: false,
		},
		{
			name:  "large integers survive",
			a:     `{"n":123456789012345678901234567890}`,
			b:     `{"n":123456789012345678901234567890}`,
			equal: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			c := require.New(t)

			a, err := Canonicalize([]byte(testCase.a))
			c.NoError(err)
			b, err := Canonicalize([]byte(testCase.b))
			c.NoError(err)

			c.Equal(testCase.equal, string(a) == string(b))
		})
	}

	_, err := Canonicalize([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)

	out, err := Canonicalize([]byte(`{"html":"<a>"}`))
	require.NoError(t, err)
	require.Equal(t, `{"html":"<a>"}`, string(out))
}

func TestIDGenerator(t *testing.T) {
	c := require.New(t)

	var g IDGenerator
	c.Equal("0", g.Next().String())
	c.Equal("1", g.Next().String())
	c.Equal("null", ID{}.String())
}
