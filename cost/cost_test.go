package cost

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v uint64) *uint64 { return &v }

func Test_Model_Cycles(t *testing.T) {
	m := NewModel(0, false)

	// A 9038 byte signed transaction with a 1000 byte response cap.
	require.Equal(t, uint64(321_476_800), m.Cycles(9038, 1000))
}

func Test_Model_Price(t *testing.T) {
	tests := []struct {
		name          string
		model         Model
		method        string
		providers     int
		requestBytes  int
		estimate      *uint64
		wantCycles    uint64
		wantPerCall   uint64
		wantClass     MethodClass
		wantRespBytes uint64
	}{
		{
			name:          "known method without an estimate uses the maximum response size",
			model:         NewModel(DefaultNodesInSubnet, false),
			method:        "health",
			providers:     1,
			requestBytes:  100,
			wantCycles:    57_215_254_400,
			wantPerCall:   57_215_254_400,
			wantClass:     ClassMinimal,
			wantRespBytes: MaxResponseBytes,
		},
		{
			name:          "caller estimate scales with provider count",
			model:         NewModel(DefaultNodesInSubnet, false),
			method:        "block",
			providers:     2,
			requestBytes:  100,
			estimate:      ptr(2000),
			wantCycles:    2 * 282_825_600,
			wantPerCall:   282_825_600,
			wantClass:     ClassBlock,
			wantRespBytes: 2000 + HeaderSizeLimit,
		},
		{
			name:          "unknown method uses the maximum response size",
			model:         NewModel(DefaultNodesInSubnet, false),
			method:        "custom_method",
			providers:     1,
			wantCycles:    57_213_894_400,
			wantPerCall:   57_213_894_400,
			wantClass:     ClassUnknown,
			wantRespBytes: MaxResponseBytes,
		},
		{
			name:          "estimate above the maximum is capped",
			model:         NewModel(DefaultNodesInSubnet, false),
			method:        "custom_method",
			providers:     1,
			estimate:      ptr(10 * MaxResponseBytes),
			wantCycles:    57_213_894_400,
			wantPerCall:   57_213_894_400,
			wantClass:     ClassUnknown,
			wantRespBytes: MaxResponseBytes,
		},
		{
			name:          "demo mode is free",
			model:         NewModel(DefaultNodesInSubnet, true),
			method:        "block",
			providers:     3,
			requestBytes:  50,
			wantCycles:    0,
			wantPerCall:   0,
			wantClass:     ClassBlock,
			wantRespBytes: MaxResponseBytes,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)

			record := test.model.Price(test.method, test.providers, test.requestBytes, test.estimate)
			c.Equal(test.wantCycles, record.EstimatedCycles)
			c.Equal(test.wantPerCall, record.PerCallCycles)
			c.Equal(test.wantClass, record.MethodClass)
			c.Equal(test.wantRespBytes, record.MaxResponseBytes)
			c.Equal(test.providers, record.ProviderCount)
		})
	}
}

func Test_ResponseBytes(t *testing.T) {
	tests := []struct {
		name     string
		estimate *uint64
		want     uint64
	}{
		{
			name: "no estimate allows the largest response",
			want: MaxResponseBytes,
		},
		{
			name:     "estimate gets the header allowance",
			estimate: ptr(128),
			want:     128 + HeaderSizeLimit,
		},
		{
			name:     "estimate near the maximum is capped",
			estimate: ptr(MaxResponseBytes - 1),
			want:     MaxResponseBytes,
		},
		{
			name:     "estimate above the maximum is capped",
			estimate: ptr(3 * MaxResponseBytes),
			want:     MaxResponseBytes,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, ResponseBytes(test.estimate))
		})
	}
}

func Test_Model_FanOutNeverCheaperThanSingleCall(t *testing.T) {
	c := require.New(t)
	m := NewModel(0, false)

	single := m.RequestCost("block", 120, ptr(2000))
	record := m.Price("block", 2, 120, ptr(2000))

	c.GreaterOrEqual(record.EstimatedCycles, single)
	c.Equal(2*single, record.EstimatedCycles)
}

func Test_Record_Refund(t *testing.T) {
	c := require.New(t)

	record := NewModel(0, false).Price("status", 4, 80, nil)

	c.Zero(record.Refund(0))
	c.Equal(record.PerCallCycles, record.Refund(1))
	c.Equal(record.EstimatedCycles, record.Refund(4))
	c.Equal(record.EstimatedCycles, record.Refund(10))
}
