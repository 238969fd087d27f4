package concurrency

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferPoolGetBuffer(t *testing.T) {
	bp := NewBufferPool()

	t.Run("get buffer returns clean buffer", func(t *testing.T) {
		buf := bp.getBuffer()
		require.NotNil(t, buf)
		require.Equal(t, 0, buf.Len())
		require.GreaterOrEqual(t, buf.Cap(), DefaultInitialBufferSize)
	})

	t.Run("reused buffer is reset", func(t *testing.T) {
		buf := bp.getBuffer()
		buf.WriteString("test data")
		bp.putBuffer(buf)

		buf2 := bp.getBuffer()
		require.Equal(t, 0, buf2.Len())
	})
}

func TestBufferPoolReadWithBuffer(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		limit   int64
		wantErr error
	}{
		{name: "empty reader", input: "", limit: 10},
		{name: "under the limit", input: "hello", limit: 10},
		{name: "exactly at the limit", input: strings.Repeat("a", 10), limit: 10},
		{name: "over the limit", input: strings.Repeat("a", 11), limit: 10, wantErr: ErrReadLimitExceeded},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			c := require.New(t)
			bp := NewBufferPool()

			out, err := bp.ReadWithBuffer(strings.NewReader(testCase.input), testCase.limit)
			if testCase.wantErr != nil {
				c.ErrorIs(err, testCase.wantErr)
				return
			}
			c.NoError(err)
			c.Equal(testCase.input, string(out))
		})
	}
}

func TestBufferPoolReadWithBufferReturnsIndependentCopies(t *testing.T) {
	c := require.New(t)
	bp := NewBufferPool()

	first, err := bp.ReadWithBuffer(strings.NewReader("first"), 100)
	c.NoError(err)
	second, err := bp.ReadWithBuffer(strings.NewReader("second"), 100)
	c.NoError(err)

	c.Equal("first", string(first))
	c.Equal("second", string(second))
}

func TestBufferPoolConcurrentReads(t *testing.T) {
	bp := NewBufferPool()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte('a' + i%26)}, 1000+i)
			out, err := bp.ReadWithBuffer(bytes.NewReader(payload), 4096)
			require.NoError(t, err)
			require.Equal(t, payload, out)
		}()
	}
	wg.Wait()
}
