package concurrency

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

const (
	// DefaultInitialBufferSize is the initial capacity of pooled buffers.
	DefaultInitialBufferSize = 64 * 1024

	// DefaultMaxBufferSize is the largest buffer returned to the pool.
	// Larger buffers are left to the garbage collector to avoid memory bloat.
	DefaultMaxBufferSize = 4 * 1024 * 1024
)

// ErrReadLimitExceeded is returned when a reader yields more bytes than allowed.
var ErrReadLimitExceeded = errors.New("read limit exceeded")

// BufferPool manages reusable byte buffers to reduce GC pressure when
// reading provider response bodies.
type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, DefaultInitialBufferSize))
			},
		},
	}
}

func (bp *BufferPool) getBuffer() *bytes.Buffer {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func (bp *BufferPool) putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > DefaultMaxBufferSize {
		return
	}
	bp.pool.Put(buf)
}

// ReadWithBuffer reads r fully using a pooled buffer. It fails with
// ErrReadLimitExceeded if r holds more than limit bytes.
func (bp *BufferPool) ReadWithBuffer(r io.Reader, limit int64) ([]byte, error) {
	buf := bp.getBuffer()
	defer bp.putBuffer(buf)

	// One extra byte tells an exact fit apart from an overflow.
	if _, err := buf.ReadFrom(io.LimitReader(r, limit+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > limit {
		return nil, ErrReadLimitExceeded
	}

	// Return an independent copy: the buffer goes back to the pool.
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
