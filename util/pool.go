package util

import (
	"bytes"
	"sync"
)

// DefaultBufSize is the copy buffer size for bulk reads (32 KiB).
const DefaultBufSize = 32 * 1024

// bufPool provides reusable copy buffers for bulk payload reads
// (clipboard images), reducing GC pressure when fetches repeat.
var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	bufPool.Put(buf)
}

// Accumulator collects chunks read from a stream into one contiguous
// payload.  The zero value is ready to use.
type Accumulator struct {
	buf bytes.Buffer
}

// Write appends p.  It never fails.
func (a *Accumulator) Write(p []byte) (int, error) {
	return a.buf.Write(p)
}

// Len returns the number of bytes collected so far.
func (a *Accumulator) Len() int { return a.buf.Len() }

// Bytes returns the collected payload without copying it.  The slice
// aliases the accumulator, so writing more afterwards may invalidate it.
func (a *Accumulator) Bytes() []byte { return a.buf.Bytes() }
