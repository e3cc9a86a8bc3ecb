// Package pool implements a fixed-size byte-buffer pool for the relay's UDP
// receive path (internal/relay): reusing a fixed-size []byte across
// ReadFromUDP calls avoids an allocation for every inbound datagram, on
// both the downstream and upstream sockets.
package pool

import "sync"

// BufferPool hands out *[]byte buffers of a fixed size, backed by
// sync.Pool. The zero value is not usable; construct with New.
type BufferPool struct {
	size     int
	internal sync.Pool
}

// New creates a BufferPool whose buffers are size bytes long.
func New(size int) *BufferPool {
	return &BufferPool{
		size: size,
		internal: sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get retrieves a buffer from the pool, allocating a fresh one if the pool
// is empty.
func (p *BufferPool) Get() *[]byte {
	return p.internal.Get().(*[]byte)
}

// Put returns a buffer to the pool for reuse.
func (p *BufferPool) Put(buf *[]byte) {
	p.internal.Put(buf)
}
