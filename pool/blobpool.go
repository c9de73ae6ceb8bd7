// File: pool/blobpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync/atomic"

	"github.com/momentics/hioload-mt/core/concurrency"
)

// DefaultBufferSize is used when a pool is created with a non-positive size.
const DefaultBufferSize = 4096

const defaultFreeListCapacity = 4096

// Stats aggregates blob and buffer accounting for observability and tests.
type Stats struct {
	BlobsCreated    int64
	BlobsFreed      int64
	BuffersAlloc    int64 // fresh allocations
	BuffersReused   int64 // served from the free list
	BuffersReturned int64
	BuffersInUse    int64
}

// BlobPool hands out Blobs whose buffers all share one size. Freed buffers
// go onto a bounded lock-free free list; overflow is left to the GC.
type BlobPool struct {
	bufferSize int
	freeList   *concurrency.LockFreeQueue[[]byte]

	blobsCreated    atomic.Int64
	blobsFreed      atomic.Int64
	buffersAlloc    atomic.Int64
	buffersReused   atomic.Int64
	buffersReturned atomic.Int64
}

// NewBlobPool creates a pool of bufferSize-byte buffers.
func NewBlobPool(bufferSize int) *BlobPool {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &BlobPool{
		bufferSize: bufferSize,
		freeList:   concurrency.NewLockFreeQueue[[]byte](defaultFreeListCapacity),
	}
}

// BufferSize returns the fixed buffer size of the pool.
func (p *BlobPool) BufferSize() int {
	return p.bufferSize
}

// NewBlob returns an empty blob holding one reference.
func (p *BlobPool) NewBlob() *Blob {
	b := &Blob{pool: p}
	b.refs.Store(1)
	p.blobsCreated.Add(1)
	return b
}

// FromBytes returns a new blob holding a copy of data.
func (p *BlobPool) FromBytes(data []byte) *Blob {
	b := p.NewBlob()
	b.Append(data)
	return b
}

// Stats returns a point-in-time snapshot of the counters.
func (p *BlobPool) Stats() Stats {
	alloc := p.buffersAlloc.Load()
	reused := p.buffersReused.Load()
	returned := p.buffersReturned.Load()
	return Stats{
		BlobsCreated:    p.blobsCreated.Load(),
		BlobsFreed:      p.blobsFreed.Load(),
		BuffersAlloc:    alloc,
		BuffersReused:   reused,
		BuffersReturned: returned,
		BuffersInUse:    alloc + reused - returned,
	}
}

func (p *BlobPool) getBuffer() []byte {
	if buf, ok := p.freeList.Dequeue(); ok {
		p.buffersReused.Add(1)
		return buf
	}
	p.buffersAlloc.Add(1)
	return make([]byte, p.bufferSize)
}

func (p *BlobPool) free(bufs [][]byte) {
	p.blobsFreed.Add(1)
	for _, buf := range bufs {
		p.buffersReturned.Add(1)
		// Full free list: drop to GC.
		_ = p.freeList.Enqueue(buf)
	}
}
