// File: pool/blob.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blob is an ordered chain of fixed-size buffers presented as one logical
// byte range, with atomically reference-counted shared ownership.

package pool

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Blob is safe for concurrent readers while a single owner appends. Bytes
// already written are never modified, so sub-range views handed to other
// goroutines stay stable while the tail grows.
type Blob struct {
	refs atomic.Int32
	pool *BlobPool

	mu     sync.RWMutex
	bufs   [][]byte
	length int
}

// Len returns the logical length in bytes.
func (b *Blob) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.length
}

// NumBuffers returns how many fixed-size buffers back the blob.
func (b *Blob) NumBuffers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bufs)
}

// BufferSize returns the size of each backing buffer.
func (b *Blob) BufferSize() int {
	return b.pool.bufferSize
}

// Refs returns the current reference count.
func (b *Blob) Refs() int32 {
	return b.refs.Load()
}

// Append copies p onto the end of the blob, pulling buffers from the pool
// as the last one fills.
func (b *Blob) Append(p []byte) {
	b.mustBeLive()
	b.mu.Lock()
	defer b.mu.Unlock()
	size := b.pool.bufferSize
	for len(p) > 0 {
		used := b.length % size
		if used == 0 && b.length == len(b.bufs)*size {
			b.bufs = append(b.bufs, b.pool.getBuffer())
		}
		last := b.bufs[len(b.bufs)-1]
		n := copy(last[used:], p)
		b.length += n
		p = p[n:]
	}
}

// ReadAt implements io.ReaderAt over the logical byte range.
func (b *Blob) ReadAt(p []byte, off int64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if off < 0 {
		return 0, fmt.Errorf("blob: negative offset %d", off)
	}
	if off >= int64(b.length) {
		return 0, io.EOF
	}
	n := b.copyOut(p, int(off))
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Peek returns n contiguous bytes starting at off. The result aliases the
// backing buffer when the range lies inside one buffer; otherwise it is a
// copy. Callers must not modify it.
func (b *Blob) Peek(off, n int) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.checkRange(off, n)
	if n == 0 {
		return nil
	}
	size := b.pool.bufferSize
	idx, pos := off/size, off%size
	if pos+n <= size {
		return b.bufs[idx][pos : pos+n : pos+n]
	}
	out := make([]byte, n)
	b.copyOut(out, off)
	return out
}

// Bytes returns a copy of n bytes starting at off.
func (b *Blob) Bytes(off, n int) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.checkRange(off, n)
	out := make([]byte, n)
	b.copyOut(out, off)
	return out
}

// Buffers returns zero-copy views covering n bytes starting at off, one
// slice per backing buffer touched. Suitable for net.Buffers.
func (b *Blob) Buffers(off, n int) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.checkRange(off, n)
	size := b.pool.bufferSize
	var out [][]byte
	for n > 0 {
		idx, pos := off/size, off%size
		chunk := size - pos
		if chunk > n {
			chunk = n
		}
		out = append(out, b.bufs[idx][pos:pos+chunk:pos+chunk])
		off += chunk
		n -= chunk
	}
	return out
}

// Retain adds a reference and returns b for chaining.
func (b *Blob) Retain() *Blob {
	if b.refs.Add(1) <= 1 {
		panic("pool: retain of a released blob")
	}
	return b
}

// Release drops a reference. The last release returns the buffers to the
// pool; releasing more often than retained panics.
func (b *Blob) Release() {
	switch n := b.refs.Add(-1); {
	case n > 0:
		return
	case n < 0:
		panic("pool: blob released more times than retained")
	}
	b.mu.Lock()
	bufs := b.bufs
	b.bufs = nil
	b.length = 0
	b.mu.Unlock()
	b.pool.free(bufs)
}

func (b *Blob) mustBeLive() {
	if b.refs.Load() <= 0 {
		panic("pool: use of a released blob")
	}
}

func (b *Blob) checkRange(off, n int) {
	if off < 0 || n < 0 || off+n > b.length {
		panic(fmt.Sprintf("pool: range [%d,%d) outside blob of length %d", off, off+n, b.length))
	}
}

// copyOut copies from logical offset off into p and returns the count.
// Caller holds the read lock.
func (b *Blob) copyOut(p []byte, off int) int {
	size := b.pool.bufferSize
	total := 0
	for total < len(p) && off < b.length {
		idx, pos := off/size, off%size
		end := size
		if rem := b.length - idx*size; rem < end {
			end = rem
		}
		n := copy(p[total:], b.bufs[idx][pos:end])
		total += n
		off += n
	}
	return total
}
