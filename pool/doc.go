// Package pool
// Author: momentics <momentics@gmail.com>
//
// Shared byte-buffer layer for hioload-mt.
// A Blob is an ordered chain of fixed-size buffers viewed as one logical byte
// range. Ownership is shared through an atomic reference count: Retain adds a
// holder, Release drops one, and the last Release returns the buffers to the
// BlobPool free list. Sub-ranges are exposed without copying via Peek and
// Buffers.
package pool
