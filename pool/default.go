package pool

import "sync"

var (
	defaultOnce sync.Once
	defaultPool *BlobPool
)

// Default returns a process-wide BlobPool of DefaultBufferSize buffers so
// components that are not handed a pool still share one free list.
func Default() *BlobPool {
	defaultOnce.Do(func() {
		defaultPool = NewBlobPool(DefaultBufferSize)
	})
	return defaultPool
}
