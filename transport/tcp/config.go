// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-mt/pool"
)

// Config sizes a ChannelPool.
type Config struct {
	// MaxThreads is the number of event dispatch shards.
	MaxThreads int
	// MaxConnections caps established channels; 0 means unlimited.
	MaxConnections int
	// BufferSize is the read chunk size and the blob buffer size.
	BufferSize int
	// MinGuaranteed is the contiguous prefix a boundary detector is
	// guaranteed to see. Zero means BufferSize.
	MinGuaranteed int
	// WriteQueueHighWater bounds the bytes queued on one channel; 0 means
	// unbounded.
	WriteQueueHighWater int
	// ReadTimeout reports ChannelReadTimeout after that much idle time; 0
	// disables it.
	ReadTimeout time.Duration
}

// DefaultConfig returns the stock sizing.
func DefaultConfig() Config {
	return Config{
		MaxThreads:          4,
		MaxConnections:      1024,
		BufferSize:          pool.DefaultBufferSize,
		WriteQueueHighWater: 1 << 20,
	}
}

// Validate rejects negative sizes.
func (c Config) Validate() error {
	switch {
	case c.MaxThreads < 0:
		return fmt.Errorf("tcp: max threads must not be negative, got %d", c.MaxThreads)
	case c.MaxConnections < 0:
		return fmt.Errorf("tcp: max connections must not be negative, got %d", c.MaxConnections)
	case c.BufferSize < 0:
		return fmt.Errorf("tcp: buffer size must not be negative, got %d", c.BufferSize)
	case c.MinGuaranteed < 0:
		return fmt.Errorf("tcp: min guaranteed must not be negative, got %d", c.MinGuaranteed)
	case c.WriteQueueHighWater < 0:
		return fmt.Errorf("tcp: write high-water mark must not be negative, got %d", c.WriteQueueHighWater)
	case c.ReadTimeout < 0:
		return fmt.Errorf("tcp: read timeout must not be negative, got %s", c.ReadTimeout)
	}
	return nil
}

// WithDefaults fills zero sizes.
func (c Config) WithDefaults() Config {
	if c.MaxThreads == 0 {
		c.MaxThreads = 1
	}
	if c.BufferSize == 0 {
		c.BufferSize = pool.DefaultBufferSize
	}
	if c.MinGuaranteed == 0 {
		c.MinGuaranteed = c.BufferSize
	}
	return c
}
