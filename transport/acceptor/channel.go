// File: transport/acceptor/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package acceptor

import (
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mt/api"
)

// Channel is a bidirectional stream allocated by a TimedAcceptor. Reads and
// writes may run concurrently with each other; concurrent reads (or writes)
// on one channel interleave unpredictably.
type Channel struct {
	conn    net.Conn
	invalid atomic.Bool
}

// Read reads up to len(p) bytes, returning as soon as any arrive.
func (c *Channel) Read(p []byte) (int, error) {
	if c.invalid.Load() {
		return 0, api.ErrInvalidated
	}
	n, err := c.conn.Read(p)
	return n, c.mapErr(err)
}

// ReadFull reads exactly len(p) bytes. On failure n reports how many
// arrived first.
func (c *Channel) ReadFull(p []byte) (int, error) {
	if c.invalid.Load() {
		return 0, api.ErrInvalidated
	}
	n, err := io.ReadFull(c.conn, p)
	return n, c.mapErr(err)
}

// Write writes all of p.
func (c *Channel) Write(p []byte) (int, error) {
	if c.invalid.Load() {
		return 0, api.ErrInvalidated
	}
	n, err := c.conn.Write(p)
	return n, c.mapErr(err)
}

// Writev writes bufs in order with a single vectored write where the
// platform supports it.
func (c *Channel) Writev(bufs [][]byte) (int64, error) {
	if c.invalid.Load() {
		return 0, api.ErrInvalidated
	}
	nb := net.Buffers(bufs)
	n, err := nb.WriteTo(c.conn)
	return n, c.mapErr(err)
}

// Invalidate fails every subsequent operation with ErrInvalidated and wakes
// operations in progress. The connection stays open until deallocated.
func (c *Channel) Invalidate() {
	c.invalid.Store(true)
	c.conn.SetDeadline(wakeDeadline)
}

// IsInvalid reports whether Invalidate has been called.
func (c *Channel) IsInvalid() bool { return c.invalid.Load() }

// LocalAddr returns the local endpoint.
func (c *Channel) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the peer endpoint.
func (c *Channel) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Channel) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case c.invalid.Load():
		return api.ErrInvalidated
	case errors.Is(err, os.ErrDeadlineExceeded):
		return api.ErrTimeout
	default:
		return err
	}
}

// TimedChannel adds absolute-deadline variants of the blocking operations.
// A deadline that passes yields ErrTimeout with a partial count.
type TimedChannel struct {
	*Channel
}

// TimedRead is Read bounded by deadline.
func (c *TimedChannel) TimedRead(p []byte, deadline time.Time) (int, error) {
	c.conn.SetReadDeadline(deadline)
	defer c.clearRead()
	return c.Read(p)
}

// TimedReadFull is ReadFull bounded by deadline.
func (c *TimedChannel) TimedReadFull(p []byte, deadline time.Time) (int, error) {
	c.conn.SetReadDeadline(deadline)
	defer c.clearRead()
	return c.ReadFull(p)
}

// TimedWrite is Write bounded by deadline.
func (c *TimedChannel) TimedWrite(p []byte, deadline time.Time) (int, error) {
	c.conn.SetWriteDeadline(deadline)
	defer c.clearWrite()
	return c.Write(p)
}

func (c *TimedChannel) clearRead() {
	if !c.invalid.Load() {
		c.conn.SetReadDeadline(time.Time{})
	}
}

func (c *TimedChannel) clearWrite() {
	if !c.invalid.Load() {
		c.conn.SetWriteDeadline(time.Time{})
	}
}
