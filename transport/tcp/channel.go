// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/core/concurrency"
	"github.com/momentics/hioload-mt/pool"
)

type writeReq struct {
	blob   *pool.Blob
	offset int
	length int
}

// channel is one established connection.
type channel struct {
	id          int
	allocatorID int
	conn        *net.TCPConn
	p           *ChannelPool

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex // guards closed against enqueue
	closed   bool
	readShut atomic.Bool
	once     sync.Once
	wq       *concurrency.Queue[writeReq]
	pending  atomic.Int64
}

func newChannel(p *ChannelPool, id, allocatorID int, conn *net.TCPConn) *channel {
	ctx, cancel := context.WithCancel(p.ctx)
	return &channel{
		id:          id,
		allocatorID: allocatorID,
		conn:        conn,
		p:           p,
		ctx:         ctx,
		cancel:      cancel,
		wq:          concurrency.NewQueue[writeReq](),
	}
}

// readLoop delivers physical reads until the connection fails.
func (c *channel) readLoop() error {
	buf := make([]byte, c.p.cfg.BufferSize)
	timeout := c.p.cfg.ReadTimeout
	for {
		if timeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(timeout))
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			id := c.id
			c.p.dispatch(id, func() { c.p.events.OnData(id, data) })
		}
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.p.channelState(c, api.ChannelReadTimeout)
			continue
		}
		if c.readShut.Load() && errors.Is(err, io.EOF) {
			// Receive side shut down locally; the channel stays writable.
			return nil
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			c.p.log.Debug().Err(err).Int("channel", c.id).Msg("read failed")
		}
		c.close()
		return nil
	}
}

// writeLoop drains the send queue with vectored writes.
func (c *channel) writeLoop() error {
	for {
		req, err := c.wq.PopFront(c.ctx)
		if err != nil {
			return nil
		}
		bufs := net.Buffers(req.blob.Buffers(req.offset, req.length))
		_, werr := bufs.WriteTo(c.conn)
		req.blob.Release()
		c.pending.Add(-int64(req.length))
		if werr != nil {
			c.p.log.Debug().Err(werr).Int("channel", c.id).Msg("write failed")
			c.close()
			return nil
		}
	}
}

// enqueue queues a write, retaining b.
func (c *channel) enqueue(b *pool.Blob, offset, length int) error {
	hw := int64(c.p.cfg.WriteQueueHighWater)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return api.ErrChannelClosed.WithContext("channel", c.id)
	}
	if hw > 0 && c.pending.Load()+int64(length) > hw {
		c.p.channelState(c, api.ChannelSendBufferFull)
		return api.ErrResourceExhausted.
			WithContext("channel", c.id).
			WithContext("pending", c.pending.Load())
	}
	c.pending.Add(int64(length))
	c.wq.PushBack(writeReq{blob: b.Retain(), offset: offset, length: length})
	return nil
}

// close tears the channel down once and reports ChannelDown.
func (c *channel) close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.p.removeChannel(c.id)
		c.cancel()
		c.conn.Close()
		for _, req := range c.wq.RemoveAll() {
			req.blob.Release()
			c.pending.Add(-int64(req.length))
		}
		c.p.log.Debug().Int("channel", c.id).Msg("channel down")
		c.p.channelState(c, api.ChannelDown)
	})
}

// Write queues length bytes of b at offset on channelID.
func (p *ChannelPool) Write(channelID int, b *pool.Blob, offset, length int) error {
	if b == nil || offset < 0 || length < 0 || offset+length > b.Len() {
		return api.ErrInvalidArgument.WithContext("channel", channelID)
	}
	ch, err := p.channel(channelID)
	if err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	return ch.enqueue(b, offset, length)
}

// Shutdown tears down one or both directions of a channel. ShutdownBoth
// closes it outright.
func (p *ChannelPool) Shutdown(channelID int, mode api.ShutdownMode) error {
	ch, err := p.channel(channelID)
	if err != nil {
		return err
	}
	switch mode {
	case api.ShutdownReceive:
		ch.readShut.Store(true)
		return ch.conn.CloseRead()
	case api.ShutdownSend:
		return ch.conn.CloseWrite()
	case api.ShutdownBoth:
		ch.close()
		return nil
	default:
		return api.ErrInvalidArgument.WithContext("mode", int(mode))
	}
}
