// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/core/concurrency"
	"github.com/momentics/hioload-mt/internal/logging"
)

// Option configures a ChannelPool.
type Option func(*ChannelPool)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(p *ChannelPool) {
		p.log = logging.Component(l, "tcp")
	}
}

// ChannelPool is a TCP implementation of api.Multiplexer.
type ChannelPool struct {
	cfg    Config
	events api.ChannelEvents
	log    zerolog.Logger

	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	shards   []*concurrency.EventLoop[func()]
	servers  map[int]*server
	channels map[int]*channel
	clocks   map[int]*clock
	nextID   int
}

var _ api.Multiplexer = (*ChannelPool)(nil)

// NewChannelPool creates a stopped pool reporting to events.
func NewChannelPool(cfg Config, events api.ChannelEvents, opts ...Option) (*ChannelPool, error) {
	if events == nil {
		return nil, api.ErrInvalidArgument.WithContext("events", "nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &ChannelPool{
		cfg:      cfg.WithDefaults(),
		events:   events,
		log:      zerolog.Nop(),
		servers:  make(map[int]*server),
		channels: make(map[int]*channel),
		clocks:   make(map[int]*clock),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *ChannelPool) Config() Config { return p.cfg }

// Start launches the dispatch shards. Starting a running pool is a no-op.
func (p *ChannelPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.group = new(errgroup.Group)
	p.shards = make([]*concurrency.EventLoop[func()], p.cfg.MaxThreads)
	for i := range p.shards {
		shard := i
		el := concurrency.NewEventLoop(64, func(fn func()) { fn() }, func(r any) {
			p.log.Error().Int("shard", shard).Interface("panic", r).Msg("event handler panicked")
		})
		p.shards[i] = el
		go el.Run()
	}
	p.running = true
	p.log.Debug().Int("shards", len(p.shards)).Msg("channel pool started")
	return nil
}

// Stop closes every server, channel and clock, waits for the I/O goroutines
// and delivers the resulting ChannelDown events before returning.
func (p *ChannelPool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	servers := p.servers
	channels := make([]*channel, 0, len(p.channels))
	for _, ch := range p.channels {
		channels = append(channels, ch)
	}
	p.servers = make(map[int]*server)
	p.clocks = make(map[int]*clock)
	p.mu.Unlock()

	p.cancel()
	for _, s := range servers {
		s.ln.Close()
	}
	for _, ch := range channels {
		ch.close()
	}
	err := p.group.Wait()
	for _, el := range p.shards {
		el.Stop()
	}
	p.log.Debug().Msg("channel pool stopped")
	return err
}

// NumChannels returns the number of established channels.
func (p *ChannelPool) NumChannels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}

// dispatch runs fn on the shard owning key.
func (p *ChannelPool) dispatch(key int, fn func()) {
	p.mu.Lock()
	shards := p.shards
	p.mu.Unlock()
	if len(shards) == 0 {
		return
	}
	idx := key % len(shards)
	if idx < 0 {
		idx += len(shards)
	}
	if err := shards[idx].Push(fn); err != nil {
		p.log.Debug().Err(err).Msg("event dropped after stop")
	}
}

func (p *ChannelPool) poolState(state api.PoolState, sourceID int, sev api.Severity) {
	p.dispatch(sourceID, func() { p.events.OnPoolState(state, sourceID, sev) })
}

func (p *ChannelPool) channelState(ch *channel, state api.ChannelState) {
	id, alloc := ch.id, ch.allocatorID
	p.dispatch(id, func() { p.events.OnChannelState(id, state, alloc) })
}

// addChannel registers an established connection. It must be called from
// a goroutine owned by p.group.
func (p *ChannelPool) addChannel(conn *net.TCPConn, allocatorID int) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		conn.Close()
		return
	}
	if p.cfg.MaxConnections > 0 && len(p.channels) >= p.cfg.MaxConnections {
		p.mu.Unlock()
		conn.Close()
		p.log.Warn().Int("allocator", allocatorID).Int("limit", p.cfg.MaxConnections).Msg("channel limit reached")
		p.poolState(api.PoolChannelLimit, allocatorID, api.SeverityAlert)
		return
	}
	p.nextID++
	ch := newChannel(p, p.nextID, allocatorID, conn)
	p.channels[ch.id] = ch
	p.mu.Unlock()

	p.log.Debug().Int("channel", ch.id).Int("allocator", allocatorID).
		Str("remote", conn.RemoteAddr().String()).Msg("channel up")
	p.channelState(ch, api.ChannelUp)
	p.group.Go(ch.readLoop)
	p.group.Go(ch.writeLoop)
}

func (p *ChannelPool) removeChannel(id int) {
	p.mu.Lock()
	delete(p.channels, id)
	p.mu.Unlock()
}

func (p *ChannelPool) channel(id int) (*channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return nil, api.ErrNotFound.WithContext("channel", id)
	}
	return ch, nil
}

// runningLocked reports ErrNotRunning; p.mu must be held.
func (p *ChannelPool) runningLocked() error {
	if !p.running {
		return api.ErrNotRunning
	}
	return nil
}

func (p *ChannelPool) String() string {
	return fmt.Sprintf("tcp.ChannelPool{channels=%d}", p.NumChannels())
}
