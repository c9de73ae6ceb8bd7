// File: transport/queuepool/queuepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel queue pool: couples a channel multiplexer to an incoming and an
// outgoing message queue.

package queuepool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/core/concurrency"
	"github.com/momentics/hioload-mt/core/message"
	"github.com/momentics/hioload-mt/core/protocol"
	"github.com/momentics/hioload-mt/internal/logging"
	"github.com/momentics/hioload-mt/pool"
	"github.com/momentics/hioload-mt/transport/tcp"
)

// Counter names reported by Stats.
const (
	MetricMessagesIn        = "messages_in"
	MetricMessagesOut       = "messages_out"
	MetricMessagesDiscarded = "messages_discarded"
	MetricBytesIn           = "bytes_in"
	MetricBytesOut          = "bytes_out"
	MetricDetectorCalls     = "detector_calls"
	MetricProtocolErrors    = "protocol_errors"
	MetricWriteErrors       = "write_errors"
	MetricIncomingLen       = "incoming_len"
	MetricOutgoingLen       = "outgoing_len"
)

// DefaultStopTimeout bounds Stop when no WithStopTimeout is given.
const DefaultStopTimeout = 5 * time.Second

// Option configures a ChannelQueuePool.
type Option func(*ChannelQueuePool)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(p *ChannelQueuePool) { p.log = l }
}

// WithMultiplexer replaces the TCP channel pool with the multiplexer built
// by newMux, which must report to the events it is given.
func WithMultiplexer(newMux func(api.ChannelEvents) api.Multiplexer) Option {
	return func(p *ChannelQueuePool) { p.newMux = newMux }
}

// WithMode selects the detector invocation protocol.
func WithMode(m protocol.Mode) Option {
	return func(p *ChannelQueuePool) { p.mode = m }
}

// WithMetrics records counters into mr instead of a private registry.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(p *ChannelQueuePool) { p.metrics = mr }
}

// WithStopTimeout bounds how long Stop waits for the workers.
func WithStopTimeout(d time.Duration) Option {
	return func(p *ChannelQueuePool) { p.stopTimeout = d }
}

// WithBlobPool sets the pool accumulation buffers are drawn from.
func WithBlobPool(bp *pool.BlobPool) Option {
	return func(p *ChannelQueuePool) { p.blobs = bp }
}

// ChannelQueuePool turns channel events into messages on the incoming queue
// and transmits Data and Blob messages popped from the outgoing queue. Both
// queues belong to the caller.
type ChannelQueuePool struct {
	cfg         tcp.Config
	detect      protocol.Detector
	incoming    *concurrency.Queue[message.Message]
	outgoing    *concurrency.Queue[message.Message]
	mux         api.Multiplexer
	newMux      func(api.ChannelEvents) api.Multiplexer
	blobs       *pool.BlobPool
	mode        protocol.Mode
	metrics     *control.MetricsRegistry
	log         zerolog.Logger
	stopTimeout time.Duration

	mu       sync.Mutex
	segs     map[int]*protocol.Segmenter
	failed   map[int]struct{} // framing broke; data ignored until ChannelDown
	running  bool
	stopping bool
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// New creates a stopped pool. cfg sizes the default TCP multiplexer and the
// accumulation buffers.
func New(cfg tcp.Config, detector protocol.Detector, incoming, outgoing *concurrency.Queue[message.Message], opts ...Option) (*ChannelQueuePool, error) {
	if detector == nil || incoming == nil || outgoing == nil {
		return nil, api.ErrInvalidArgument.WithContext("reason", "detector and both queues are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &ChannelQueuePool{
		cfg:         cfg.WithDefaults(),
		detect:      detector,
		incoming:    incoming,
		outgoing:    outgoing,
		log:         zerolog.Nop(),
		stopTimeout: DefaultStopTimeout,
		segs:        make(map[int]*protocol.Segmenter),
		failed:      make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	base := p.log
	p.log = logging.Component(base, "queuepool")
	if p.blobs == nil {
		p.blobs = pool.NewBlobPool(p.cfg.BufferSize)
	}
	if p.metrics == nil {
		p.metrics = control.NewMetricsRegistry()
	}
	p.metrics.RegisterGauge(MetricIncomingLen, func() int64 { return int64(incoming.Len()) })
	p.metrics.RegisterGauge(MetricOutgoingLen, func() int64 { return int64(outgoing.Len()) })

	ev := events{p}
	if p.newMux != nil {
		p.mux = p.newMux(ev)
	} else {
		mux, err := tcp.NewChannelPool(p.cfg, ev, tcp.WithLogger(base))
		if err != nil {
			return nil, err
		}
		p.mux = mux
	}
	if p.mux == nil {
		return nil, api.ErrInvalidArgument.WithContext("reason", "multiplexer factory returned nil")
	}
	p.log.Debug().Str("mode", p.mode.String()).Int("buffer_size", p.cfg.BufferSize).Msg("queue pool created")
	return p, nil
}

// Start starts the multiplexer and the outgoing writer.
func (p *ChannelQueuePool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	if p.stopping {
		return api.ErrStopTimeout.WithContext("reason", "a previous stop has not finished")
	}
	if err := p.mux.Start(); err != nil {
		return fmt.Errorf("start multiplexer: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.group = new(errgroup.Group)
	p.group.Go(func() error { return p.writeLoop(ctx) })
	p.running = true
	p.log.Info().Msg("queue pool started")
	return nil
}

// Stop stops the writer and the multiplexer and waits for both. If they
// have not finished within the stop timeout, Stop returns ErrStopTimeout and
// leaves them running in the background; the pool cannot be restarted until
// they finish.
func (p *ChannelQueuePool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopping = true
	cancel, group := p.cancel, p.group
	p.mu.Unlock()

	cancel()
	done := make(chan error, 1)
	go func() {
		err := errors.Join(p.mux.Stop(), group.Wait())
		p.resetSegmenters()
		p.mu.Lock()
		p.stopping = false
		p.mu.Unlock()
		done <- err
	}()

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		p.log.Info().Msg("queue pool stopped")
		return err
	case <-timer.C:
		p.log.Error().Dur("timeout", p.stopTimeout).Msg("workers did not stop in time; abandoning them")
		return api.ErrStopTimeout.WithContext("timeout", p.stopTimeout)
	}
}

// Listen opens a listening socket on port of every interface.
func (p *ChannelQueuePool) Listen(port, backlog, serverID int) error {
	return p.ListenAddr(fmt.Sprintf(":%d", port), backlog, serverID, api.ListenOptions{})
}

// ListenAddr opens a listening socket on addr. Every accepted connection
// produces a ChannelUp message carrying serverID as allocator id.
func (p *ChannelQueuePool) ListenAddr(addr string, backlog, serverID int, opts api.ListenOptions) error {
	if err := p.mux.Listen(addr, backlog, serverID, opts); err != nil {
		p.log.Warn().Err(err).Str("addr", addr).Int("server", serverID).Msg("listen failed")
		return err
	}
	return nil
}

// ServerAddress returns the bound address of serverID.
func (p *ChannelQueuePool) ServerAddress(serverID int) (net.Addr, error) {
	return p.mux.ServerAddress(serverID)
}

// CloseServer stops accepting on serverID.
func (p *ChannelQueuePool) CloseServer(serverID int) error {
	return p.mux.CloseServer(serverID)
}

// Connect starts connecting to addr in the background. The outcome arrives
// on the incoming queue: a ChannelUp message with allocator id, or a pool
// message with PoolErrorConnecting once all attempts failed.
func (p *ChannelQueuePool) Connect(addr string, numAttempts int, interval time.Duration, id int) error {
	return p.mux.Connect(addr, numAttempts, interval, id)
}

// Shutdown tears down channelID in the given direction(s).
func (p *ChannelQueuePool) Shutdown(channelID int, mode api.ShutdownMode) error {
	return p.mux.Shutdown(channelID, mode)
}

// RegisterClock schedules Timer messages for clockID. A clock id that is
// already registered yields ErrDuplicateClock (status 1) and the existing
// schedule is kept.
func (p *ChannelQueuePool) RegisterClock(start time.Time, period time.Duration, clockID int) error {
	return p.mux.RegisterClock(start, period, clockID)
}

// DeregisterClock cancels clockID.
func (p *ChannelQueuePool) DeregisterClock(clockID int) {
	p.mux.DeregisterClock(clockID)
}

// SetServerSocketOption forwards to the multiplexer.
func (p *ChannelQueuePool) SetServerSocketOption(serverID, level, option, value int) error {
	return p.mux.SetServerSocketOption(serverID, level, option, value)
}

// ServerSocketOption forwards to the multiplexer.
func (p *ChannelQueuePool) ServerSocketOption(serverID, level, option int) (int, error) {
	return p.mux.ServerSocketOption(serverID, level, option)
}

// SetChannelSocketOption forwards to the multiplexer.
func (p *ChannelQueuePool) SetChannelSocketOption(channelID, level, option, value int) error {
	return p.mux.SetChannelSocketOption(channelID, level, option, value)
}

// ChannelSocketOption forwards to the multiplexer.
func (p *ChannelQueuePool) ChannelSocketOption(channelID, level, option int) (int, error) {
	return p.mux.ChannelSocketOption(channelID, level, option)
}

// NumChannels returns the number of established channels.
func (p *ChannelQueuePool) NumChannels() int {
	return p.mux.NumChannels()
}

// Stats returns a snapshot of the pool counters.
func (p *ChannelQueuePool) Stats() map[string]int64 {
	return p.metrics.Snapshot()
}

func (p *ChannelQueuePool) resetSegmenters() {
	p.mu.Lock()
	segs := p.segs
	p.segs = make(map[int]*protocol.Segmenter)
	p.failed = make(map[int]struct{})
	p.mu.Unlock()
	for _, s := range segs {
		s.Reset()
	}
}
