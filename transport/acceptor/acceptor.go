// File: transport/acceptor/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking and timed allocator of stream channels over a listening socket.

package acceptor

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/internal/logging"
	itransport "github.com/momentics/hioload-mt/internal/transport"
)

// Flags modify an allocation.
type Flags int

// FlagAsyncInterrupt makes an allocation return ErrInterrupted when
// Interrupt is called. Without it the allocation keeps waiting.
const FlagAsyncInterrupt Flags = 1 << iota

// wakeDeadline is in the past; setting it fails a blocked Accept at once.
var wakeDeadline = time.Unix(1, 0)

// Option configures a TimedAcceptor.
type Option func(*TimedAcceptor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(a *TimedAcceptor) {
		a.log = logging.Component(l, "acceptor")
	}
}

// WithMaxChannels caps allocated channels. Allocating beyond the cap fails
// with ErrResourceExhausted without touching the socket.
func WithMaxChannels(n int) Option {
	return func(a *TimedAcceptor) { a.maxChannels = n }
}

// TimedAcceptor hands out channels accepted on one listening socket. It has
// two independent state axes: valid/invalid, set once by Invalidate, and
// open/closed, driven by Open and Close.
//
// Allocations are serialized; concurrent callers queue behind the one
// currently waiting in accept.
type TimedAcceptor struct {
	log         zerolog.Logger
	maxChannels int

	allocMu sync.Mutex // serializes allocations

	mu         sync.Mutex
	ln         *net.TCPListener
	invalid    bool
	interrupts uint64
	channels   map[*Channel]struct{}
}

// New returns a closed, valid acceptor.
func New(opts ...Option) *TimedAcceptor {
	a := &TimedAcceptor{
		log:      zerolog.Nop(),
		channels: make(map[*Channel]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open binds endpoint with an accept backlog of queueSize.
func (a *TimedAcceptor) Open(endpoint string, queueSize int, reuseAddress bool) error {
	if queueSize <= 0 {
		return api.ErrInvalidArgument.WithContext("queue_size", queueSize)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln != nil {
		return api.ErrAlreadyOpen.WithContext("endpoint", a.ln.Addr().String())
	}
	ln, err := itransport.Listen(context.Background(), endpoint, queueSize, reuseAddress)
	if err != nil {
		return err
	}
	a.ln = ln
	a.log.Info().Str("addr", ln.Addr().String()).Int("backlog", queueSize).Bool("reuse", reuseAddress).Msg("acceptor open")
	return nil
}

// Close closes the listening socket. Allocated channels are unaffected and a
// pending allocation returns ErrNotOpen.
func (a *TimedAcceptor) Close() error {
	a.mu.Lock()
	ln := a.ln
	a.ln = nil
	a.mu.Unlock()
	if ln == nil {
		return api.ErrNotOpen
	}
	a.log.Info().Str("addr", ln.Addr().String()).Msg("acceptor closed")
	return ln.Close()
}

// Invalidate permanently fails further allocations with ErrInvalidated and
// wakes an allocation in progress, which fails the same way.
func (a *TimedAcceptor) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invalid = true
	if a.ln != nil {
		a.ln.SetDeadline(wakeDeadline)
	}
}

// IsInvalid reports whether Invalidate has been called.
func (a *TimedAcceptor) IsInvalid() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invalid
}

// Interrupt delivers an asynchronous event to the allocation in progress.
// Allocations made with FlagAsyncInterrupt return ErrInterrupted; others
// resume waiting.
func (a *TimedAcceptor) Interrupt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interrupts++
	if a.ln != nil {
		a.ln.SetDeadline(wakeDeadline)
	}
}

// Address returns the bound address, or nil when closed.
func (a *TimedAcceptor) Address() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// NumChannels returns the number of allocated channels.
func (a *TimedAcceptor) NumChannels() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.channels)
}

// Allocate blocks until a connection is accepted.
func (a *TimedAcceptor) Allocate(flags Flags) (*Channel, error) {
	return a.allocate(time.Time{}, flags)
}

// TimedAllocate is Allocate bounded by an absolute deadline; reaching it
// returns ErrTimeout.
func (a *TimedAcceptor) TimedAllocate(deadline time.Time, flags Flags) (*Channel, error) {
	if deadline.IsZero() {
		return nil, api.ErrInvalidArgument.WithContext("deadline", "zero")
	}
	return a.allocate(deadline, flags)
}

// AllocateTimed is Allocate returning a channel with deadline-bounded I/O.
func (a *TimedAcceptor) AllocateTimed(flags Flags) (*TimedChannel, error) {
	ch, err := a.allocate(time.Time{}, flags)
	if err != nil {
		return nil, err
	}
	return &TimedChannel{Channel: ch}, nil
}

// TimedAllocateTimed is TimedAllocate returning a TimedChannel.
func (a *TimedAcceptor) TimedAllocateTimed(deadline time.Time, flags Flags) (*TimedChannel, error) {
	ch, err := a.TimedAllocate(deadline, flags)
	if err != nil {
		return nil, err
	}
	return &TimedChannel{Channel: ch}, nil
}

// Deallocate closes ch and forgets it. Channels not allocated here, or
// already deallocated, yield ErrNotFound.
func (a *TimedAcceptor) Deallocate(ch *Channel) error {
	if ch == nil {
		return api.ErrNotFound
	}
	a.mu.Lock()
	_, ok := a.channels[ch]
	delete(a.channels, ch)
	a.mu.Unlock()
	if !ok {
		return api.ErrNotFound.WithContext("remote", ch.RemoteAddr().String())
	}
	a.log.Debug().Str("remote", ch.RemoteAddr().String()).Msg("channel deallocated")
	return ch.conn.Close()
}

func (a *TimedAcceptor) allocate(deadline time.Time, flags Flags) (*Channel, error) {
	a.allocMu.Lock()
	defer a.allocMu.Unlock()

	a.mu.Lock()
	seen := a.interrupts
	a.mu.Unlock()

	for {
		ln, err := a.arm(deadline, flags, &seen)
		if err != nil {
			return nil, err
		}
		conn, err := ln.AcceptTCP()
		if err == nil {
			return a.register(conn)
		}
		var ne net.Error
		switch {
		case errors.Is(err, net.ErrClosed):
			// Closed under us; arm reports ErrNotOpen or ErrInvalidated.
			continue
		case errors.As(err, &ne) && ne.Timeout():
			if !deadline.IsZero() && !time.Now().Before(deadline) {
				return nil, api.ErrTimeout
			}
			// Woken by Interrupt or Invalidate; arm decides.
			continue
		default:
			a.log.Warn().Err(err).Msg("accept failed")
			return nil, err
		}
	}
}

// arm checks state and sets the accept deadline under a.mu, so an Interrupt
// or Invalidate either is observed here or lands after the deadline is set
// and wakes the following Accept.
func (a *TimedAcceptor) arm(deadline time.Time, flags Flags, seen *uint64) (*net.TCPListener, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.invalid {
		return nil, api.ErrInvalidated
	}
	if a.ln == nil {
		return nil, api.ErrNotOpen
	}
	if a.interrupts != *seen {
		*seen = a.interrupts
		if flags&FlagAsyncInterrupt != 0 {
			return nil, api.ErrInterrupted
		}
	}
	if a.maxChannels > 0 && len(a.channels) >= a.maxChannels {
		return nil, api.ErrResourceExhausted.WithContext("max_channels", a.maxChannels)
	}
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return nil, api.ErrTimeout
	}
	a.ln.SetDeadline(deadline)
	return a.ln, nil
}

func (a *TimedAcceptor) register(conn *net.TCPConn) (*Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.invalid {
		conn.Close()
		return nil, api.ErrInvalidated
	}
	ch := &Channel{conn: conn}
	a.channels[ch] = struct{}{}
	a.log.Debug().Str("remote", conn.RemoteAddr().String()).Int("channels", len(a.channels)).Msg("channel allocated")
	return ch, nil
}
