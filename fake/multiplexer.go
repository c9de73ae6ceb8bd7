// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the multiplexer contract.

package fake

import (
	"net"
	"sync"
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/pool"
)

// Write is one recorded transmission.
type Write struct {
	ChannelID int
	Data      []byte
}

type sockKey struct {
	id, level, option int
}

// Multiplexer is an in-memory api.Multiplexer. Nothing happens on its own:
// tests drive it by injecting events, which are delivered synchronously on
// the calling goroutine.
type Multiplexer struct {
	events api.ChannelEvents

	mu         sync.Mutex
	running    bool
	servers    map[int]string
	channels   map[int]int
	clocks     map[int]time.Duration
	connects   []string
	shutdowns  map[int]api.ShutdownMode
	writes     []Write
	serverOpts map[sockKey]int
	chanOpts   map[sockKey]int
	writeError error
	startError error
	stopDelay  time.Duration
}

var _ api.Multiplexer = (*Multiplexer)(nil)

// NewMultiplexer creates a fake reporting to events.
func NewMultiplexer(events api.ChannelEvents) *Multiplexer {
	return &Multiplexer{
		events:     events,
		servers:    make(map[int]string),
		channels:   make(map[int]int),
		clocks:     make(map[int]time.Duration),
		shutdowns:  make(map[int]api.ShutdownMode),
		serverOpts: make(map[sockKey]int),
		chanOpts:   make(map[sockKey]int),
	}
}

// Start implements api.Multiplexer.
func (m *Multiplexer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startError != nil {
		return m.startError
	}
	m.running = true
	return nil
}

// Stop implements api.Multiplexer. It sleeps for the configured stop delay.
func (m *Multiplexer) Stop() error {
	m.mu.Lock()
	delay := m.stopDelay
	m.running = false
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

// Listen implements api.Multiplexer.
func (m *Multiplexer) Listen(addr string, backlog int, serverID int, _ api.ListenOptions) error {
	if backlog <= 0 {
		return api.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.servers[serverID]; dup {
		return api.ErrAlreadyOpen
	}
	m.servers[serverID] = addr
	return nil
}

// CloseServer implements api.Multiplexer.
func (m *Multiplexer) CloseServer(serverID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[serverID]; !ok {
		return api.ErrNotFound
	}
	delete(m.servers, serverID)
	return nil
}

// ServerAddress implements api.Multiplexer.
func (m *Multiplexer) ServerAddress(serverID int) (net.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.servers[serverID]
	if !ok {
		return nil, api.ErrNotFound
	}
	return net.ResolveTCPAddr("tcp", addr)
}

// Connect implements api.Multiplexer by recording the address.
func (m *Multiplexer) Connect(addr string, numAttempts int, _ time.Duration, _ int) error {
	if numAttempts <= 0 {
		return api.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects = append(m.connects, addr)
	return nil
}

// Shutdown implements api.Multiplexer by recording the mode. It does not
// report ChannelDown; tests inject that explicitly.
func (m *Multiplexer) Shutdown(channelID int, mode api.ShutdownMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelID]; !ok {
		return api.ErrNotFound
	}
	m.shutdowns[channelID] = mode
	return nil
}

// Write implements api.Multiplexer. The bytes are copied out immediately,
// so no blob reference is kept.
func (m *Multiplexer) Write(channelID int, b *pool.Blob, offset, length int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	if _, ok := m.channels[channelID]; !ok {
		return api.ErrNotFound
	}
	m.writes = append(m.writes, Write{ChannelID: channelID, Data: b.Bytes(offset, length)})
	return nil
}

// RegisterClock implements api.Multiplexer. Clocks never fire on their own;
// use Fire.
func (m *Multiplexer) RegisterClock(_ time.Time, period time.Duration, clockID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.clocks[clockID]; dup {
		return api.ErrDuplicateClock
	}
	m.clocks[clockID] = period
	return nil
}

// DeregisterClock implements api.Multiplexer.
func (m *Multiplexer) DeregisterClock(clockID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clocks, clockID)
}

// SetServerSocketOption implements api.Multiplexer.
func (m *Multiplexer) SetServerSocketOption(serverID, level, option, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[serverID]; !ok {
		return api.ErrNotFound
	}
	m.serverOpts[sockKey{serverID, level, option}] = value
	return nil
}

// ServerSocketOption implements api.Multiplexer.
func (m *Multiplexer) ServerSocketOption(serverID, level, option int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[serverID]; !ok {
		return 0, api.ErrNotFound
	}
	return m.serverOpts[sockKey{serverID, level, option}], nil
}

// SetChannelSocketOption implements api.Multiplexer.
func (m *Multiplexer) SetChannelSocketOption(channelID, level, option, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelID]; !ok {
		return api.ErrNotFound
	}
	m.chanOpts[sockKey{channelID, level, option}] = value
	return nil
}

// ChannelSocketOption implements api.Multiplexer.
func (m *Multiplexer) ChannelSocketOption(channelID, level, option int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[channelID]; !ok {
		return 0, api.ErrNotFound
	}
	return m.chanOpts[sockKey{channelID, level, option}], nil
}

// NumChannels implements api.Multiplexer.
func (m *Multiplexer) NumChannels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// ChannelUp registers channelID and reports it.
func (m *Multiplexer) ChannelUp(channelID, allocatorID int) {
	m.mu.Lock()
	m.channels[channelID] = allocatorID
	m.mu.Unlock()
	m.events.OnChannelState(channelID, api.ChannelUp, allocatorID)
}

// ChannelDown forgets channelID and reports it.
func (m *Multiplexer) ChannelDown(channelID int) {
	m.mu.Lock()
	alloc := m.channels[channelID]
	delete(m.channels, channelID)
	m.mu.Unlock()
	m.events.OnChannelState(channelID, api.ChannelDown, alloc)
}

// Data delivers a physical read on channelID.
func (m *Multiplexer) Data(channelID int, data []byte) {
	m.events.OnData(channelID, data)
}

// PoolState reports a pool-level condition.
func (m *Multiplexer) PoolState(state api.PoolState, sourceID int, sev api.Severity) {
	m.events.OnPoolState(state, sourceID, sev)
}

// Fire reports clockID firing at now.
func (m *Multiplexer) Fire(clockID int, now time.Time) {
	m.events.OnTimer(clockID, now)
}

// Writes returns every recorded transmission.
func (m *Multiplexer) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

// Connects returns the addresses passed to Connect.
func (m *Multiplexer) Connects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.connects...)
}

// ShutdownMode returns the last shutdown mode requested for channelID.
func (m *Multiplexer) ShutdownMode(channelID int) (api.ShutdownMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.shutdowns[channelID]
	return mode, ok
}

// ClockPeriod returns the registered period of clockID.
func (m *Multiplexer) ClockPeriod(clockID int) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.clocks[clockID]
	return p, ok
}

// Running reports whether Start was called without a later Stop.
func (m *Multiplexer) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SetWriteError configures Write to fail with err.
func (m *Multiplexer) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeError = err
}

// SetStartError configures Start to fail with err.
func (m *Multiplexer) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startError = err
}

// SetStopDelay makes Stop block for d.
func (m *Multiplexer) SetStopDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopDelay = d
}
