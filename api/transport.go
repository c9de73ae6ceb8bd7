// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the channel multiplexer capability consumed by the queue pool and
// the event listener through which a multiplexer reports what happened.

package api

import (
	"net"
	"time"

	"github.com/momentics/hioload-mt/pool"
)

// ListenOptions tunes a listening socket.
type ListenOptions struct {
	// AcceptTimeout, when non-zero, reports PoolAcceptTimeout each time the
	// listener goes that long without accepting a connection.
	AcceptTimeout time.Duration
	// ReuseAddress sets SO_REUSEADDR before bind.
	ReuseAddress bool
}

// ChannelEvents receives multiplexer notifications. Calls for one channel
// are serialized and arrive in the order they happened; calls for
// different channels may run concurrently.
type ChannelEvents interface {
	// OnPoolState reports a pool-level condition for a server or connector id.
	OnPoolState(state PoolState, sourceID int, severity Severity)
	// OnChannelState reports a channel lifecycle change. allocatorID is the
	// server id (accepted channels) or connect id (outbound channels).
	OnChannelState(channelID int, state ChannelState, allocatorID int)
	// OnData delivers bytes physically read from a channel. The slice is
	// only valid for the duration of the call.
	OnData(channelID int, data []byte)
	// OnTimer reports a clock firing.
	OnTimer(clockID int, firedAt time.Time)
}

// Multiplexer is the socket/channel layer underneath the queue pool. It owns
// listening sockets and established channels and reports through
// ChannelEvents.
type Multiplexer interface {
	Start() error
	Stop() error

	Listen(addr string, backlog int, serverID int, opts ListenOptions) error
	CloseServer(serverID int) error
	// ServerAddress returns the bound address of a listening socket.
	ServerAddress(serverID int) (net.Addr, error)
	Connect(addr string, numAttempts int, interval time.Duration, id int) error
	Shutdown(channelID int, mode ShutdownMode) error

	// Write queues length bytes of b starting at offset for transmission.
	// The multiplexer retains its own reference to b until the bytes are sent.
	Write(channelID int, b *pool.Blob, offset, length int) error

	RegisterClock(start time.Time, period time.Duration, clockID int) error
	DeregisterClock(clockID int)

	SetServerSocketOption(serverID, level, option, value int) error
	ServerSocketOption(serverID, level, option int) (int, error)
	SetChannelSocketOption(channelID, level, option, value int) error
	ChannelSocketOption(channelID, level, option int) (int, error)

	NumChannels() int
}
