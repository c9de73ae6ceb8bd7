// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and state enumerations.

package api

// ChannelState enumerates per-channel state changes reported by a multiplexer.
type ChannelState int

const (
	ChannelUp ChannelState = iota + 1
	ChannelDown
	ChannelReadTimeout
	ChannelSendBufferFull
	ChannelMessageDiscarded
)

func (s ChannelState) String() string {
	switch s {
	case ChannelUp:
		return "channel_up"
	case ChannelDown:
		return "channel_down"
	case ChannelReadTimeout:
		return "read_timeout"
	case ChannelSendBufferFull:
		return "send_buffer_full"
	case ChannelMessageDiscarded:
		return "message_discarded"
	default:
		return "unknown"
	}
}

// PoolState enumerates pool-level conditions reported by a multiplexer.
type PoolState int

const (
	PoolAcceptTimeout PoolState = iota + 1
	PoolErrorAccepting
	PoolErrorConnecting
	PoolChannelLimit
)

func (s PoolState) String() string {
	switch s {
	case PoolAcceptTimeout:
		return "accept_timeout"
	case PoolErrorAccepting:
		return "error_accepting"
	case PoolErrorConnecting:
		return "error_connecting"
	case PoolChannelLimit:
		return "channel_limit"
	default:
		return "unknown"
	}
}

// Severity qualifies a pool-level condition.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityAlert
	SeverityCritical
)

// ShutdownMode selects which direction of a channel is torn down.
type ShutdownMode int

const (
	ShutdownReceive ShutdownMode = iota + 1
	ShutdownSend
	ShutdownBoth
)

func (m ShutdownMode) String() string {
	switch m {
	case ShutdownReceive:
		return "receive"
	case ShutdownSend:
		return "send"
	case ShutdownBoth:
		return "both"
	default:
		return "unknown"
	}
}

// InvalidChannelID marks a message that is not associated with a channel.
const InvalidChannelID = -1
