// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	itransport "github.com/momentics/hioload-mt/internal/transport"
)

// SetServerSocketOption sets an integer option on a listening socket.
func (p *ChannelPool) SetServerSocketOption(serverID, level, option, value int) error {
	s, err := p.server(serverID)
	if err != nil {
		return err
	}
	return itransport.SetOption(s.ln, level, option, value)
}

// ServerSocketOption reads an integer option from a listening socket.
func (p *ChannelPool) ServerSocketOption(serverID, level, option int) (int, error) {
	s, err := p.server(serverID)
	if err != nil {
		return 0, err
	}
	return itransport.Option(s.ln, level, option)
}

// SetChannelSocketOption sets an integer option on a channel's socket.
func (p *ChannelPool) SetChannelSocketOption(channelID, level, option, value int) error {
	ch, err := p.channel(channelID)
	if err != nil {
		return err
	}
	return itransport.SetOption(ch.conn, level, option, value)
}

// ChannelSocketOption reads an integer option from a channel's socket.
func (p *ChannelPool) ChannelSocketOption(channelID, level, option int) (int, error) {
	ch, err := p.channel(channelID)
	if err != nil {
		return 0, err
	}
	return itransport.Option(ch.conn, level, option)
}
