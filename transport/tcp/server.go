// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/momentics/hioload-mt/api"
	itransport "github.com/momentics/hioload-mt/internal/transport"
)

// acceptRetryDelay paces the accept loop after a non-timeout failure such
// as descriptor exhaustion.
const acceptRetryDelay = 10 * time.Millisecond

type server struct {
	id      int
	ln      *net.TCPListener
	timeout time.Duration
}

// Listen opens a listening socket identified by serverID and starts
// accepting channels on it.
func (p *ChannelPool) Listen(addr string, backlog int, serverID int, opts api.ListenOptions) error {
	if backlog <= 0 {
		return api.ErrInvalidArgument.WithContext("backlog", backlog)
	}
	p.mu.Lock()
	if err := p.runningLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if _, dup := p.servers[serverID]; dup {
		p.mu.Unlock()
		return api.ErrAlreadyOpen.WithContext("server", serverID)
	}
	ctx := p.ctx
	p.mu.Unlock()

	ln, err := itransport.Listen(ctx, addr, backlog, opts.ReuseAddress)
	if err != nil {
		return err
	}
	s := &server{id: serverID, ln: ln, timeout: opts.AcceptTimeout}

	p.mu.Lock()
	if err := p.runningLocked(); err != nil {
		p.mu.Unlock()
		ln.Close()
		return err
	}
	if _, dup := p.servers[serverID]; dup {
		p.mu.Unlock()
		ln.Close()
		return api.ErrAlreadyOpen.WithContext("server", serverID)
	}
	p.servers[serverID] = s
	p.group.Go(func() error { return p.acceptLoop(ctx, s) })
	p.mu.Unlock()

	p.log.Info().Int("server", serverID).Str("addr", ln.Addr().String()).Int("backlog", backlog).Msg("listening")
	return nil
}

func (p *ChannelPool) acceptLoop(ctx context.Context, s *server) error {
	for {
		if s.timeout > 0 {
			s.ln.SetDeadline(time.Now().Add(s.timeout))
		}
		conn, err := s.ln.AcceptTCP()
		if err == nil {
			p.addChannel(conn, s.id)
			continue
		}
		if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			p.poolState(api.PoolAcceptTimeout, s.id, api.SeverityInfo)
			continue
		}
		p.log.Warn().Err(err).Int("server", s.id).Msg("accept failed")
		p.poolState(api.PoolErrorAccepting, s.id, api.SeverityAlert)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(acceptRetryDelay):
		}
	}
}

// CloseServer stops accepting on serverID. Established channels stay up.
func (p *ChannelPool) CloseServer(serverID int) error {
	p.mu.Lock()
	s, ok := p.servers[serverID]
	delete(p.servers, serverID)
	p.mu.Unlock()
	if !ok {
		return api.ErrNotFound.WithContext("server", serverID)
	}
	p.log.Info().Int("server", serverID).Msg("server closed")
	return s.ln.Close()
}

// ServerAddress returns the bound address of serverID.
func (p *ChannelPool) ServerAddress(serverID int) (net.Addr, error) {
	s, err := p.server(serverID)
	if err != nil {
		return nil, err
	}
	return s.ln.Addr(), nil
}

func (p *ChannelPool) server(id int) (*server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.servers[id]
	if !ok {
		return nil, api.ErrNotFound.WithContext("server", id)
	}
	return s, nil
}

// Connect dials addr in the background, trying numAttempts times interval
// apart. Success is reported as ChannelUp with allocator id; exhausting the
// attempts is reported as PoolErrorConnecting for id.
func (p *ChannelPool) Connect(addr string, numAttempts int, interval time.Duration, id int) error {
	if numAttempts <= 0 || interval < 0 {
		return api.ErrInvalidArgument.
			WithContext("attempts", numAttempts).
			WithContext("interval", interval)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.runningLocked(); err != nil {
		return err
	}
	ctx := p.ctx
	p.group.Go(func() error {
		var conn *net.TCPConn
		dial := func() error {
			var d net.Dialer
			c, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return err
			}
			conn = c.(*net.TCPConn)
			return nil
		}
		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(numAttempts-1)),
			ctx,
		)
		if err := backoff.Retry(dial, policy); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Warn().Err(err).Str("addr", addr).Int("id", id).Int("attempts", numAttempts).Msg("connect failed")
			p.poolState(api.PoolErrorConnecting, id, api.SeverityAlert)
			return nil
		}
		p.addChannel(conn, id)
		return nil
	})
	return nil
}
