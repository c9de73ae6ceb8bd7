// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"context"
	"time"

	"github.com/momentics/hioload-mt/api"
)

// RegisterClock fires clockID first at start and then every period. A zero
// period fires once. Reusing a live clock id fails with ErrDuplicateClock and
// leaves the existing clock untouched.
func (p *ChannelPool) RegisterClock(start time.Time, period time.Duration, clockID int) error {
	if period < 0 {
		return api.ErrInvalidArgument.WithContext("period", period)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.runningLocked(); err != nil {
		return err
	}
	if _, dup := p.clocks[clockID]; dup {
		return api.ErrDuplicateClock.WithContext("clock", clockID)
	}
	ctx, cancel := context.WithCancel(p.ctx)
	c := &clock{cancel: cancel}
	p.clocks[clockID] = c
	p.group.Go(func() error {
		p.runClock(ctx, c, start, period, clockID)
		return nil
	})
	return nil
}

// DeregisterClock stops clockID. Unknown ids are ignored.
func (p *ChannelPool) DeregisterClock(clockID int) {
	p.mu.Lock()
	c, ok := p.clocks[clockID]
	delete(p.clocks, clockID)
	p.mu.Unlock()
	if ok {
		c.cancel()
	}
}

type clock struct {
	cancel context.CancelFunc
}

func (p *ChannelPool) runClock(ctx context.Context, c *clock, start time.Time, period time.Duration, clockID int) {
	timer := time.NewTimer(time.Until(start))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case now := <-timer.C:
		p.fire(clockID, now)
	}
	if period == 0 {
		p.mu.Lock()
		if p.clocks[clockID] == c {
			delete(p.clocks, clockID)
		}
		p.mu.Unlock()
		c.cancel()
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.fire(clockID, now)
		}
	}
}

func (p *ChannelPool) fire(clockID int, now time.Time) {
	p.dispatch(clockID, func() { p.events.OnTimer(clockID, now) })
}
