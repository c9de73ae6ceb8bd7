// File: transport/queuepool/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package queuepool

import (
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/core/message"
	"github.com/momentics/hioload-mt/core/protocol"
)

// events adapts multiplexer callbacks onto the incoming queue.
type events struct {
	p *ChannelQueuePool
}

func (e events) OnPoolState(state api.PoolState, sourceID int, sev api.Severity) {
	e.p.log.Debug().Stringer("state", state).Int("source", sourceID).Msg("pool state")
	e.p.push(message.New(message.PoolMsg{SourceID: sourceID, State: state, Severity: sev}))
}

func (e events) OnChannelState(channelID int, state api.ChannelState, allocatorID int) {
	p := e.p
	switch state {
	case api.ChannelUp:
		p.segmenter(channelID)
	case api.ChannelDown:
		p.dropSegmenter(channelID)
		p.mu.Lock()
		delete(p.failed, channelID)
		p.mu.Unlock()
	}
	p.log.Debug().Int("channel", channelID).Stringer("state", state).Int("allocator", allocatorID).Msg("channel state")
	p.push(message.New(message.ChannelMsg{ChannelID: channelID, State: state, AllocatorID: allocatorID}))
}

func (e events) OnData(channelID int, data []byte) {
	p := e.p
	seg := p.segmenter(channelID)
	if seg == nil {
		return
	}
	before := seg.Calls()
	msgs, err := seg.Feed(data)
	p.metrics.Add(MetricBytesIn, int64(len(data)))
	p.metrics.Add(MetricDetectorCalls, seg.Calls()-before)
	for _, d := range msgs {
		p.push(message.New(d))
	}
	if err != nil {
		p.metrics.Add(MetricProtocolErrors, 1)
		p.log.Warn().Err(err).Int("channel", channelID).Msg("boundary detector failed; dropping channel")
		p.dropSegmenter(channelID)
		p.mu.Lock()
		p.failed[channelID] = struct{}{}
		p.mu.Unlock()
		if serr := p.mux.Shutdown(channelID, api.ShutdownBoth); serr != nil {
			p.log.Debug().Err(serr).Int("channel", channelID).Msg("shutdown after protocol error")
		}
	}
}

func (e events) OnTimer(clockID int, firedAt time.Time) {
	e.p.push(message.New(message.TimerMsg{ClockID: clockID, FiredAt: firedAt}))
}

func (p *ChannelQueuePool) push(m message.Message) {
	p.metrics.Add(MetricMessagesIn, 1)
	p.incoming.PushBack(m)
}

// segmenter returns the accumulation state of channelID, creating it. It
// returns nil for a channel that broke framing and has not gone down yet.
func (p *ChannelQueuePool) segmenter(channelID int) *protocol.Segmenter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, bad := p.failed[channelID]; bad {
		return nil
	}
	s, ok := p.segs[channelID]
	if !ok {
		s = protocol.NewSegmenter(channelID, p.detect, p.blobs, protocol.SegmenterConfig{
			Mode:          p.mode,
			MinGuaranteed: p.cfg.MinGuaranteed,
		})
		p.segs[channelID] = s
	}
	return s
}

func (p *ChannelQueuePool) dropSegmenter(channelID int) {
	p.mu.Lock()
	s, ok := p.segs[channelID]
	delete(p.segs, channelID)
	p.mu.Unlock()
	if ok {
		s.Reset()
	}
}
