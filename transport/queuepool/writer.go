// File: transport/queuepool/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package queuepool

import (
	"context"

	"github.com/momentics/hioload-mt/core/message"
)

// writeLoop drains the outgoing queue until ctx is cancelled.
func (p *ChannelQueuePool) writeLoop(ctx context.Context) error {
	for {
		m, err := p.outgoing.PopFront(ctx)
		if err != nil {
			return nil
		}
		p.transmit(m)
	}
}

// transmit hands Data and Blob messages to the multiplexer and discards
// every other kind. The message's own reference is always released; the
// multiplexer keeps its own while the bytes are in flight.
func (p *ChannelQueuePool) transmit(m message.Message) {
	defer m.Release()

	var (
		channelID, offset, length int
		err                       error
	)
	switch m.Kind() {
	case message.KindData:
		d := m.Data()
		if d.Data() == nil {
			p.discard(m)
			return
		}
		channelID, offset, length = d.ChannelID, d.Offset(), d.Length()
		err = p.mux.Write(channelID, d.Data(), offset, length)
	case message.KindBlob:
		b := m.Blob()
		if b.Blob() == nil {
			p.discard(m)
			return
		}
		channelID, length = b.ChannelID, b.Blob().Len()
		err = p.mux.Write(channelID, b.Blob(), 0, length)
	default:
		p.discard(m)
		return
	}
	if err != nil {
		p.metrics.Add(MetricWriteErrors, 1)
		p.log.Warn().Err(err).Int("channel", channelID).Int("length", length).Msg("write failed")
		return
	}
	p.metrics.Add(MetricMessagesOut, 1)
	p.metrics.Add(MetricBytesOut, int64(length))
}

func (p *ChannelQueuePool) discard(m message.Message) {
	p.metrics.Add(MetricMessagesDiscarded, 1)
	p.log.Debug().Stringer("message", m).Msg("discarding outgoing message")
}
