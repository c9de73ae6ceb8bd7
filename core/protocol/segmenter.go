// File: core/protocol/segmenter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/core/message"
	"github.com/momentics/hioload-mt/pool"
)

// Detector classifies pending bytes. buf holds the first
// min(total, MinGuaranteed) contiguous pending bytes and must not be
// retained or modified; total is the full pending length.
//
// consumed is the number of leading bytes that form complete message data
// (0 <= consumed <= total). needed is the minimum number of additional bytes
// that must arrive before the detector is worth calling again. A negative
// consumed reports an unrecoverable framing error.
type Detector func(buf []byte, total int) (consumed, needed int)

// Mode selects the detector invocation protocol.
type Mode int

const (
	// ModeZeroCopy re-invokes the detector on leftover bytes without
	// waiting for a new read and emits one message per consumed run.
	ModeZeroCopy Mode = iota
	// ModeCoalescing invokes the detector once per read and may deliver
	// several protocol messages as one Data message. Deprecated.
	ModeCoalescing
)

func (m Mode) String() string {
	if m == ModeCoalescing {
		return "coalescing"
	}
	return "zero_copy"
}

// SegmenterConfig tunes a Segmenter.
type SegmenterConfig struct {
	Mode Mode
	// MinGuaranteed bounds the contiguous prefix handed to the detector.
	// Defaults to the pool buffer size.
	MinGuaranteed int
}

// Segmenter owns the accumulation buffer of one channel. It is not safe for
// concurrent use; the multiplexer delivers reads for a channel serially.
type Segmenter struct {
	channelID int
	detect    Detector
	pool      *pool.BlobPool
	cfg       SegmenterConfig

	acc     *pool.Blob // nil when nothing is pending
	start   int        // first unconsumed offset in acc
	needed  int        // bytes that must arrive before the next call
	arrived int        // bytes appended since the last call
	calls   int64
}

// NewSegmenter returns a segmenter for channelID drawing buffers from p.
func NewSegmenter(channelID int, detect Detector, p *pool.BlobPool, cfg SegmenterConfig) *Segmenter {
	if p == nil {
		p = pool.Default()
	}
	if cfg.MinGuaranteed <= 0 {
		cfg.MinGuaranteed = p.BufferSize()
	}
	return &Segmenter{channelID: channelID, detect: detect, pool: p, cfg: cfg}
}

// Feed appends bytes physically read from the channel and returns the Data
// messages that became complete, in stream order. Each returned message
// holds its own reference to the accumulation blob.
//
// On ErrProtocolViolation the messages completed before the violation are
// still returned; the caller is expected to drop the channel.
func (s *Segmenter) Feed(chunk []byte) ([]message.DataMsg, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	if s.acc == nil {
		s.acc = s.pool.NewBlob()
		s.start = 0
	}
	s.acc.Append(chunk)
	s.arrived += len(chunk)
	if s.arrived < s.needed {
		return nil, nil
	}
	s.arrived, s.needed = 0, 0

	var out []message.DataMsg
	for {
		total := s.acc.Len() - s.start
		if total == 0 {
			break
		}
		view := s.acc.Peek(s.start, min(total, s.cfg.MinGuaranteed))
		consumed, needed := s.detect(view, total)
		s.calls++

		if consumed < 0 || consumed > total || needed < 0 {
			return out, api.ErrProtocolViolation.
				WithContext("channel", s.channelID).
				WithContext("consumed", consumed).
				WithContext("needed", needed).
				WithContext("total", total)
		}
		if consumed > 0 {
			out = append(out, message.NewDataMsg(s.channelID, s.acc.Retain(), s.start, consumed))
			s.start += consumed
		}

		remaining := total - consumed
		switch {
		case s.cfg.Mode == ModeCoalescing, remaining == 0, needed > 0:
			s.needed = needed
		case consumed == 0:
			// Nothing consumed and nothing asked for: wait for any new byte
			// rather than spinning on the same input.
			s.needed = 1
		default:
			continue
		}
		break
	}
	s.compact()
	return out, nil
}

// Pending returns the number of buffered, unconsumed bytes.
func (s *Segmenter) Pending() int {
	if s.acc == nil {
		return 0
	}
	return s.acc.Len() - s.start
}

// Needed returns how many more bytes must arrive before the detector runs.
func (s *Segmenter) Needed() int {
	if d := s.needed - s.arrived; d > 0 {
		return d
	}
	return 0
}

// Calls returns how many times the detector has been invoked.
func (s *Segmenter) Calls() int64 {
	return s.calls
}

// Reset drops all pending bytes and releases the accumulation blob.
// Messages already returned by Feed are unaffected.
func (s *Segmenter) Reset() {
	if s.acc != nil {
		s.acc.Release()
	}
	s.acc = nil
	s.start, s.needed, s.arrived = 0, 0, 0
}

// compact drops the accumulation blob once it is fully consumed, and moves
// the tail to a fresh blob once at least one whole buffer lies behind the
// cursor, so a long-lived channel does not pin every buffer it ever read.
func (s *Segmenter) compact() {
	if s.acc == nil {
		return
	}
	length := s.acc.Len()
	switch {
	case s.start == length:
		s.acc.Release()
		s.acc, s.start = nil, 0
	case s.start >= s.pool.BufferSize():
		tail := s.pool.FromBytes(s.acc.Bytes(s.start, length-s.start))
		s.acc.Release()
		s.acc, s.start = tail, 0
	}
}
