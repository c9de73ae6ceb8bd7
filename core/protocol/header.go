// File: core/protocol/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Length-prefixed boundary detector.

package protocol

import (
	"encoding/binary"
	"fmt"
)

// HeaderDetector frames messages that start with a fixed-size header
// carrying a big-endian length field.
type HeaderDetector struct {
	HeaderLen    int // fixed header size in bytes
	LengthOffset int // offset of the length field inside the header
	LengthSize   int // 1, 2, 4 or 8
	// LengthIncludesHeader reports whether the length field counts the
	// header bytes too.
	LengthIncludesHeader bool
	// MaxMessage rejects longer messages when positive.
	MaxMessage int
}

// Validate checks the field layout.
func (h HeaderDetector) Validate() error {
	switch h.LengthSize {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("protocol: unsupported length size %d", h.LengthSize)
	}
	if h.LengthOffset < 0 || h.LengthOffset+h.LengthSize > h.HeaderLen {
		return fmt.Errorf("protocol: length field [%d,%d) outside %d-byte header",
			h.LengthOffset, h.LengthOffset+h.LengthSize, h.HeaderLen)
	}
	return nil
}

// Detect implements Detector for one message at a time.
func (h HeaderDetector) Detect(buf []byte, total int) (consumed, needed int) {
	if total < h.HeaderLen {
		return 0, h.HeaderLen - total
	}
	if len(buf) < h.HeaderLen {
		return -1, 0
	}
	msgLen := int(h.readLength(buf[h.LengthOffset : h.LengthOffset+h.LengthSize]))
	if !h.LengthIncludesHeader {
		msgLen += h.HeaderLen
	}
	if msgLen < h.HeaderLen || (h.MaxMessage > 0 && msgLen > h.MaxMessage) {
		return -1, 0
	}
	if total < msgLen {
		return 0, msgLen - total
	}
	return msgLen, 0
}

// AppendFrame appends a header for payload followed by payload to dst.
// Header bytes outside the length field are zero.
func (h HeaderDetector) AppendFrame(dst, payload []byte) []byte {
	n := len(payload)
	if h.LengthIncludesHeader {
		n += h.HeaderLen
	}
	hdr := make([]byte, h.HeaderLen)
	field := hdr[h.LengthOffset : h.LengthOffset+h.LengthSize]
	switch h.LengthSize {
	case 1:
		field[0] = byte(n)
	case 2:
		binary.BigEndian.PutUint16(field, uint16(n))
	case 4:
		binary.BigEndian.PutUint32(field, uint32(n))
	case 8:
		binary.BigEndian.PutUint64(field, uint64(n))
	}
	dst = append(dst, hdr...)
	return append(dst, payload...)
}

func (h HeaderDetector) readLength(field []byte) uint64 {
	switch h.LengthSize {
	case 1:
		return uint64(field[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(field))
	case 4:
		return uint64(binary.BigEndian.Uint32(field))
	default:
		return binary.BigEndian.Uint64(field)
	}
}
