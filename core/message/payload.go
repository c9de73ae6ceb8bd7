// File: core/message/payload.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Payload variants carried by a Message.

package message

import (
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/pool"
)

// Payload is implemented by the six variant types only.
type Payload interface {
	kind() Kind
	own() Payload
	clone() Payload
}

// buffered is the shared handle plumbing for the variants that carry a blob.
type buffered struct {
	data *pool.Blob
}

// SetData installs b, taking over the caller's reference, and releases the
// previously held blob.
func (h *buffered) SetData(b *pool.Blob) {
	old := h.data
	h.data = b
	if old != nil {
		old.Release()
	}
}

// SetSharedData installs b with a new reference of its own, leaving the
// caller's reference intact, and releases the previously held blob.
func (h *buffered) SetSharedData(b *pool.Blob) {
	if b != nil {
		b.Retain()
	}
	h.SetData(b)
}

func (h buffered) retained() buffered {
	if h.data != nil {
		h.data.Retain()
	}
	return h
}

// DataMsg is a run of bytes read from (or bound for) a channel.
// UserDataField1 is the offset of the run inside the blob and
// UserDataField2 its length.
type DataMsg struct {
	ChannelID      int
	UserDataField1 int
	UserDataField2 int
	buffered
}

// NewDataMsg wraps length bytes of b at offset. The message takes over the
// caller's reference to b.
func NewDataMsg(channelID int, b *pool.Blob, offset, length int) DataMsg {
	return DataMsg{
		ChannelID:      channelID,
		UserDataField1: offset,
		UserDataField2: length,
		buffered:       buffered{data: b},
	}
}

// Data returns the shared blob, or nil.
func (d *DataMsg) Data() *pool.Blob { return d.data }

// Offset is UserDataField1.
func (d *DataMsg) Offset() int { return d.UserDataField1 }

// Length is UserDataField2.
func (d *DataMsg) Length() int { return d.UserDataField2 }

// Bytes copies the referenced run out of the blob.
func (d *DataMsg) Bytes() []byte {
	if d.data == nil {
		return nil
	}
	return d.data.Bytes(d.UserDataField1, d.UserDataField2)
}

func (DataMsg) kind() Kind { return KindData }

func (d DataMsg) own() Payload { return &d }

func (d DataMsg) clone() Payload {
	d.buffered = d.buffered.retained()
	return &d
}

// BlobMsg carries a whole blob; the user data fields are free for the
// application.
type BlobMsg struct {
	ChannelID      int
	UserDataField1 int
	UserDataField2 int
	buffered
}

// NewBlobMsg wraps b, taking over the caller's reference.
func NewBlobMsg(channelID int, b *pool.Blob) BlobMsg {
	return BlobMsg{ChannelID: channelID, buffered: buffered{data: b}}
}

// Blob returns the shared blob, or nil.
func (m *BlobMsg) Blob() *pool.Blob { return m.data }

func (BlobMsg) kind() Kind { return KindBlob }

func (m BlobMsg) own() Payload { return &m }

func (m BlobMsg) clone() Payload {
	m.buffered = m.buffered.retained()
	return &m
}

// ChannelMsg reports a channel state change. AllocatorID is the server id
// for accepted channels and the connect id for outbound ones.
type ChannelMsg struct {
	ChannelID   int
	State       api.ChannelState
	AllocatorID int
	UserData    any
}

func (ChannelMsg) kind() Kind { return KindChannel }

func (m ChannelMsg) own() Payload { return &m }

func (m ChannelMsg) clone() Payload { return &m }

// PoolMsg reports a pool-level condition. It is never bound to a channel.
type PoolMsg struct {
	SourceID int
	State    api.PoolState
	Severity api.Severity
}

func (PoolMsg) kind() Kind { return KindPool }

func (m PoolMsg) own() Payload { return &m }

func (m PoolMsg) clone() Payload { return &m }

// TimerMsg reports a clock firing.
type TimerMsg struct {
	ClockID int
	FiredAt time.Time
}

func (TimerMsg) kind() Kind { return KindTimer }

func (m TimerMsg) own() Payload { return &m }

func (m TimerMsg) clone() Payload { return &m }

// UserMsg is an application-defined message. Payload is shared by plain
// assignment on Clone; the blob, if any, is reference counted.
type UserMsg struct {
	ChannelID      int
	Type           int
	UserDataField1 int
	UserDataField2 int
	Payload        any
	buffered
}

// Data returns the shared blob, or nil.
func (m *UserMsg) Data() *pool.Blob { return m.data }

func (UserMsg) kind() Kind { return KindUser }

func (m UserMsg) own() Payload { return &m }

func (m UserMsg) clone() Payload {
	m.buffered = m.buffered.retained()
	return &m
}
