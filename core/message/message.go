// File: core/message/message.go
// Package message defines the envelope that flows through the incoming and
// outgoing queues of the queue pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Message holds exactly one payload variant. Variant accessors are checked:
// asking for the wrong variant panics with *KindError, and the AsX forms
// report a mismatch instead. Variants that carry a blob share it between
// clones through the blob's atomic reference count.

package message

import (
	"fmt"

	"github.com/momentics/hioload-mt/api"
)

// Kind discriminates the payload variant.
type Kind int

const (
	KindInvalid Kind = iota
	KindData
	KindBlob
	KindChannel
	KindPool
	KindTimer
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindBlob:
		return "blob"
	case KindChannel:
		return "channel"
	case KindPool:
		return "pool"
	case KindTimer:
		return "timer"
	case KindUser:
		return "user"
	default:
		return "invalid"
	}
}

// KindError is the panic value of a mismatched accessor.
type KindError struct {
	Want, Have Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("message: %s accessor used on %s message", e.Want, e.Have)
}

// Message is the tagged envelope. The zero value is an invalid message.
//
// Assigning a Message copies the envelope but not ownership: both copies
// refer to the same payload. Use Clone for an independent holder and
// Release when a holder is done.
type Message struct {
	kind    Kind
	payload Payload
}

// New wraps a populated payload. The message takes over any blob reference
// held by p.
func New(p Payload) Message {
	if p == nil {
		return Message{}
	}
	return Message{kind: p.kind(), payload: p.own()}
}

// NewKind returns a default-constructed message of kind k: channel ids are
// InvalidChannelID and no blob is attached.
func NewKind(k Kind) Message {
	switch k {
	case KindData:
		return New(DataMsg{ChannelID: api.InvalidChannelID})
	case KindBlob:
		return New(BlobMsg{ChannelID: api.InvalidChannelID})
	case KindChannel:
		return New(ChannelMsg{ChannelID: api.InvalidChannelID, AllocatorID: api.InvalidChannelID})
	case KindPool:
		return New(PoolMsg{SourceID: api.InvalidChannelID})
	case KindTimer:
		return New(TimerMsg{ClockID: api.InvalidChannelID})
	case KindUser:
		return New(UserMsg{ChannelID: api.InvalidChannelID})
	default:
		return Message{}
	}
}

// Kind returns the active variant.
func (m Message) Kind() Kind { return m.kind }

// ChannelID returns the channel the message is bound to, or
// api.InvalidChannelID for pool, timer and invalid messages.
func (m Message) ChannelID() int {
	switch p := m.payload.(type) {
	case *DataMsg:
		return p.ChannelID
	case *BlobMsg:
		return p.ChannelID
	case *ChannelMsg:
		return p.ChannelID
	case *UserMsg:
		return p.ChannelID
	default:
		return api.InvalidChannelID
	}
}

// Clone returns a new holder of the same payload. A shared blob gains a
// reference; its bytes are not copied.
func (m Message) Clone() Message {
	if m.payload == nil {
		return m
	}
	return Message{kind: m.kind, payload: m.payload.clone()}
}

// Release drops this holder's blob reference, if any. Releasing a message
// twice through copies made by assignment is harmless; the second call finds
// no blob.
func (m Message) Release() {
	switch p := m.payload.(type) {
	case *DataMsg:
		p.SetData(nil)
	case *BlobMsg:
		p.SetData(nil)
	case *UserMsg:
		p.SetData(nil)
	}
}

// Data returns the data payload. It panics unless Kind() == KindData.
func (m Message) Data() *DataMsg {
	p, ok := m.AsData()
	if !ok {
		panic(&KindError{Want: KindData, Have: m.kind})
	}
	return p
}

// AsData returns the data payload if active.
func (m Message) AsData() (*DataMsg, bool) {
	p, ok := m.payload.(*DataMsg)
	return p, ok
}

// Blob returns the blob payload. It panics unless Kind() == KindBlob.
func (m Message) Blob() *BlobMsg {
	p, ok := m.AsBlob()
	if !ok {
		panic(&KindError{Want: KindBlob, Have: m.kind})
	}
	return p
}

// AsBlob returns the blob payload if active.
func (m Message) AsBlob() (*BlobMsg, bool) {
	p, ok := m.payload.(*BlobMsg)
	return p, ok
}

// Channel returns the channel-state payload. It panics unless Kind() == KindChannel.
func (m Message) Channel() *ChannelMsg {
	p, ok := m.AsChannel()
	if !ok {
		panic(&KindError{Want: KindChannel, Have: m.kind})
	}
	return p
}

// AsChannel returns the channel-state payload if active.
func (m Message) AsChannel() (*ChannelMsg, bool) {
	p, ok := m.payload.(*ChannelMsg)
	return p, ok
}

// Pool returns the pool-state payload. It panics unless Kind() == KindPool.
func (m Message) Pool() *PoolMsg {
	p, ok := m.AsPool()
	if !ok {
		panic(&KindError{Want: KindPool, Have: m.kind})
	}
	return p
}

// AsPool returns the pool-state payload if active.
func (m Message) AsPool() (*PoolMsg, bool) {
	p, ok := m.payload.(*PoolMsg)
	return p, ok
}

// Timer returns the timer payload. It panics unless Kind() == KindTimer.
func (m Message) Timer() *TimerMsg {
	p, ok := m.AsTimer()
	if !ok {
		panic(&KindError{Want: KindTimer, Have: m.kind})
	}
	return p
}

// AsTimer returns the timer payload if active.
func (m Message) AsTimer() (*TimerMsg, bool) {
	p, ok := m.payload.(*TimerMsg)
	return p, ok
}

// User returns the user payload. It panics unless Kind() == KindUser.
func (m Message) User() *UserMsg {
	p, ok := m.AsUser()
	if !ok {
		panic(&KindError{Want: KindUser, Have: m.kind})
	}
	return p
}

// AsUser returns the user payload if active.
func (m Message) AsUser() (*UserMsg, bool) {
	p, ok := m.payload.(*UserMsg)
	return p, ok
}

func (m Message) String() string {
	switch p := m.payload.(type) {
	case *DataMsg:
		return fmt.Sprintf("data{channel=%d offset=%d length=%d}", p.ChannelID, p.UserDataField1, p.UserDataField2)
	case *BlobMsg:
		n := 0
		if p.data != nil {
			n = p.data.Len()
		}
		return fmt.Sprintf("blob{channel=%d length=%d}", p.ChannelID, n)
	case *ChannelMsg:
		return fmt.Sprintf("channel{channel=%d state=%s allocator=%d}", p.ChannelID, p.State, p.AllocatorID)
	case *PoolMsg:
		return fmt.Sprintf("pool{source=%d state=%s}", p.SourceID, p.State)
	case *TimerMsg:
		return fmt.Sprintf("timer{clock=%d}", p.ClockID)
	case *UserMsg:
		return fmt.Sprintf("user{channel=%d type=%d}", p.ChannelID, p.Type)
	default:
		return "invalid{}"
	}
}
