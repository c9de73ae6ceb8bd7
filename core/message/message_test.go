package message_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/core/message"
	"github.com/momentics/hioload-mt/pool"
)

func TestNewKindDefaults(t *testing.T) {
	for _, k := range []message.Kind{
		message.KindData, message.KindBlob, message.KindChannel,
		message.KindPool, message.KindTimer, message.KindUser,
	} {
		t.Run(k.String(), func(t *testing.T) {
			m := message.NewKind(k)
			assert.Equal(t, k, m.Kind())
			assert.Equal(t, api.InvalidChannelID, m.ChannelID())
		})
	}
	assert.Equal(t, message.KindInvalid, message.NewKind(message.Kind(42)).Kind())
	assert.Nil(t, message.NewKind(message.KindData).Data().Data())
}

func TestAccessorsAreChecked(t *testing.T) {
	m := message.New(message.TimerMsg{ClockID: 3, FiredAt: time.Unix(10, 0)})

	assert.Equal(t, 3, m.Timer().ClockID)
	_, ok := m.AsData()
	assert.False(t, ok)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		ke, ok := r.(*message.KindError)
		require.True(t, ok, "panic value must be *KindError, got %T", r)
		assert.Equal(t, message.KindData, ke.Want)
		assert.Equal(t, message.KindTimer, ke.Have)
	}()
	_ = m.Data()
}

func TestChannelAndPoolPayloads(t *testing.T) {
	ch := message.New(message.ChannelMsg{ChannelID: 9, State: api.ChannelUp, AllocatorID: 77})
	assert.Equal(t, 9, ch.ChannelID())
	assert.Equal(t, 77, ch.Channel().AllocatorID)
	assert.Contains(t, ch.String(), "channel_up")

	pm := message.New(message.PoolMsg{SourceID: 5, State: api.PoolErrorConnecting})
	assert.Equal(t, api.InvalidChannelID, pm.ChannelID())
	assert.Equal(t, 5, pm.Pool().SourceID)
}

func TestDataMessageBytes(t *testing.T) {
	p := pool.NewBlobPool(8)
	b := p.FromBytes([]byte("headerPAYLOADtrailer"))
	m := message.New(message.NewDataMsg(1, b, 6, 7))
	defer m.Release()

	d := m.Data()
	assert.Equal(t, 6, d.Offset())
	assert.Equal(t, 7, d.Length())
	assert.Equal(t, []byte("PAYLOAD"), d.Bytes())
}

func TestRefcountRoundTrip(t *testing.T) {
	p := pool.NewBlobPool(16)
	b := p.FromBytes(make([]byte, 100))

	orig := message.New(message.NewDataMsg(4, b, 0, 100))
	holders := []message.Message{orig, orig.Clone(), orig.Clone(), orig.Clone()}
	assert.EqualValues(t, 4, b.Refs())

	rand.New(rand.NewSource(1)).Shuffle(len(holders), func(i, j int) {
		holders[i], holders[j] = holders[j], holders[i]
	})
	for i, h := range holders {
		h.Release()
		if i < len(holders)-1 {
			assert.Zero(t, p.Stats().BlobsFreed, "freed before last holder")
		}
	}

	st := p.Stats()
	assert.EqualValues(t, 1, st.BlobsFreed)
	assert.Zero(t, st.BuffersInUse)

	// A second release through an assigned copy finds no blob.
	assert.NotPanics(t, func() { orig.Release() })
	assert.EqualValues(t, 1, p.Stats().BlobsFreed)
}

func TestSetDataAndSetSharedData(t *testing.T) {
	p := pool.NewBlobPool(16)
	first := p.FromBytes([]byte("first"))
	second := p.FromBytes([]byte("second"))

	m := message.New(message.NewBlobMsg(2, first))
	bm := m.Blob()

	bm.SetSharedData(second)
	assert.EqualValues(t, 2, second.Refs(), "shared install keeps the caller's reference")
	assert.EqualValues(t, 1, p.Stats().BlobsFreed, "previous blob released")

	second.Release()
	assert.EqualValues(t, 1, second.Refs())

	third := p.FromBytes([]byte("third"))
	bm.SetData(third)
	assert.EqualValues(t, 1, third.Refs(), "owned install takes over the reference")
	assert.EqualValues(t, 2, p.Stats().BlobsFreed)

	m.Release()
	assert.EqualValues(t, 3, p.Stats().BlobsFreed)
}

func TestUserMessageClone(t *testing.T) {
	p := pool.NewBlobPool(16)
	u := message.UserMsg{ChannelID: 1, Type: 12, Payload: "ctx"}
	u.SetData(p.FromBytes([]byte("x")))

	m := message.New(u)
	c := m.Clone()
	assert.Equal(t, "ctx", c.User().Payload)
	assert.Same(t, m.User().Data(), c.User().Data())
	assert.EqualValues(t, 2, m.User().Data().Refs())

	m.Release()
	c.Release()
	assert.EqualValues(t, 1, p.Stats().BlobsFreed)
}
