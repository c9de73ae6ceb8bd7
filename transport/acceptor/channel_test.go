package acceptor

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mt/api"
)

func TestChannelReadWrite(t *testing.T) {
	a := openAcceptor(t)
	peer := dial(t, a)
	ch, err := a.Allocate(0)
	require.NoError(t, err)
	assert.Equal(t, a.Address().String(), ch.LocalAddr().String())
	assert.Equal(t, peer.LocalAddr().String(), ch.RemoteAddr().String())

	_, err = peer.Write([]byte("ping-pong"))
	require.NoError(t, err)
	buf := make([]byte, 9)
	n, err := ch.ReadFull(buf)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "ping-pong", string(buf))

	n64, err := ch.Writev([][]byte{[]byte("ab"), []byte("cd"), []byte("ef")})
	require.NoError(t, err)
	assert.EqualValues(t, 6, n64)
	got := make([]byte, 6)
	_, err = io.ReadFull(peer, got)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got))

	peer.Close()
	_, err = ch.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTimedChannelTimeouts(t *testing.T) {
	a := openAcceptor(t)
	peer := dial(t, a)
	tc, err := a.AllocateTimed(0)
	require.NoError(t, err)

	_, err = peer.Write([]byte("abc"))
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := tc.TimedReadFull(buf, time.Now().Add(80*time.Millisecond))
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Equal(t, 0, api.Status(err))
	assert.Equal(t, 3, n, "partial count survives the timeout")

	_, err = peer.Write([]byte("xyz"))
	require.NoError(t, err)
	n, err = tc.TimedRead(buf, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(buf[:n]))

	n, err = tc.TimedWrite([]byte("ok"), time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The deadline is cleared afterwards: a plain read still blocks normally.
	go func() {
		time.Sleep(50 * time.Millisecond)
		peer.Write([]byte("!"))
	}()
	n, err = tc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "!", string(buf[:n]))
}

func TestChannelInvalidate(t *testing.T) {
	a := openAcceptor(t)
	dial(t, a)
	ch, err := a.Allocate(0)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := ch.Read(make([]byte, 4))
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	ch.Invalidate()
	assert.True(t, ch.IsInvalid())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, api.ErrInvalidated)
	case <-time.After(3 * time.Second):
		t.Fatal("blocked read was not woken")
	}

	_, err = ch.Write([]byte("x"))
	assert.Equal(t, -3, api.Status(err))
	_, err = ch.Writev([][]byte{[]byte("x")})
	assert.ErrorIs(t, err, api.ErrInvalidated)
	require.NoError(t, a.Deallocate(ch))
}
