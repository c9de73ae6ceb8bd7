package tcp

import (
	"io"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/internal/logging"
	"github.com/momentics/hioload-mt/pool"
)

const waitFor = 3 * time.Second

type stateEvent struct {
	channel, allocator int
	state              api.ChannelState
}

type poolEvent struct {
	state  api.PoolState
	source int
}

// recorder collects every notification.
type recorder struct {
	mu     sync.Mutex
	states []stateEvent
	pools  []poolEvent
	data   map[int][]byte
	timers map[int][]time.Time
}

func newRecorder() *recorder {
	return &recorder{data: make(map[int][]byte), timers: make(map[int][]time.Time)}
}

func (r *recorder) OnPoolState(state api.PoolState, source int, _ api.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = append(r.pools, poolEvent{state: state, source: source})
}

func (r *recorder) OnChannelState(channel int, state api.ChannelState, allocator int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, stateEvent{channel: channel, allocator: allocator, state: state})
}

func (r *recorder) OnData(channel int, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[channel] = append(r.data[channel], data...)
}

func (r *recorder) OnTimer(clock int, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers[clock] = append(r.timers[clock], at)
}

func (r *recorder) findState(state api.ChannelState) (stateEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.states {
		if ev.state == state {
			return ev, true
		}
	}
	return stateEvent{}, false
}

func (r *recorder) hasPool(state api.PoolState, source int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.pools {
		if ev.state == state && ev.source == source {
			return true
		}
	}
	return false
}

func (r *recorder) received(channel int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.data[channel])
}

func (r *recorder) timerCount(clock int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers[clock])
}

func startPool(t *testing.T, cfg Config) (*ChannelPool, *recorder) {
	t.Helper()
	rec := newRecorder()
	p, err := NewChannelPool(cfg, rec, WithLogger(logging.ForTests(t)))
	require.NoError(t, err)
	require.NoError(t, p.Start())
	t.Cleanup(func() { p.Stop() })
	return p, rec
}

func listen(t *testing.T, p *ChannelPool, serverID int, opts api.ListenOptions) string {
	t.Helper()
	require.NoError(t, p.Listen("127.0.0.1:0", 16, serverID, opts))
	addr, err := p.ServerAddress(serverID)
	require.NoError(t, err)
	return addr.String()
}

func TestAcceptReadWriteClose(t *testing.T) {
	p, rec := startPool(t, DefaultConfig())
	addr := listen(t, p, 1, api.ListenOptions{ReuseAddress: true})

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	var up stateEvent
	require.Eventually(t, func() bool {
		var ok bool
		up, ok = rec.findState(api.ChannelUp)
		return ok
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, up.allocator)
	assert.Equal(t, 1, p.NumChannels())

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.received(up.channel) == "hello" }, waitFor, 5*time.Millisecond)

	bp := pool.NewBlobPool(4)
	b := bp.FromBytes([]byte("xxworldyy"))
	require.NoError(t, p.Write(up.channel, b, 2, 5))
	b.Release()

	got := make([]byte, 5)
	client.SetReadDeadline(time.Now().Add(waitFor))
	_, err = io.ReadFull(client, got)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))
	require.Eventually(t, func() bool { return bp.Stats().BuffersInUse == 0 }, waitFor, 5*time.Millisecond,
		"writer releases its reference after sending")

	client.Close()
	require.Eventually(t, func() bool {
		_, ok := rec.findState(api.ChannelDown)
		return ok
	}, waitFor, 5*time.Millisecond)
	assert.Zero(t, p.NumChannels())
}

func TestConnectSucceeds(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer ln.Close()

	p, rec := startPool(t, DefaultConfig())
	require.NoError(t, p.Connect(ln.Addr().String(), 3, 10*time.Millisecond, 9))

	peer, err := ln.Accept()
	require.NoError(t, err)
	defer peer.Close()

	require.Eventually(t, func() bool {
		ev, ok := rec.findState(api.ChannelUp)
		return ok && ev.allocator == 9
	}, waitFor, 5*time.Millisecond)
}

func TestConnectExhaustsAttempts(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p, rec := startPool(t, DefaultConfig())
	require.NoError(t, p.Connect(addr, 2, 10*time.Millisecond, 7))
	require.Eventually(t, func() bool { return rec.hasPool(api.PoolErrorConnecting, 7) }, waitFor, 5*time.Millisecond)

	err = p.Connect(addr, 0, time.Millisecond, 8)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestAcceptTimeoutReported(t *testing.T) {
	p, rec := startPool(t, DefaultConfig())
	listen(t, p, 4, api.ListenOptions{AcceptTimeout: 20 * time.Millisecond})
	require.Eventually(t, func() bool { return rec.hasPool(api.PoolAcceptTimeout, 4) }, waitFor, 5*time.Millisecond)
}

func TestChannelLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	p, rec := startPool(t, cfg)
	addr := listen(t, p, 2, api.ListenOptions{})

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return p.NumChannels() == 1 }, waitFor, 5*time.Millisecond)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()
	require.Eventually(t, func() bool { return rec.hasPool(api.PoolChannelLimit, 2) }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, p.NumChannels())
}

func TestWriteHighWater(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WriteQueueHighWater = 4
	p, rec := startPool(t, cfg)
	addr := listen(t, p, 1, api.ListenOptions{})

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	var up stateEvent
	require.Eventually(t, func() bool {
		var ok bool
		up, ok = rec.findState(api.ChannelUp)
		return ok
	}, waitFor, 5*time.Millisecond)

	b := pool.NewBlobPool(16).FromBytes([]byte("too long"))
	defer b.Release()
	err = p.Write(up.channel, b, 0, b.Len())
	assert.ErrorIs(t, err, api.ErrResourceExhausted)
	require.Eventually(t, func() bool {
		_, ok := rec.findState(api.ChannelSendBufferFull)
		return ok
	}, waitFor, 5*time.Millisecond)
	assert.EqualValues(t, 1, b.Refs(), "rejected write holds no reference")

	assert.ErrorIs(t, p.Write(up.channel, b, 4, 10), api.ErrInvalidArgument)
	assert.ErrorIs(t, p.Write(999, b, 0, 1), api.ErrNotFound)
}

func TestClockDuplicateKeepsPeriod(t *testing.T) {
	p, rec := startPool(t, DefaultConfig())

	require.NoError(t, p.RegisterClock(time.Now(), 40*time.Millisecond, 1))
	err := p.RegisterClock(time.Now(), time.Millisecond, 1)
	require.ErrorIs(t, err, api.ErrDuplicateClock)
	assert.Equal(t, 1, api.Status(err))

	time.Sleep(200 * time.Millisecond)
	n := rec.timerCount(1)
	assert.GreaterOrEqual(t, n, 2)
	assert.Less(t, n, 20, "clock must keep its original period")

	p.DeregisterClock(1)
	time.Sleep(20 * time.Millisecond)
	after := rec.timerCount(1)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, rec.timerCount(1))

	require.NoError(t, p.RegisterClock(time.Now(), 0, 1), "id is free after deregistration")
	require.Eventually(t, func() bool { return rec.timerCount(1) == after+1 }, waitFor, 5*time.Millisecond)
}

func TestNegativeIDsDispatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxThreads = 3
	p, rec := startPool(t, cfg)

	for _, id := range []int{math.MinInt, -7, math.MaxInt} {
		require.NoError(t, p.RegisterClock(time.Now(), 0, id))
	}
	require.Eventually(t, func() bool {
		return rec.timerCount(math.MinInt) == 1 && rec.timerCount(-7) == 1 && rec.timerCount(math.MaxInt) == 1
	}, waitFor, 5*time.Millisecond)
}

func TestOperationsRequireRunning(t *testing.T) {
	p, err := NewChannelPool(DefaultConfig(), newRecorder())
	require.NoError(t, err)

	assert.ErrorIs(t, p.Listen("127.0.0.1:0", 4, 1, api.ListenOptions{}), api.ErrNotRunning)
	assert.ErrorIs(t, p.Connect("127.0.0.1:1", 1, 0, 1), api.ErrNotRunning)
	assert.ErrorIs(t, p.RegisterClock(time.Now(), 0, 1), api.ErrNotRunning)
	assert.ErrorIs(t, p.CloseServer(1), api.ErrNotFound)
	assert.NoError(t, p.Stop())

	_, err = NewChannelPool(DefaultConfig(), nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestStopDeliversChannelDown(t *testing.T) {
	rec := newRecorder()
	p, err := NewChannelPool(DefaultConfig(), rec)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	addr := listen(t, p, 1, api.ListenOptions{})

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()
	require.Eventually(t, func() bool { return p.NumChannels() == 1 }, waitFor, 5*time.Millisecond)

	require.NoError(t, p.Stop())
	_, ok := rec.findState(api.ChannelDown)
	assert.True(t, ok)
	assert.Zero(t, p.NumChannels())
}

func TestDuplicateServerID(t *testing.T) {
	p, _ := startPool(t, DefaultConfig())
	listen(t, p, 3, api.ListenOptions{})
	assert.ErrorIs(t, p.Listen("127.0.0.1:0", 4, 3, api.ListenOptions{}), api.ErrAlreadyOpen)
	assert.ErrorIs(t, p.Listen("127.0.0.1:0", 0, 5, api.ListenOptions{}), api.ErrInvalidArgument)

	require.NoError(t, p.CloseServer(3))
	_, err := p.ServerAddress(3)
	assert.ErrorIs(t, err, api.ErrNotFound)
}
