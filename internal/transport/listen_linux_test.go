//go:build linux

package transport

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestListenReuseAddress(t *testing.T) {
	for _, reuse := range []bool{true, false} {
		ln, err := Listen(context.Background(), "127.0.0.1:0", 8, reuse)
		require.NoError(t, err)

		v, err := Option(ln, unix.SOL_SOCKET, unix.SO_REUSEADDR)
		require.NoError(t, err)
		assert.Equal(t, reuse, v != 0)
		require.NoError(t, ln.Close())
	}
}

func TestListenAcceptsConnections(t *testing.T) {
	ln, err := Listen(context.Background(), "localhost:0", 4, true)
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
		done <- err
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	c.Close()
	require.NoError(t, <-done)
}

func TestSetOptionOnConn(t *testing.T) {
	ln, err := Listen(context.Background(), "127.0.0.1:0", 4, false)
	require.NoError(t, err)
	defer ln.Close()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	tc := c.(*net.TCPConn)
	require.NoError(t, SetOption(tc, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1))
	v, err := Option(tc, unix.IPPROTO_TCP, unix.TCP_NODELAY)
	require.NoError(t, err)
	assert.NotZero(t, v)
}
