// internal/transport/listen_other.go
//go:build !linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable listener. The runtime picks the backlog; reuse is left to the
// platform default.

package transport

import (
	"context"
	"fmt"
	"net"
)

// Listen binds a TCP listener on address. backlog is validated but the
// runtime chooses the effective queue length on this platform.
func Listen(ctx context.Context, address string, backlog int, reuse bool) (*net.TCPListener, error) {
	if backlog <= 0 {
		return nil, fmt.Errorf("listen %s: backlog must be positive, got %d", address, backlog)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", address, err)
	}
	return ln.(*net.TCPListener), nil
}
