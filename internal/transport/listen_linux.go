// internal/transport/listen_linux.go
//go:build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux listener with explicit backlog and SO_REUSEADDR control.

package transport

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listen binds a TCP listener on address with the given accept backlog.
// reuse sets SO_REUSEADDR before bind.
func Listen(ctx context.Context, address string, backlog int, reuse bool) (*net.TCPListener, error) {
	if backlog <= 0 {
		return nil, fmt.Errorf("listen %s: backlog must be positive, got %d", address, backlog)
	}
	ip, port, err := resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := ip.To4(); ip4 != nil || ip == nil {
		in4 := &unix.SockaddrInet4{Port: port}
		if ip4 != nil {
			copy(in4.Addr[:], ip4)
		}
		sa = in4
	} else {
		family = unix.AF_INET6
		in6 := &unix.SockaddrInet6{Port: port}
		copy(in6.Addr[:], ip.To16())
		sa = in6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if reuse {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", address, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", address, err)
	}

	// FileListener dups the descriptor; the original is closed with f.
	f := os.NewFile(uintptr(fd), "tcp-listener")
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("file listener: %w", err)
	}
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("file listener: unexpected type %T", ln)
	}
	return tl, nil
}
