// internal/transport/sockopt_unix.go
//go:build unix

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// SetOption sets an integer socket option on c's descriptor.
func SetOption(c syscall.Conn, level, option, value int) error {
	rc, err := c.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	if err := rc.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), level, option, value)
	}); err != nil {
		return err
	}
	return serr
}

// Option reads an integer socket option from c's descriptor.
func Option(c syscall.Conn, level, option int) (int, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var (
		value int
		serr  error
	)
	if err := rc.Control(func(fd uintptr) {
		value, serr = unix.GetsockoptInt(int(fd), level, option)
	}); err != nil {
		return 0, err
	}
	return value, serr
}
