// internal/transport/sockopt_other.go
//go:build !unix

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"syscall"

	"github.com/momentics/hioload-mt/api"
)

// SetOption is not supported on this platform.
func SetOption(c syscall.Conn, level, option, value int) error {
	return api.ErrNotSupported
}

// Option is not supported on this platform.
func Option(c syscall.Conn, level, option int) (int, error) {
	return 0, api.ErrNotSupported
}
