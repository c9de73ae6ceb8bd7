// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listening socket construction and raw socket option access shared by the
// channel pool and the timed acceptor. Listen honours an explicit backlog and
// the reuse-address choice on Linux, where the socket is built by hand with
// x/sys/unix; other platforms fall back to net.ListenConfig.

package transport
