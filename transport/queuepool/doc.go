// File: transport/queuepool/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package queuepool couples a channel multiplexer to two unbounded message
// queues owned by the application.
//
// Bytes read from a channel accumulate per channel and are cut into Data
// messages by the user's boundary detector; channel, pool and timer
// notifications become messages of their own. Everything lands on the
// incoming queue in the order the multiplexer reported it for that channel.
// A writer goroutine pops the outgoing queue and transmits Data and Blob
// messages; any other kind found there is released and dropped.
package queuepool
