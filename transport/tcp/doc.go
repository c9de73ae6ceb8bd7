// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the channel multiplexer underneath the queue pool.
//
// A ChannelPool owns listening sockets, outbound connectors, established
// channels and clocks. Every channel gets a reader goroutine that delivers
// physical reads and a writer goroutine that drains a per-channel send queue
// with vectored writes straight from pooled blobs. Notifications are
// dispatched through a fixed set of event loop shards keyed by channel id,
// so all events of one channel are delivered in order on one goroutine.
package tcp
