// File: transport/acceptor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package acceptor provides TimedAcceptor, a blocking allocator of stream
// channels with optional absolute deadlines, asynchronous interrupts and
// one-way invalidation.
//
// Failures carry api error codes, so api.Status maps them onto the numeric
// taxonomy: timeouts are 0, interrupts 1, a closed acceptor -2 and an
// invalidated one -3.
package acceptor
