// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrQueueTimeout indicates a timed pop reached its deadline with the queue empty.
	ErrQueueTimeout = errors.New("queue pop timed out")

	// ErrLoopStopped indicates an event was pushed to a stopped loop.
	ErrLoopStopped = errors.New("event loop is stopped")
)
