// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration and runtime counters for hioload-mt.
//
// Provides:
//   - TOML configuration files with defaults, unknown-key rejection and validation
//   - Conversion into the channel pool, acceptor and logger settings
//   - A concurrent counter and gauge registry for runtime telemetry
package control
