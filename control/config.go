// control/config.go
// Author: momentics <momentics@gmail.com>
//
// TOML configuration file for the queue pool, the acceptor and logging.

package control

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-mt/core/protocol"
	"github.com/momentics/hioload-mt/internal/logging"
	"github.com/momentics/hioload-mt/transport/acceptor"
	"github.com/momentics/hioload-mt/transport/tcp"
)

// Config is the root of a configuration file.
type Config struct {
	Pool     PoolConfig     `toml:"pool"`
	Servers  []ServerConfig `toml:"server"`
	Acceptor AcceptorConfig `toml:"acceptor"`
	Log      LogConfig      `toml:"log"`
}

// PoolConfig maps [pool].
type PoolConfig struct {
	MaxThreads          int           `toml:"max_threads"`
	MaxConnections      int           `toml:"max_connections"`
	BufferSize          int           `toml:"buffer_size"`
	MinGuaranteed       int           `toml:"min_guaranteed"`
	WriteQueueHighWater int           `toml:"write_queue_high_water"`
	ReadTimeout         time.Duration `toml:"read_timeout"`
	StopTimeout         time.Duration `toml:"stop_timeout"`
	Mode                string        `toml:"mode"`
}

// ServerConfig maps one [[server]] entry.
type ServerConfig struct {
	ID            int           `toml:"id"`
	Addr          string        `toml:"addr"`
	Backlog       int           `toml:"backlog"`
	AcceptTimeout time.Duration `toml:"accept_timeout"`
	ReuseAddress  bool          `toml:"reuse_address"`
}

// AcceptorConfig maps [acceptor].
type AcceptorConfig struct {
	Endpoint     string `toml:"endpoint"`
	QueueSize    int    `toml:"queue_size"`
	ReuseAddress bool   `toml:"reuse_address"`
	MaxChannels  int    `toml:"max_channels"`
}

// LogConfig maps [log].
type LogConfig struct {
	Level     string `toml:"level"`
	JSON      bool   `toml:"json"`
	Timestamp bool   `toml:"timestamp"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	pc := tcp.DefaultConfig()
	return Config{
		Pool: PoolConfig{
			MaxThreads:          pc.MaxThreads,
			MaxConnections:      pc.MaxConnections,
			BufferSize:          pc.BufferSize,
			WriteQueueHighWater: pc.WriteQueueHighWater,
			StopTimeout:         5 * time.Second,
			Mode:                protocol.ModeZeroCopy.String(),
		},
		Acceptor: AcceptorConfig{QueueSize: 128, ReuseAddress: true},
		Log:      LogConfig{Level: "info", Timestamp: true},
	}
}

// Load reads path over Default. Keys the schema does not know are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("load config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if err := c.TCPConfig().Validate(); err != nil {
		return err
	}
	if c.Pool.StopTimeout < 0 {
		return fmt.Errorf("pool.stop_timeout must not be negative, got %s", c.Pool.StopTimeout)
	}
	if _, err := c.Mode(); err != nil {
		return err
	}
	seen := make(map[int]bool, len(c.Servers))
	for i, s := range c.Servers {
		if strings.TrimSpace(s.Addr) == "" {
			return fmt.Errorf("server[%d]: addr is required", i)
		}
		if s.Backlog <= 0 {
			return fmt.Errorf("server[%d]: backlog must be positive, got %d", i, s.Backlog)
		}
		if seen[s.ID] {
			return fmt.Errorf("server[%d]: duplicate id %d", i, s.ID)
		}
		seen[s.ID] = true
	}
	if c.Acceptor.QueueSize < 0 || c.Acceptor.MaxChannels < 0 {
		return fmt.Errorf("acceptor: queue_size and max_channels must not be negative")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok && strings.TrimSpace(c.Log.Level) != "" {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	return nil
}

// TCPConfig converts [pool] into the multiplexer sizing.
func (c Config) TCPConfig() tcp.Config {
	return tcp.Config{
		MaxThreads:          c.Pool.MaxThreads,
		MaxConnections:      c.Pool.MaxConnections,
		BufferSize:          c.Pool.BufferSize,
		MinGuaranteed:       c.Pool.MinGuaranteed,
		WriteQueueHighWater: c.Pool.WriteQueueHighWater,
		ReadTimeout:         c.Pool.ReadTimeout,
	}
}

// Mode parses pool.mode.
func (c Config) Mode() (protocol.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Pool.Mode)) {
	case "", protocol.ModeZeroCopy.String():
		return protocol.ModeZeroCopy, nil
	case protocol.ModeCoalescing.String():
		return protocol.ModeCoalescing, nil
	default:
		return 0, fmt.Errorf("pool.mode: unknown mode %q", c.Pool.Mode)
	}
}

// AcceptorOptions converts [acceptor] into acceptor options.
func (c Config) AcceptorOptions(l zerolog.Logger) []acceptor.Option {
	opts := []acceptor.Option{acceptor.WithLogger(l)}
	if c.Acceptor.MaxChannels > 0 {
		opts = append(opts, acceptor.WithMaxChannels(c.Acceptor.MaxChannels))
	}
	return opts
}

// LogOptions converts [log] into logger options.
func (c Config) LogOptions() logging.Options {
	opts := logging.DefaultOptions()
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		opts.Level = lvl
	}
	opts.JSON = c.Log.JSON
	opts.Timestamp = c.Log.Timestamp
	return opts
}
