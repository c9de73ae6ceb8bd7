package control

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mt/core/protocol"
	"github.com/momentics/hioload-mt/transport/acceptor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hioload.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[pool]
max_threads = 8
buffer_size = 1024
read_timeout = "250ms"
mode = "coalescing"

[[server]]
id = 1
addr = "127.0.0.1:0"
backlog = 32
accept_timeout = "2s"
reuse_address = true

[acceptor]
endpoint = "127.0.0.1:0"
max_channels = 4

[log]
level = "debug"
json = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	tc := cfg.TCPConfig()
	assert.Equal(t, 8, tc.MaxThreads)
	assert.Equal(t, 1024, tc.BufferSize)
	assert.Equal(t, 250*time.Millisecond, tc.ReadTimeout)
	assert.Equal(t, Default().Pool.MaxConnections, tc.MaxConnections, "unset keys keep defaults")

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, protocol.ModeCoalescing, mode)

	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, 2*time.Second, cfg.Servers[0].AcceptTimeout)
	assert.True(t, cfg.Servers[0].ReuseAddress)

	assert.Equal(t, 128, cfg.Acceptor.QueueSize)
	assert.Len(t, cfg.AcceptorOptions(zerolog.Nop()), 2)

	lo := cfg.LogOptions()
	assert.Equal(t, zerolog.DebugLevel, lo.Level)
	assert.True(t, lo.JSON)
	assert.True(t, lo.Timestamp)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[pool]
max_thread = 8
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool.max_thread")
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"bad mode":       "[pool]\nmode = \"turbo\"\n",
		"negative size":  "[pool]\nbuffer_size = -1\n",
		"zero backlog":   "[[server]]\nid = 1\naddr = \":0\"\nbacklog = 0\n",
		"duplicate id":   "[[server]]\nid = 1\naddr = \":0\"\nbacklog = 1\n[[server]]\nid = 1\naddr = \":1\"\nbacklog = 1\n",
		"unknown level":  "[log]\nlevel = \"loud\"\n",
		"malformed toml": "[pool\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestMetricsRegistry(t *testing.T) {
	mr := NewMetricsRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				mr.Add("messages_in", 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 8000, mr.Get("messages_in"))

	depth := int64(3)
	mr.RegisterGauge("incoming_len", func() int64 { return depth })
	snap := mr.Snapshot()
	assert.EqualValues(t, 8000, snap["messages_in"])
	assert.EqualValues(t, 3, snap["incoming_len"])
	assert.Zero(t, mr.Get("missing"))
}

func TestAcceptorOptionsTagComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	a := acceptor.New(Default().AcceptorOptions(zerolog.New(&buf))...)
	require.NoError(t, a.Open("127.0.0.1:0", 4, true))
	defer a.Close()

	line := buf.String()
	assert.Contains(t, line, `"component":"acceptor"`)
	assert.Equal(t, 1, strings.Count(line, `"component"`))
}
