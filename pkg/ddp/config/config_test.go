package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadHCL(t *testing.T) {
	path := writeConfig(t, "client.hcl", `
url                = "ws://localhost:3000/websocket"
dial_timeout       = "5s"
write_channel_size = 50
read_limit         = 4096
log_level          = "debug"
heartbeat          = "@every 25s"
headers = {
  "X-API-Key" = "key123"
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:3000/websocket", cfg.URL)
	assert.Equal(t, 50, cfg.WriteChannelSize)
	assert.Equal(t, int64(4096), cfg.ReadLimit)
	assert.Equal(t, "@every 25s", cfg.Heartbeat)
	assert.Equal(t, map[string]string{"X-API-Key": "key123"}, cfg.Headers)

	d, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zap.DebugLevel, level)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "client.json", `{"url": "wss://example.com/websocket"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/websocket", cfg.URL)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "client.hcl", `
url          = "ws://file/websocket"
dial_timeout = "5s"
`)
	t.Setenv("DDP_URL", "ws://env/websocket")
	t.Setenv("DDP_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://env/websocket", cfg.URL)
	assert.Equal(t, "5s", cfg.DialTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadEnvironmentOnly(t *testing.T) {
	t.Setenv("DDP_URL", "ws://env/websocket")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ws://env/websocket", cfg.URL)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bad.hcl", `url = `))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config")
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bad.hcl", `
url   = "ws://x/websocket"
bogus = 1
`))
		require.Error(t, err)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := Load(writeConfig(t, "empty.hcl", `log_level = "info"`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "url is required")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		msg  string
	}{
		{"bad timeout", ClientConfig{URL: "ws://x", DialTimeout: "soon"}, "invalid dial_timeout"},
		{"bad level", ClientConfig{URL: "ws://x", LogLevel: "loud"}, "invalid log_level"},
		{"negative queue", ClientConfig{URL: "ws://x", WriteChannelSize: -1}, "write_channel_size"},
		{"negative read limit", ClientConfig{URL: "ws://x", ReadLimit: -1}, "read_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	assert.NoError(t, (&ClientConfig{URL: "ws://x"}).Validate())
}

func TestApply(t *testing.T) {
	cfg := &ClientConfig{
		URL:         "ws://localhost:3000/websocket",
		DialTimeout: "2s",
		Headers:     map[string]string{"X-API-Key": "key123"},
	}

	c, err := cfg.Apply(client.NewClient()).Build()
	require.NoError(t, err)
	assert.NotNil(t, c)

	cfg.Heartbeat = "sometimes"
	_, err = cfg.Apply(client.NewClient()).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid heartbeat schedule")
}
