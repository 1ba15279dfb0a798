package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "Hello from server", cfg.Server.Greeting)
	assert.Equal(t, 1024, cfg.Server.Capacity)
	assert.Equal(t, "127.0.0.1:8080", cfg.Client.Addr)
	assert.Equal(t, "Hello from client", cfg.Client.Greeting)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout.Std())
	assert.Equal(t, "Hello from server!", cfg.Stream.Greeting)
	assert.Equal(t, 1, cfg.Stream.MaxConns)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "msgproto.yaml", `
server:
  addr: "0.0.0.0:9090"
  greeting: "hi"
  read_timeout: 250ms
  max_requests: 1
client:
  addr: "10.0.0.1:9090"
  timeout: 2s
log:
  level: debug
  no_color: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr)
	assert.Equal(t, "hi", cfg.Server.Greeting)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 1, cfg.Server.MaxRequests)
	assert.Equal(t, "10.0.0.1:9090", cfg.Client.Addr)
	assert.Equal(t, 2*time.Second, cfg.Client.Timeout.Std())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.NoColor)

	// untouched sections keep their defaults
	assert.Equal(t, Default().Stream, cfg.Stream)
	assert.Equal(t, 1024, cfg.Server.Capacity)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "msgproto.toml", `
[server]
addr = ":7000"
capacity = 64

[stream]
addr = "127.0.0.1:7001"
reply = "bye"
timeout = "1s"
max_conns = 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 64, cfg.Server.Capacity)
	assert.Equal(t, "127.0.0.1:7001", cfg.Stream.Addr)
	assert.Equal(t, "bye", cfg.Stream.Reply)
	assert.Equal(t, time.Second, cfg.Stream.Timeout.Std())
	assert.Equal(t, 3, cfg.Stream.MaxConns)
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "server: [unterminated"))
	assert.ErrorContains(t, err, "config parse failed")

	_, err = Load(writeFile(t, "bad.toml", "[server\naddr ="))
	assert.ErrorContains(t, err, "config parse failed")

	_, err = Load(writeFile(t, "dur.yaml", "client:\n  timeout: soon\n"))
	assert.ErrorContains(t, err, "config parse failed")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server addr", func(c *Config) { c.Server.Addr = "" }},
		{"server addr without port", func(c *Config) { c.Server.Addr = "localhost" }},
		{"bad client addr", func(c *Config) { c.Client.Addr = "127.0.0.1" }},
		{"bad stream addr", func(c *Config) { c.Stream.Addr = " " }},
		{"zero capacity", func(c *Config) { c.Server.Capacity = 0 }},
		{"greeting does not fit", func(c *Config) { c.Client.Capacity = 4 }},
		{"server greeting does not fit", func(c *Config) { c.Server.Capacity = 17 }},
		{"negative timeout", func(c *Config) { c.Client.Timeout = -1 }},
		{"negative limit", func(c *Config) { c.Server.MaxRequests = -1 }},
		{"zero read size", func(c *Config) { c.Stream.ReadSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestServerConfig_ValidateAfterOverride(t *testing.T) {
	sc := Default().Server
	require.NoError(t, sc.Validate())

	sc.Capacity = 16
	sc.Greeting = "sixteen bytes!!!"
	assert.ErrorContains(t, sc.Validate(), "server.greeting is 16 bytes, capacity is 16")

	sc.Greeting = "fifteen bytes!!"
	assert.NoError(t, sc.Validate())
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(writeFile(t, "neg.yaml", "server:\n  capacity: -1\n"))
	assert.ErrorContains(t, err, "server.capacity")
}
