package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfxwasm/wasmhost/wasmhost"
)

const testConfigYAML = `
module: hello.wasm
resource: chat
instance: 2
tick_interval: 100ms
log:
  level: debug
host:
  runtime:
    mode: compiled
    memory_limit_pages: 32
  scratch:
    event_args: 4096
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wasmhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, testConfigYAML))
	require.NoError(t, err)
	cfg.Default()

	assert.Equal(t, "hello.wasm", cfg.Module)
	assert.Equal(t, "chat", cfg.Resource)
	assert.Equal(t, uint32(2), cfg.Instance)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "compiled", cfg.Host.Runtime.Mode)
	assert.Equal(t, uint32(32), cfg.Host.Runtime.MemoryLimitPages)
	assert.Equal(t, wasmhost.NestedEventsDeferred, cfg.Host.Runtime.NestedEvents)
	assert.Equal(t, uint32(4096), cfg.Host.Scratch.EventArgs)
	assert.Equal(t, uint32(wasmhost.DefaultEventNameScratch), cfg.Host.Scratch.EventName)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("WASMHOST_RESOURCE", "shop")
	t.Setenv("WASMHOST_TICKS", "5")
	t.Setenv("WASMHOST_TICK_INTERVAL", "20ms")
	t.Setenv("WASMHOST_WASI", "true")
	t.Setenv("WASMHOST_HOST__RUNTIME__MODE", "interpreter")

	cfg, err := loadConfig(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "hello.wasm", cfg.Module)
	assert.Equal(t, "shop", cfg.Resource)
	assert.Equal(t, 5, cfg.Ticks)
	assert.Equal(t, 20*time.Millisecond, cfg.TickInterval)
	assert.True(t, cfg.WASI)
	assert.Equal(t, "interpreter", cfg.Host.Runtime.Mode)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "tick_interval: soon\n"))
	assert.ErrorContains(t, err, "decoding config")
}

func TestConfigDefault(t *testing.T) {
	var cfg Config
	cfg.Default()

	assert.Equal(t, "script", cfg.Resource)
	assert.Equal(t, defaultTickInterval, cfg.TickInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, wasmhost.DefaultConfig(), cfg.Host)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{Module: "a.wasm"}
		cfg.Default()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no module", mutate: func(c *Config) { c.Module = "" }, wantErr: "module"},
		{name: "negative interval", mutate: func(c *Config) { c.TickInterval = -time.Second }, wantErr: "tick_interval"},
		{name: "negative ticks", mutate: func(c *Config) { c.Ticks = -1 }, wantErr: "ticks"},
		{name: "bad engine mode", mutate: func(c *Config) { c.Host.Runtime.Mode = "jit" }, wantErr: "host: runtime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
