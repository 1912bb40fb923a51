package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerSettingString(t *testing.T) {
	tests := []struct {
		name string
		ws   WorkerSetting
		want string
	}{
		{"auto mode", WorkerSetting{Mode: WorkersAuto}, "auto"},
		{"fixed mode 4", WorkerSetting{Mode: WorkersFixed, Value: 4}, "4"},
		{"fixed mode 0", WorkerSetting{Mode: WorkersFixed, Value: 0}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ws.String()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		envValue string
		want     string
	}{
		{"flag takes precedence", "/path/from/flag", "/path/from/env", "/path/from/flag"},
		{"env when no flag", "", "/path/from/env", "/path/from/env"},
		{"empty when neither", "", "", ""},
		{"whitespace flag", "  ", "/path/from/env", "/path/from/env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HYDRADNS_CONFIG", tt.envValue)
			got := ResolveConfigPath(tt.flag)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1053, cfg.Server.UDPPort)
	assert.Equal(t, WorkersAuto, cfg.Server.Workers.Mode)
	assert.True(t, cfg.Server.EnableTCP)
	assert.False(t, cfg.Server.EnableDoT)
	require.Len(t, cfg.Upstream.Servers, 1)
	assert.Equal(t, "8.8.8.8:53", cfg.Upstream.Servers[0].Address)
	assert.Equal(t, "round_robin", cfg.Upstream.Strategy)
	assert.Equal(t, 60, cfg.Cache.DefaultTTLSeconds)
	assert.Equal(t, 10000, cfg.Cache.MaxEntries)
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  udp_port: 5353
  workers: "2"
  enable_tcp: false

upstream:
  servers:
    - name: cloudflare
      address: "1.1.1.1:53"
      proto: udp
      weight: 1
    - name: quad9
      address: "9.9.9.9:53"
      proto: udp
      weight: 1
  strategy: fastest

logging:
  level: "DEBUG"
  structured: true
  structured_format: "keyvalue"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5353, cfg.Server.UDPPort)
	assert.Equal(t, WorkersFixed, cfg.Server.Workers.Mode)
	assert.Equal(t, 2, cfg.Server.Workers.Value)
	assert.False(t, cfg.Server.EnableTCP)
	assert.Len(t, cfg.Upstream.Servers, 2)
	assert.Equal(t, "fastest", cfg.Upstream.Strategy)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Structured)
	assert.Equal(t, "keyvalue", cfg.Logging.StructuredFormat)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  udp_port: [invalid"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidPort(t *testing.T) {
	content := `
server:
  udp_port: 0
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidWorkers(t *testing.T) {
	content := `
server:
  workers: "invalid"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	// With Viper, invalid workers gracefully defaults to "auto"
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, WorkersAuto, cfg.Server.Workers.Mode)
}

func TestNormalizeRequiresTLSForEncryptedTransports(t *testing.T) {
	content := `
server:
  enable_dot: true
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFileValues(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  udp_port: 5353
  enable_tcp: false

logging:
  level: "DEBUG"
  structured: true
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("HYDRADNS_SERVER_HOST", "192.168.1.1")
	t.Setenv("HYDRADNS_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env-provided keys override the file.
	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, "WARN", cfg.Logging.Level)

	// File-only keys persist untouched.
	assert.Equal(t, 5353, cfg.Server.UDPPort)
	assert.False(t, cfg.Server.EnableTCP)
	assert.True(t, cfg.Logging.Structured)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HYDRADNS_SERVER_HOST", "192.168.1.1")
	t.Setenv("HYDRADNS_SERVER_UDP_PORT", "8053")
	t.Setenv("HYDRADNS_SERVER_WORKERS", "8")
	t.Setenv("HYDRADNS_SERVER_ENABLE_TCP", "false")
	t.Setenv("HYDRADNS_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, 8053, cfg.Server.UDPPort)
	assert.Equal(t, WorkersFixed, cfg.Server.Workers.Mode)
	assert.Equal(t, 8, cfg.Server.Workers.Value)
	assert.False(t, cfg.Server.EnableTCP)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}
