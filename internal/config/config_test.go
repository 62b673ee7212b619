package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "app:\n  environment: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8084", cfg.GetServerAddr())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Polling.PowerInterval)
	assert.Equal(t, 10*time.Millisecond, cfg.Polling.InterReadDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Commands.BusyRetryDelay)
	assert.Equal(t, 60*time.Second, cfg.Commands.BusyWaitTimeout)
	assert.Empty(t, cfg.Projectors)
	assert.False(t, cfg.IsProduction())
}

func TestLoadProjectors(t *testing.T) {
	path := writeConfig(t, `
projectors:
  - id: living-room
    host: 192.168.1.40
  - id: cinema
    name: Cinema
    brand: epson
    host: 192.168.1.41
    port: 4000
    timeout_scale: 2.5
    connect_timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Projectors, 2)

	first := cfg.Projectors[0]
	assert.Equal(t, "living-room", first.Name)
	assert.Equal(t, "EPSON", first.Brand)
	assert.Equal(t, 3629, first.Port)
	assert.Equal(t, 3620, first.SerialPort)
	assert.Equal(t, 1.0, first.TimeoutScale)
	assert.Equal(t, 10*time.Second, first.ConnectTimeout)

	second := cfg.Projectors[1]
	assert.Equal(t, "Cinema", second.Name)
	assert.Equal(t, "EPSON", second.Brand)
	assert.Equal(t, 4000, second.Port)
	assert.Equal(t, 2.5, second.TimeoutScale)
	assert.Equal(t, 3*time.Second, second.ConnectTimeout)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	t.Setenv("PROJECTOR_SERVICE_LOGGING_LEVEL", "debug")
	t.Setenv("PROJECTOR_SERVICE_SERVER_PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad environment", "app:\n  environment: moon\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"missing projector id", "projectors:\n  - host: 10.0.0.1\n"},
		{"missing projector host", "projectors:\n  - id: a\n"},
		{"duplicate projector", "projectors:\n  - {id: a, host: 10.0.0.1}\n  - {id: a, host: 10.0.0.2}\n"},
		{"port out of range", "projectors:\n  - {id: a, host: 10.0.0.1, port: 70000}\n"},
		{"zero busy retry", "commands:\n  busy_retry_delay: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
