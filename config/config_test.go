package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMFI_HOST", "")
	t.Setenv("EMFI_PORT", "")
	t.Setenv("EMFI_SIMULATE", "")

	cfg := Load()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9118, cfg.HTTPPort)
	assert.Equal(t, "/dev/ttyACM0", cfg.SerialDevice)
	assert.False(t, cfg.Simulate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EMFI_HOST", "0.0.0.0")
	t.Setenv("EMFI_PORT", "8000")
	t.Setenv("EMFI_SIMULATE", "true")
	t.Setenv("EMFI_LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadBadInt(t *testing.T) {
	t.Setenv("EMFI_PORT", "not-a-port")
	cfg := Load()
	assert.Equal(t, 9118, cfg.HTTPPort)
}
