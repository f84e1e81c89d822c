package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongobridge/mongosrv/config"
)

func TestNewAppliesEmbeddedDefaults(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)

	assert.Equal(t, 27117, cfg.Port)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cursor.IdleTimeout)
	assert.Equal(t, "JSONEachRow", cfg.CDC.Format)
	assert.Nil(t, cfg.TLS)
}

func TestCDCPollIntervalConversion(t *testing.T) {
	cdc := config.CDCConfig{PollIntervalMs: 2500}
	assert.Equal(t, 2500*time.Millisecond, cdc.PollInterval())
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "mongosrv", cfg.CDC.Destination.Database)
}
