package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, DeliveryPush, cfg.DeliveryMode)
	assert.Equal(t, BusLocal, cfg.EventBus)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, "@ai", cfg.AIMentionToken)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DELIVERY_MODE", "POLL")
	t.Setenv("CHAT_POLL_INTERVAL", "500ms")
	t.Setenv("SEND_RATE_BURST", "3")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DeliveryPoll, cfg.DeliveryMode)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3, cfg.SendBurst)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
}

func TestLoadRejectsBadCombinations(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("EVENT_BUS", "redis")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DELIVERY_MODE", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "REDIS_URL")
	assert.Contains(t, err.Error(), "DELIVERY_MODE")
}
