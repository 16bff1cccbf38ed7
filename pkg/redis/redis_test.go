package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}
	client, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test")

	// When Redis is disabled, all requests should be allowed
	cfg := ForecastRateLimit(307)
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, cfg.Limit, remaining)
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test", 0)
	ctx := context.Background()
	assert.Equal(t, DefaultTTL, cache.TTL())

	// When Redis is disabled, cache operations should be no-ops
	require.NoError(t, cache.Set(ctx, "key", "value"))

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestForecastRateLimit(t *testing.T) {
	cfg := ForecastRateLimit(307)
	assert.Equal(t, "forecast:307", cfg.Key)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.Equal(t, "stef:model:1", NewCache(Disabled(), "stef", time.Minute).key("model:1"))
	assert.False(t, (*Client)(nil).Enabled())
}
