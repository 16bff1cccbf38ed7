package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter sliding-window limiter backed by a Redis sorted set.
// 여러 API 인스턴스가 같은 한도를 공유
// ⭐ SSOT: 분산 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	now    func() time.Time
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // e.g. "forecast:307"
	Limit  int           // 윈도우 안에서 허용하는 요청 수
	Window time.Duration
}

// NewRateLimiter creates a limiter with keys "<prefix>:ratelimit:<key>"
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix, now: time.Now}
}

// Allow records the request and reports whether it fits in the window.
// 거절된 요청은 집합에서 다시 제거하므로 한도를 소모하지 않음
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := r.prefix + ":ratelimit:" + cfg.Key
	now := r.now().UnixMilli()
	member := uuid.NewString()

	var card *redis.IntCmd
	_, err := r.client.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now-cfg.Window.Milliseconds(), 10))
		p.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: member})
		card = p.ZCard(ctx, key)
		p.PExpire(ctx, key, cfg.Window)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", cfg.Key, err)
	}

	count := int(card.Val())
	if count > cfg.Limit {
		if err := r.client.rdb.ZRem(ctx, key, member).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit %s: %w", cfg.Key, err)
		}
		return false, 0, nil
	}
	return true, cfg.Limit - count, nil
}

// ForecastRateLimit 예측 생성 API: 작업당 분당 6회
func ForecastRateLimit(pid int64) RateLimitConfig {
	return RateLimitConfig{
		Key:    fmt.Sprintf("forecast:%d", pid),
		Limit:  6,
		Window: time.Minute,
	}
}
