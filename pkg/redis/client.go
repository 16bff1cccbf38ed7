package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
)

// Client Redis 연결 (비활성화 가능)
// ⭐ SSOT: Redis 연결은 여기서만 관리
//
// REDIS_ENABLED=false 이거나 Disabled() 로 만든 클라이언트는
// 캐시 조회는 miss, 저장/삭제는 no-op, 레이트 리밋은 항상 허용
type Client struct {
	rdb *redis.Client
}

// New connects to cfg.Redis and pings it
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return Disabled(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Disabled returns a client whose operations are no-ops
func Disabled() *Client {
	return &Client{}
}

// Enabled reports whether a connection is configured
func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Close closes the connection
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
