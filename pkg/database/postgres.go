package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
)

// Schema 모든 stef 테이블이 속한 스키마
const Schema = "stef"

// Tables db migrate 가 만드는 테이블 (HealthCheck 에서 존재 확인)
var Tables = []string{"measurements", "predictors", "forecasts", "model_runs"}

// DB wraps the pgx pool shared by the measurements, forecast and registry repositories
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New opens the pool described by cfg.Database and pings it
// ⭐ SSOT: 유일하게 pgxpool.NewWithConfig()를 호출하는 함수
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	dc := cfg.Database
	if dc.MaxConns > 0 {
		poolConfig.MaxConns = int32(dc.MaxConns)
	}
	if dc.MinConns > 0 && dc.MinConns <= dc.MaxConns {
		poolConfig.MinConns = int32(dc.MinConns)
	}
	if dc.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	}
	if dc.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// HealthStatus db check 결과
type HealthStatus struct {
	Healthy      bool            `json:"healthy"`
	Timestamp    time.Time       `json:"timestamp"`
	ResponseTime time.Duration   `json:"response_time"`
	Tables       map[string]bool `json:"tables"`
	Error        string          `json:"error,omitempty"`
	Stats        PoolStats       `json:"stats"`
}

// Missing returns the tables not created yet, in Tables order
func (s *HealthStatus) Missing() []string {
	var out []string
	for _, t := range Tables {
		if !s.Tables[t] {
			out = append(out, t)
		}
	}
	return out
}

// PoolStats connection pool 통계
type PoolStats struct {
	AcquireCount  int64 `json:"acquire_count"`
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
}

// HealthCheck pings the database and reports which stef tables exist.
// 테이블이 없어도 연결만 되면 Healthy (migrate 전 상태)
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{Timestamp: time.Now(), Tables: make(map[string]bool, len(Tables))}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	for _, t := range Tables {
		var exists bool
		if err := db.Pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, Schema+"."+t).Scan(&exists); err != nil {
			status.Error = err.Error()
			return status, fmt.Errorf("check table %s: %w", t, err)
		}
		status.Tables[t] = exists
	}

	status.Stats = db.Stats()
	status.Healthy = true
	return status, nil
}

// Stats returns the current pool statistics
func (db *DB) Stats() PoolStats {
	st := db.Pool.Stat()
	return PoolStats{
		AcquireCount:  st.AcquireCount(),
		AcquiredConns: st.AcquiredConns(),
		IdleConns:     st.IdleConns(),
		MaxConns:      st.MaxConns(),
		TotalConns:    st.TotalConns(),
	}
}
