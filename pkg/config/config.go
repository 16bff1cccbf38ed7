package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Registry backends
const (
	RegistryPostgres = "postgres"
	RegistryMemory   = "memory"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Model registry
	Registry RegistryConfig

	// Prediction jobs / reference data
	JobsFile     string
	HolidayFiles []string

	// Scheduler
	Scheduler SchedulerConfig

	// Hyperparameter tuning
	Tuning TuningConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Outbound HTTP (holiday reference data)
	HTTP HTTPConfig

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RegistryConfig holds model registry configuration
type RegistryConfig struct {
	Backend   string        // postgres, memory
	CacheTTL  time.Duration // Redis 캐시 TTL
	LoadRate  float64       // 초당 로드 허용 수 (0 = 무제한)
	LoadBurst int
}

// HTTPConfig holds outbound HTTP client configuration
type HTTPConfig struct {
	Timeout    time.Duration
	MaxRetries int // 0 = 재시도 없음
	RetryDelay time.Duration
}

// SchedulerConfig holds forecast scheduler configuration
type SchedulerConfig struct {
	ForecastSpec string        // cron spec (초 단위 포함)
	Parallelism  int           // 동시에 실행할 예측 작업 수
	JobTimeout   time.Duration // 작업 하나의 최대 실행 시간
	HistoryDays  int           // 예측 입력으로 읽을 과거 일수

	TrainSpec        string // 재학습 cron spec
	TrainHistoryDays int    // 학습 데이터 과거 일수
	MaxRetries       int
	RetryDelay       time.Duration
}

// TuningConfig holds hyperparameter search configuration
type TuningConfig struct {
	Trials             int
	Parallelism        int
	Seed               int64
	StartupTrials      int // 이 수만큼 완료되기 전에는 pruning 안함
	WarmupSteps        int
	TestFraction       float64
	ValidationFraction float64
	EvalMetric         string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: envString("PORT", "8080"),
		Env:  envString("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", ""),
			MaxConns:        envInt("DB_MAX_CONNS", 25),
			MinConns:        envInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: envDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: envDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},

		// Redis
		Redis: RedisConfig{
			Host:     envString("REDIS_HOST", "localhost"),
			Port:     envString("REDIS_PORT", "6379"),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
			Enabled:  envBool("REDIS_ENABLED", true),
		},

		// Model registry
		Registry: RegistryConfig{
			Backend:   envString("REGISTRY_BACKEND", RegistryPostgres),
			CacheTTL:  envDuration("REGISTRY_CACHE_TTL", 10*time.Minute),
			LoadRate:  envFloat("REGISTRY_LOAD_RATE", 20),
			LoadBurst: envInt("REGISTRY_LOAD_BURST", 5),
		},

		JobsFile:     envString("JOBS_FILE", "configs/jobs.yaml"),
		HolidayFiles: envList("HOLIDAY_FILES"),

		// Scheduler
		Scheduler: SchedulerConfig{
			ForecastSpec: envString("FORECAST_CRON", "0 */15 * * * *"),
			Parallelism:  envInt("FORECAST_PARALLELISM", 4),
			JobTimeout:   envDuration("FORECAST_JOB_TIMEOUT", 2*time.Minute),
			HistoryDays:  envInt("FORECAST_HISTORY_DAYS", 14),

			TrainSpec:        envString("TRAIN_CRON", "0 0 2 * * 0"),
			TrainHistoryDays: envInt("TRAIN_HISTORY_DAYS", 90),
			MaxRetries:       envInt("SCHEDULER_MAX_RETRIES", 3),
			RetryDelay:       envDuration("SCHEDULER_RETRY_DELAY", time.Minute),
		},

		// Tuning
		Tuning: TuningConfig{
			Trials:             envInt("TUNING_TRIALS", 20),
			Parallelism:        envInt("TUNING_PARALLELISM", 2),
			Seed:               int64(envInt("TUNING_SEED", 42)),
			StartupTrials:      envInt("TUNING_STARTUP_TRIALS", 5),
			WarmupSteps:        envInt("TUNING_WARMUP_STEPS", 10),
			TestFraction:       envFloat("TUNING_TEST_FRACTION", 0.15),
			ValidationFraction: envFloat("TUNING_VALIDATION_FRACTION", 0.15),
			EvalMetric:         envString("TUNING_EVAL_METRIC", "mae"),
		},

		HTTP: HTTPConfig{
			Timeout:    envDuration("HTTP_TIMEOUT", 30*time.Second),
			MaxRetries: envInt("HTTP_MAX_RETRIES", 3),
			RetryDelay: envDuration("HTTP_RETRY_DELAY", time.Second),
		},

		// Logging
		LogLevel:  envString("LOG_LEVEL", "debug"),
		LogFormat: envString("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: envBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Registry.Backend {
	case RegistryPostgres:
		// Database URL is required for the postgres registry
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case RegistryMemory:
	default:
		return fmt.Errorf("REGISTRY_BACKEND must be one of: %s, %s", RegistryPostgres, RegistryMemory)
	}

	if c.Scheduler.Parallelism < 1 {
		return fmt.Errorf("FORECAST_PARALLELISM must be at least 1")
	}
	if c.Tuning.Trials < 1 || c.Tuning.Parallelism < 1 {
		return fmt.Errorf("TUNING_TRIALS and TUNING_PARALLELISM must be at least 1")
	}
	if f := c.Tuning.TestFraction + c.Tuning.ValidationFraction; f <= 0 || f >= 1 {
		return fmt.Errorf("TUNING_TEST_FRACTION + TUNING_VALIDATION_FRACTION must be in (0, 1)")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// env reads key through parse; unset or malformed values fall back to def
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func envString(key, def string) string {
	return env(key, def, func(s string) (string, error) { return s, nil })
}

func envInt(key string, def int) int {
	return env(key, def, strconv.Atoi)
}

func envFloat(key string, def float64) float64 {
	return env(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func envBool(key string, def bool) bool {
	return env(key, def, strconv.ParseBool)
}

func envDuration(key string, def time.Duration) time.Duration {
	return env(key, def, time.ParseDuration)
}

// envList splits a comma-separated value, dropping empty items
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
