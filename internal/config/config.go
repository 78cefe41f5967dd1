package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（L2キャッシュ）。Addrが空の場合はL1のみで動作する。
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cache
	CacheTTL          time.Duration
	CacheL1MaxEntries int64

	// Aggregate
	AggregateConcurrency int

	// Warm
	WarmInterval       time.Duration
	WarmRecentHours    int
	WarmMaxConcurrent  int
	WarmSitesPerSecond float64

	// Rate Limit（req/min/client）
	RateLimitPerMinute int

	// Logging
	LogLevel string

	// Tracing（空の場合はスパンを出力しない。"stdout"のみ対応）
	TraceExporter string

	// Server
	ServerPort string

	// CORS（空の場合はCORSヘッダーを付与しない）
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 30*time.Minute)
	cfg.CacheL1MaxEntries = getEnvInt64("CACHE_L1_MAX_ENTRIES", 100000)
	cfg.AggregateConcurrency = getEnvInt("AGGREGATE_CONCURRENCY", 4)
	cfg.WarmInterval = getEnvDuration("WARM_INTERVAL", 5*time.Minute)
	cfg.WarmRecentHours = getEnvInt("WARM_RECENT_HOURS", 1)
	cfg.WarmMaxConcurrent = getEnvInt("WARM_MAX_CONCURRENT", 4)
	cfg.WarmSitesPerSecond = getEnvFloat("WARM_SITES_PER_SECOND", 5)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 600)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.TraceExporter = getEnvString("TRACE_EXPORTER", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	if cfg.CacheL1MaxEntries <= 0 {
		return nil, fmt.Errorf("CACHE_L1_MAX_ENTRIES must be positive, got %d", cfg.CacheL1MaxEntries)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
