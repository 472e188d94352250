// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// URL
	APIRootURL    string // MEDIA_BASE_URLの置換先（このAPI自身のルートURL）
	StorefrontURL string // 空の場合はリクエストのスキームとホストを使う

	// Auth
	APITokens string // "userID:token[:shop1|shop2]" のカンマ区切り

	// Job queue
	JobPollInterval  time.Duration
	JobMaxConcurrent int
	JobWorkTimeout   time.Duration
	JobPurgeAfter    time.Duration

	// Feed
	FeedDefaultCurrency string

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	MetricsPort string // workerが/metricsを公開するポート。空の場合は公開しない

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.APIRootURL = strings.TrimRight(os.Getenv("API_ROOT_URL"), "/")
	if cfg.APIRootURL == "" {
		missing = append(missing, "API_ROOT_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.StorefrontURL = strings.TrimRight(getEnvString("STOREFRONT_URL", ""), "/")
	cfg.APITokens = getEnvString("API_TOKENS", "")
	cfg.JobPollInterval = getEnvDuration("JOB_POLL_INTERVAL", 5*time.Second)
	cfg.JobMaxConcurrent = getEnvInt("JOB_MAX_CONCURRENT", 10)
	cfg.JobWorkTimeout = getEnvDuration("JOB_WORK_TIMEOUT", 180*time.Second)
	cfg.JobPurgeAfter = getEnvDuration("JOB_PURGE_AFTER", 72*time.Hour)
	cfg.FeedDefaultCurrency = strings.ToUpper(getEnvString("FEED_DEFAULT_CURRENCY", "USD"))
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

// PurgeAfterDays は終了済みジョブの保持日数を返す。1日未満は1日に切り上げる。
func (c *Config) PurgeAfterDays() int {
	days := int(c.JobPurgeAfter / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
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
