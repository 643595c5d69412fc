package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// OpenAI設定
	OpenAI OpenAIConfig

	// 再試行・流量制御の設定
	Retry    RetryConfig
	Throttle ThrottleConfig

	// 記録先の設定
	ErrorLogDir string
	DatabaseURL string
	MetricsAddr string
	PricingFile string

	// ログ設定
	Log LogConfig
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// RetryConfig はレート制限時の再試行設定
type RetryConfig struct {
	MaxTries int
	Delay    time.Duration
}

// Policy は completion.RetryPolicy に変換します
func (r RetryConfig) Policy() completion.RetryPolicy {
	return completion.RetryPolicy{MaxTries: r.MaxTries, Delay: r.Delay}
}

// ThrottleConfig はクライアント側の流量制御設定
// RequestsPerMinute と MaxConcurrency が両方 0 の場合は流量制御しない
type ThrottleConfig struct {
	RequestsPerMinute int
	MaxConcurrency    int
}

// Enabled は流量制御が有効かどうかを返します
func (t ThrottleConfig) Enabled() bool {
	return t.RequestsPerMinute > 0 || t.MaxConcurrency > 0
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("LANGPIPE_MODEL", completion.DefaultModel),
			Timeout: getEnvAsDuration("LANGPIPE_TIMEOUT", 60*time.Second),
		},
		Retry: RetryConfig{
			MaxTries: getEnvAsInt("LANGPIPE_RETRY_MAX_TRIES", completion.DefaultMaxTries),
			Delay:    getEnvAsDuration("LANGPIPE_RETRY_DELAY", completion.DefaultRetryDelay),
		},
		Throttle: ThrottleConfig{
			RequestsPerMinute: getEnvAsInt("LANGPIPE_RATE_LIMIT_RPM", 0),
			MaxConcurrency:    getEnvAsInt("LANGPIPE_MAX_CONCURRENCY", 0),
		},
		ErrorLogDir: getEnv("LANGPIPE_ERROR_LOG_DIR", ""),
		DatabaseURL: getEnv("LANGPIPE_DATABASE_URL", ""),
		MetricsAddr: getEnv("LANGPIPE_METRICS_ADDR", ":9090"),
		PricingFile: getEnv("LANGPIPE_PRICING_FILE", ""),
		Log: LogConfig{
			Level:  parseLevel(getEnv("LOG_LEVEL", "info")),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を時間として取得します
// "5s" のような形式に加え、単位なしの数値は秒として扱います
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

// parseLevel はログレベル文字列を slog.Level に変換します
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
