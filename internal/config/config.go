package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultJWKSURL はFirebase ID トークンの署名鍵を公開しているJWKSエンドポイント。
const DefaultJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Firebase
	FirebaseProjectID string
	JWKSURL           string
	JWKSCacheTTL      time.Duration
	JWKSFetchTimeout  time.Duration

	// Redis（空の場合はJWKSをプロセス内メモリにキャッシュする）
	RedisURL string

	// Rate Limit（req/min/uid）
	RateLimitSync int

	// Anti-cheat
	MaxGroDelta   int64
	MaxXPDelta    int64
	MaxInitialGro int64
	MaxInitialXP  int64

	// Worker
	ExpiryInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
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

	cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	if cfg.FirebaseProjectID == "" {
		missing = append(missing, "FIREBASE_PROJECT_ID")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 20)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 10)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.JWKSURL = getEnvString("JWKS_URL", DefaultJWKSURL)
	cfg.JWKSCacheTTL = getEnvDuration("JWKS_CACHE_TTL", time.Hour)
	cfg.JWKSFetchTimeout = getEnvDuration("JWKS_FETCH_TIMEOUT", 5*time.Second)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.RateLimitSync = getEnvInt("RATE_LIMIT_SYNC", 60)
	cfg.MaxGroDelta = getEnvInt64("MAX_GRO_DELTA", 3000)
	cfg.MaxXPDelta = getEnvInt64("MAX_XP_DELTA", 1000)
	cfg.MaxInitialGro = getEnvInt64("MAX_INITIAL_GRO", 10000)
	cfg.MaxInitialXP = getEnvInt64("MAX_INITIAL_XP", 0)
	cfg.ExpiryInterval = getEnvDuration("EXPIRY_INTERVAL", 10*time.Minute)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	return cfg, nil
}

// TokenIssuer はFirebase ID トークンの iss クレームの期待値を返す。
func (c *Config) TokenIssuer() string {
	return "https://securetoken.google.com/" + c.FirebaseProjectID
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
