package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server  ServerConfig
	Remote  RemoteConfig
	Local   LocalConfig
	Adapter AdapterConfig
	Redis   RedisConfig
	JWT     JWTConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// RemoteConfig holds the managed PostgreSQL connection settings.
type RemoteConfig struct {
	URL      string // if set, used as-is (e.g. postgres://host:5432/eventsx?sslmode=require)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LocalConfig holds the embedded fallback store settings.
type LocalConfig struct {
	Path string // sqlite file path; ":memory:" keeps it ephemeral
}

// AdapterConfig holds probe/retry tuning for the storage adapter.
type AdapterConfig struct {
	ProbeTimeout time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// RedisConfig holds optional Redis settings, used for the migration lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// DSN returns the PostgreSQL connection string.
// If RemoteConfig.URL is set (DATABASE_URL env), it is used as-is; otherwise built from components.
func (c RemoteConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Configured reports whether a usable remote connection string was supplied.
// A missing value or the documentation placeholder both mean "no remote",
// which is non-fatal: the adapter runs on the local store.
func (c RemoteConfig) Configured() bool {
	if c.URL == "" && c.Host == "" {
		return false
	}
	return !strings.Contains(c.URL, "username:password")
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))
	probeTimeout, _ := strconv.Atoi(getEnv("DB_PROBE_TIMEOUT_MS", "10000"))
	maxRetries, _ := strconv.Atoi(getEnv("DB_MAX_RETRIES", "3"))
	retryDelay, _ := strconv.Atoi(getEnv("DB_RETRY_DELAY_MS", "1000"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Remote: RemoteConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "eventsx"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		Local: LocalConfig{
			Path: getEnv("LOCAL_DB_PATH", "eventsx.db"),
		},
		Adapter: AdapterConfig{
			ProbeTimeout: time.Duration(probeTimeout) * time.Millisecond,
			MaxRetries:   maxRetries,
			RetryDelay:   time.Duration(retryDelay) * time.Millisecond,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
