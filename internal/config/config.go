package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// StorageConfig holds the local image directory settings.
type StorageConfig struct {
	Dir string
}

// RateLimitConfig controls the upload limiter. An empty RedisAddr keeps counters in memory.
type RateLimitConfig struct {
	Max           int
	Window        time.Duration
	KeyPrefix     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LogConfig selects the log handler and the zone timestamps are rendered in.
type LogConfig struct {
	Format    string
	Level     string
	Timezone  string
	AddSource bool
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c LogConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AppConfig is the centralized configuration struct for the application.
// It is built once at startup and passed by value or pointer into constructors; nothing mutates it afterwards.
type AppConfig struct {
	AppName         string
	Port            string
	PublicURL       string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int
	Storage         StorageConfig
	RateLimit       RateLimitConfig
	Log             LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppName:         getEnv("APP_NAME", "imagehost"),
		Port:            getEnv("APP_PORT", "8000"),
		PublicURL:       getEnv("APP_PUBLIC_URL", ""),
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxUploadBytes:  getEnvBytes("APP_MAX_UPLOAD_SIZE", 16<<20),
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", "static/image"),
		},
		RateLimit: RateLimitConfig{
			Max:           getEnvInt("RATE_LIMIT_MAX", 5),
			Window:        getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit:"),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Format:    getEnv("LOG_FORMAT", "json"),
			Level:     getEnv("LOG_LEVEL", "info"),
			Timezone:  getEnv("APP_TIMEZONE", "UTC"),
			AddSource: getEnvBool("LOG_ADD_SOURCE", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// getEnvBytes accepts human sizes such as "16MiB" or "10 MB".
func getEnvBytes(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := humanize.ParseBytes(v)
		if err == nil && n > 0 && n <= uint64(^uint(0)>>1) {
			return int(n)
		}
	}
	return def
}
