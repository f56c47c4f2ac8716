package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisDialTimeout time.Duration
	RedisOpTimeout   time.Duration

	SessionTTL         time.Duration
	SessionKeyPrefix   string
	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. DATABASE_URL and
// REDIS_ADDR may both be empty: the corresponding store tier is then not
// constructed and the session store degrades down its fallback chain.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		SessionKeyPrefix:   getEnv("SESSION_KEY_PREFIX", "checkout_session"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	var err error
	if cfg.RedisDialTimeout, err = parseDurationEnv("REDIS_DIAL_TIMEOUT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RedisOpTimeout, err = parseDurationEnv("REDIS_OP_TIMEOUT", time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.HTTPPort == "" {
		errs = append(errs, "HTTP_PORT must not be empty")
	}
	if c.SessionTTL <= 0 || c.SessionTTL > 24*time.Hour {
		errs = append(errs, "SESSION_TTL must be between 1s and 24h")
	}
	if c.RedisDialTimeout <= 0 {
		errs = append(errs, "REDIS_DIAL_TIMEOUT must be > 0")
	}
	if c.RedisOpTimeout <= 0 {
		errs = append(errs, "REDIS_OP_TIMEOUT must be > 0")
	}
	if c.RedisDB < 0 {
		errs = append(errs, "REDIS_DB must be >= 0")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, "LOG_FORMAT must be json or text")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
