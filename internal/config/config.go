package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the AutomateFlow server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Worker   WorkerConfig
	SMTP     SMTPConfig
	Webhook  WebhookConfig
}

type ServerConfig struct {
	Port   int
	Env    string
	AppURL string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret        string
	JWTRefreshSecret string
	RateLimitPerMin  int
}

type WorkerConfig struct {
	Secret string
}

// SMTPConfig is optional; with an empty Host the server runs without email
// fan-out.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type WebhookConfig struct {
	Timeout time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:   envInt("PORT", 8080),
			Env:    envString("APP_ENV", "development"),
			AppURL: envString("APP_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret:        os.Getenv("JWT_SECRET"),
			JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
			RateLimitPerMin:  envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Worker: WorkerConfig{
			Secret: os.Getenv("WORKER_SECRET"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envString("SMTP_FROM", "noreply@automateflow.app"),
		},
		Webhook: WebhookConfig{
			Timeout: envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}
	if c.Auth.JWTSecret == c.Auth.JWTRefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.Worker.Secret == "" {
		return fmt.Errorf("WORKER_SECRET is required")
	}

	if !strings.HasPrefix(c.Server.AppURL, "http://") && !strings.HasPrefix(c.Server.AppURL, "https://") {
		return fmt.Errorf("APP_URL must start with http:// or https://, got %q", c.Server.AppURL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
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

func envDuration(key string, defaultVal time.Duration) time.Duration {
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
